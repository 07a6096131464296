package notion

import (
	"context"
	"fmt"
	"strings"
)

// Loader turns raw API records into parsed pages. Parsing is total:
// malformed or unrecognised records degrade to empty text or
// TypeUnknown, never to an error.
type Loader struct {
	client *Client
}

// NewLoader returns a Loader backed by the given client.
func NewLoader(client *Client) *Loader {
	return &Loader{client: client}
}

// LoadAll loads every configured page, in configuration order.
func (l *Loader) LoadAll(ctx context.Context) ([]Page, error) {
	rawPages, err := l.client.GetAllPages(ctx)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, len(rawPages))
	for _, raw := range rawPages {
		blocks, err := l.client.GetPageBlocks(ctx, raw.ID)
		if err != nil {
			return nil, fmt.Errorf("loading blocks of page %s: %w", raw.ID, err)
		}
		pages = append(pages, ParsePage(&raw, blocks))
	}
	return pages, nil
}

// LoadPage loads and parses a single page by id.
func (l *Loader) LoadPage(ctx context.Context, pageID string) (*Page, error) {
	raw, err := l.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	blocks, err := l.client.GetPageBlocks(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("loading blocks of page %s: %w", pageID, err)
	}
	page := ParsePage(raw, blocks)
	return &page, nil
}

// ParsePage converts a raw page record plus its raw block tree into a Page.
func ParsePage(raw *RawPage, blocks []RawBlock) Page {
	parsed := make([]Block, 0, len(blocks))
	for i := range blocks {
		parsed = append(parsed, parseBlock(&blocks[i]))
	}

	return Page{
		ID:     raw.ID,
		Title:  extractTitle(raw),
		URL:    raw.URL,
		Blocks: parsed,
		Metadata: map[string]string{
			"created_time":     raw.CreatedTime,
			"last_edited_time": raw.LastEditedTime,
		},
	}
}

// extractTitle resolves the page title: the title property if one
// exists and is non-empty, then a name derived from the URL's last
// path segment, then the literal "Untitled".
func extractTitle(raw *RawPage) string {
	for _, prop := range raw.Properties {
		if prop.Type != "title" {
			continue
		}
		if title := PlainText(prop.Title); title != "" {
			return title
		}
	}

	// Notion URLs end in "<Title-words>-<opaque id>"; drop the id suffix.
	if raw.URL != "" {
		last := raw.URL
		if i := strings.LastIndex(strings.TrimRight(last, "/"), "/"); i >= 0 {
			last = strings.TrimRight(last, "/")[i+1:]
		}
		parts := strings.Split(last, "-")
		if len(parts) > 1 {
			if title := strings.Join(parts[:len(parts)-1], "-"); title != "" {
				return title
			}
		}
	}

	return "Untitled"
}

func parseBlock(raw *RawBlock) Block {
	blockType := ParseBlockType(raw.Type)

	block := Block{
		ID:   raw.ID,
		Type: blockType,
	}

	switch blockType {
	case TypeImage:
		block.Image = extractImage(raw.Image)
	case TypeCode:
		block.Text = PlainText(raw.richText())
		if raw.Code != nil && raw.Code.Language != "" {
			block.Metadata = map[string]string{"language": raw.Code.Language}
		}
	case TypeTable:
		block.Text = tableText(raw)
	case TypeTableRow:
		block.Text = tableRowText(raw.TableRow)
	default:
		block.Text = PlainText(raw.richText())
	}

	if len(raw.Children) > 0 {
		block.Children = make([]Block, 0, len(raw.Children))
		for i := range raw.Children {
			block.Children = append(block.Children, parseBlock(&raw.Children[i]))
		}
	}

	return block
}

func extractImage(content *ImageContent) *ImageInfo {
	if content == nil {
		return &ImageInfo{}
	}

	var u string
	switch content.Type {
	case "external":
		if content.External != nil {
			u = content.External.URL
		}
	case "file":
		if content.File != nil {
			u = content.File.URL
		}
	}

	return &ImageInfo{
		URL:     u,
		Caption: PlainText(content.Caption),
	}
}

// tableText renders a table as its rows joined by newlines.
func tableText(raw *RawBlock) string {
	var rows []string
	for i := range raw.Children {
		child := &raw.Children[i]
		if ParseBlockType(child.Type) == TypeTableRow {
			rows = append(rows, tableRowText(child.TableRow))
		}
	}
	return strings.Join(rows, "\n")
}

// tableRowText renders a row as its cells joined by " | ".
func tableRowText(row *TableRowContent) string {
	if row == nil {
		return ""
	}
	cells := make([]string, 0, len(row.Cells))
	for _, cell := range row.Cells {
		cells = append(cells, PlainText(cell))
	}
	return strings.Join(cells, " | ")
}
