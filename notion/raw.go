package notion

import "encoding/json"

// Raw wire types for the Notion REST API. A block record carries a type
// tag plus one payload keyed by that tag; the payload fields below act
// as the per-variant arms of that tagged union, so anything without a
// matching arm degrades to an empty payload rather than failing.

// RichText is one run of styled text. Only the plain-text projection is
// used here.
type RichText struct {
	PlainText string `json:"plain_text"`
}

// PlainText concatenates the plain-text fields of a rich-text run list
// in order, with no separator.
func PlainText(runs []RichText) string {
	var out string
	for _, r := range runs {
		out += r.PlainText
	}
	return out
}

// TextContent is the payload shape shared by every text-bearing block.
type TextContent struct {
	RichText []RichText `json:"rich_text"`
}

// CodeContent is the payload of a code block.
type CodeContent struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language"`
}

// FileRef points at hosted or external file bytes.
type FileRef struct {
	URL string `json:"url"`
}

// ImageContent is the payload of an image block. The URL lives under
// either External or File depending on the declared source kind.
type ImageContent struct {
	Type     string     `json:"type"` // "external" or "file"
	External *FileRef   `json:"external,omitempty"`
	File     *FileRef   `json:"file,omitempty"`
	Caption  []RichText `json:"caption"`
}

// TableRowContent is the payload of a table_row block.
type TableRowContent struct {
	Cells [][]RichText `json:"cells"`
}

// RawBlock is one block record as returned by the API, with children
// attached by the client's recursive fetch.
type RawBlock struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`

	Paragraph        *TextContent     `json:"paragraph,omitempty"`
	Heading1         *TextContent     `json:"heading_1,omitempty"`
	Heading2         *TextContent     `json:"heading_2,omitempty"`
	Heading3         *TextContent     `json:"heading_3,omitempty"`
	BulletedListItem *TextContent     `json:"bulleted_list_item,omitempty"`
	NumberedListItem *TextContent     `json:"numbered_list_item,omitempty"`
	Toggle           *TextContent     `json:"toggle,omitempty"`
	Quote            *TextContent     `json:"quote,omitempty"`
	Callout          *TextContent     `json:"callout,omitempty"`
	Code             *CodeContent     `json:"code,omitempty"`
	Image            *ImageContent    `json:"image,omitempty"`
	TableRow         *TableRowContent `json:"table_row,omitempty"`

	Children []RawBlock `json:"children,omitempty"`
}

// richText returns the rich-text runs for the block's declared type, or
// nil when the type carries none.
func (b *RawBlock) richText() []RichText {
	switch ParseBlockType(b.Type) {
	case TypeParagraph:
		return contentRuns(b.Paragraph)
	case TypeHeading1:
		return contentRuns(b.Heading1)
	case TypeHeading2:
		return contentRuns(b.Heading2)
	case TypeHeading3:
		return contentRuns(b.Heading3)
	case TypeBulletedListItem:
		return contentRuns(b.BulletedListItem)
	case TypeNumberedListItem:
		return contentRuns(b.NumberedListItem)
	case TypeToggle:
		return contentRuns(b.Toggle)
	case TypeQuote:
		return contentRuns(b.Quote)
	case TypeCallout:
		return contentRuns(b.Callout)
	case TypeCode:
		if b.Code != nil {
			return b.Code.RichText
		}
	}
	return nil
}

func contentRuns(c *TextContent) []RichText {
	if c == nil {
		return nil
	}
	return c.RichText
}

// RawPage is a page record. Properties keep their raw JSON shape; the
// loader scans them for the title property.
type RawPage struct {
	ID             string                 `json:"id"`
	URL            string                 `json:"url"`
	CreatedTime    string                 `json:"created_time"`
	LastEditedTime string                 `json:"last_edited_time"`
	Properties     map[string]RawProperty `json:"properties"`
}

// RawProperty is one page property. Only title properties are read.
type RawProperty struct {
	Type  string     `json:"type"`
	Title []RichText `json:"title,omitempty"`
}

// listResponse is the common paginated envelope.
type listResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor"`
}
