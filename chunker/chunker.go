package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"notionrag/notion"
)

// Chunk is one retrievable unit of a page: a bounded span of rendered
// text plus the local paths of any images anchored to it. Text and
// ImagePaths are immutable once emitted.
type Chunk struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	PageID     string   `json:"page_id"`
	PageTitle  string   `json:"page_title"`
	PageURL    string   `json:"page_url"`
	ImagePaths []string `json:"image_paths,omitempty"`
	Metadata   Metadata `json:"metadata"`
}

// Metadata carries per-chunk provenance.
type Metadata struct {
	SectionIndex int `json:"section_index"`
}

// Config controls the chunking behaviour. Sizes are in characters
// (runes), not bytes.
type Config struct {
	ChunkSize    int // Soft upper bound on characters per chunk.
	ChunkOverlap int // Trailing characters carried into the next chunk on a forced split.
}

// Chunker splits parsed pages into chunks along heading boundaries.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with sensible defaults.
func New(cfg Config) *Chunker {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = 200
	}
	return &Chunker{cfg: cfg}
}

// ChunkPage converts a page into an ordered chunk sequence. Chunk ids
// are {page id}_{section index}_{chunk index within section}, so
// re-chunking unchanged content reproduces identical ids and text.
func (c *Chunker) ChunkPage(page *notion.Page) []Chunk {
	sections := splitSections(page.Blocks)

	var chunks []Chunk
	for i, section := range sections {
		chunks = append(chunks, c.chunkSection(page, section, i)...)
	}
	return chunks
}

// splitSections flattens the block tree into heading-bounded sections
// in strict pre-order: a block is visited before its children, and a
// heading at any depth closes the current section and opens a new one
// seeded with that heading. Children of a table are skipped; the
// table's own text already renders its rows.
func splitSections(blocks []notion.Block) [][]*notion.Block {
	var sections [][]*notion.Block
	var current []*notion.Block

	var walk func(b *notion.Block)
	walk = func(b *notion.Block) {
		if b.Type.IsHeading() {
			if len(current) > 0 {
				sections = append(sections, current)
			}
			current = []*notion.Block{b}
		} else {
			current = append(current, b)
		}
		if b.Type == notion.TypeTable {
			return
		}
		for i := range b.Children {
			walk(&b.Children[i])
		}
	}

	for i := range blocks {
		walk(&blocks[i])
	}
	if len(current) > 0 {
		sections = append(sections, current)
	}
	return sections
}

// chunkSection runs the stateful scan over one section. Sections are
// chunked independently so an oversized section never merges with its
// neighbours.
func (c *Chunker) chunkSection(page *notion.Page, section []*notion.Block, sectionIndex int) []Chunk {
	var chunks []Chunk
	var buf string
	var bufImages []string
	chunkIndex := 0

	emit := func(text string, images []string) {
		chunks = append(chunks, Chunk{
			ID:         fmt.Sprintf("%s_%d_%d", page.ID, sectionIndex, chunkIndex),
			Text:       text,
			PageID:     page.ID,
			PageTitle:  page.Title,
			PageURL:    page.URL,
			ImagePaths: images,
			Metadata:   Metadata{SectionIndex: sectionIndex},
		})
		chunkIndex++
	}

	for _, block := range section {
		text := RenderBlock(block)
		images := blockImages(block)

		if len(images) > 0 {
			// An image anchors its own chunk boundary: flush the buffer
			// together with this block so the image stays next to its
			// immediate textual context.
			combined := text
			if buf != "" {
				combined = buf + "\n" + text
			}
			combined = strings.TrimSpace(combined)
			allImages := append(bufImages, images...)
			if combined != "" || len(allImages) > 0 {
				emit(combined, allImages)
			}
			buf = ""
			bufImages = nil
			continue
		}

		next := text
		if buf != "" {
			next = buf + "\n" + text
		}

		if utf8.RuneCountInString(next) > c.cfg.ChunkSize {
			// Flush the prior buffer before appending, then seed the new
			// buffer with its tail for continuity across the split.
			if strings.TrimSpace(buf) != "" {
				emit(strings.TrimSpace(buf), bufImages)
			}
			if c.cfg.ChunkOverlap > 0 && buf != "" {
				buf = tailRunes(buf, c.cfg.ChunkOverlap) + "\n" + text
			} else {
				buf = text
			}
			bufImages = nil
		} else {
			buf = next
		}
	}

	if strings.TrimSpace(buf) != "" {
		emit(strings.TrimSpace(buf), bufImages)
	}

	return chunks
}

func blockImages(b *notion.Block) []string {
	if b.Image != nil && b.Image.LocalPath != "" {
		return []string{b.Image.LocalPath}
	}
	return nil
}

func tailRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
