package chunker

import (
	"fmt"
	"strings"

	"notionrag/notion"
)

var blockPrefix = map[notion.BlockType]string{
	notion.TypeHeading1:         "# ",
	notion.TypeHeading2:         "## ",
	notion.TypeHeading3:         "### ",
	notion.TypeBulletedListItem: "• ",
	notion.TypeNumberedListItem: "1. ",
	notion.TypeQuote:            "> ",
}

// RenderBlock produces the chunk text of a single block: the block's
// text with its type prefix (code gets a fenced wrapper), plus a
// bracketed annotation line when the block's image carries a generated
// description. Blocks with neither contribute nothing.
func RenderBlock(b *notion.Block) string {
	var parts []string

	if b.Text != "" {
		switch b.Type {
		case notion.TypeCode:
			lang := b.Metadata["language"]
			parts = append(parts, fmt.Sprintf("```%s\n%s\n```", lang, b.Text))
		default:
			parts = append(parts, blockPrefix[b.Type]+b.Text)
		}
	}

	if b.Image != nil && b.Image.Description != "" {
		parts = append(parts, fmt.Sprintf("[image description: %s]", b.Image.Description))
	}

	return strings.Join(parts, "\n")
}
