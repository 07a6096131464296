package notion

// BlockType identifies the kind of a Notion content block.
type BlockType string

const (
	TypeParagraph        BlockType = "paragraph"
	TypeHeading1         BlockType = "heading_1"
	TypeHeading2         BlockType = "heading_2"
	TypeHeading3         BlockType = "heading_3"
	TypeBulletedListItem BlockType = "bulleted_list_item"
	TypeNumberedListItem BlockType = "numbered_list_item"
	TypeToggle           BlockType = "toggle"
	TypeCode             BlockType = "code"
	TypeQuote            BlockType = "quote"
	TypeCallout          BlockType = "callout"
	TypeImage            BlockType = "image"
	TypeDivider          BlockType = "divider"
	TypeTable            BlockType = "table"
	TypeTableRow         BlockType = "table_row"
	TypeChildPage        BlockType = "child_page"
	TypeChildDatabase    BlockType = "child_database"
	TypeBookmark         BlockType = "bookmark"
	TypeEmbed            BlockType = "embed"
	TypeVideo            BlockType = "video"
	TypeFile             BlockType = "file"
	TypePDF              BlockType = "pdf"

	// TypeUnknown absorbs any block kind the API returns that this
	// package does not recognise. Parsing never fails on new kinds.
	TypeUnknown BlockType = "unknown"
)

var knownTypes = map[string]BlockType{
	"paragraph":          TypeParagraph,
	"heading_1":          TypeHeading1,
	"heading_2":          TypeHeading2,
	"heading_3":          TypeHeading3,
	"bulleted_list_item": TypeBulletedListItem,
	"numbered_list_item": TypeNumberedListItem,
	"toggle":             TypeToggle,
	"code":               TypeCode,
	"quote":              TypeQuote,
	"callout":            TypeCallout,
	"image":              TypeImage,
	"divider":            TypeDivider,
	"table":              TypeTable,
	"table_row":          TypeTableRow,
	"child_page":         TypeChildPage,
	"child_database":     TypeChildDatabase,
	"bookmark":           TypeBookmark,
	"embed":              TypeEmbed,
	"video":              TypeVideo,
	"file":               TypeFile,
	"pdf":                TypePDF,
}

// ParseBlockType maps a raw API type string onto a BlockType.
// Unrecognised strings resolve to TypeUnknown.
func ParseBlockType(s string) BlockType {
	if t, ok := knownTypes[s]; ok {
		return t
	}
	return TypeUnknown
}

// IsHeading reports whether t is one of the three heading levels.
func (t BlockType) IsHeading() bool {
	return t == TypeHeading1 || t == TypeHeading2 || t == TypeHeading3
}

// ImageInfo carries everything known about an image block. URL and
// Caption come from the source page; LocalPath and Description are
// filled in later by the annotator.
type ImageInfo struct {
	URL         string `json:"url"`
	LocalPath   string `json:"local_path,omitempty"`
	Description string `json:"description,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// Block is one node of a page's content tree.
type Block struct {
	ID       string            `json:"id"`
	Type     BlockType         `json:"type"`
	Text     string            `json:"text,omitempty"`
	Image    *ImageInfo        `json:"image,omitempty"`
	Children []Block           `json:"children,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Page is a fully parsed Notion page.
type Page struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Blocks   []Block           `json:"blocks"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Images returns pointers to every image in the page in pre-order,
// depth-first document order. The pointers reach into the block tree,
// so annotations written back through them are visible to the chunker.
// The walk is iterative; page trees can nest arbitrarily deep.
func (p *Page) Images() []*ImageInfo {
	var images []*ImageInfo

	type frame struct {
		blocks []Block
		next   int
	}
	stack := []frame{{blocks: p.Blocks}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.blocks) {
			stack = stack[:len(stack)-1]
			continue
		}
		b := &top.blocks[top.next]
		top.next++
		if b.Image != nil {
			images = append(images, b.Image)
		}
		if len(b.Children) > 0 {
			stack = append(stack, frame{blocks: b.Children})
		}
	}
	return images
}
