package doctree

// Document is the ordered block sequence produced by one parse.
// It is never mutated after construction.
type Document struct {
	Blocks []Block `json:"blocks"`
}

// BlockKind names a block variant. It is the "type" field in JSON.
type BlockKind string

const (
	KindHeading        BlockKind = "heading"
	KindParagraph      BlockKind = "paragraph"
	KindList           BlockKind = "list"
	KindTable          BlockKind = "table"
	KindCodeBlock      BlockKind = "code"
	KindDisplayMath    BlockKind = "display_math"
	KindBlockquote     BlockKind = "blockquote"
	KindHorizontalRule BlockKind = "hr"
)

// Block is one of the block variants below.
type Block interface {
	Kind() BlockKind
}

// Heading is a section title. Level is in [2,6] for wikitext input.
type Heading struct {
	Level  int       `json:"level"`
	Text   InlineRun `json:"text"`
	Anchor string    `json:"anchor,omitempty"`
}

// Paragraph holds one or more runs; runs are separated by hard line breaks.
type Paragraph struct {
	Runs []InlineRun `json:"runs"`
}

// List is a flat list; nested wikitext sigils are flattened into items.
type List struct {
	Ordered bool        `json:"ordered"`
	Items   []InlineRun `json:"items"`
}

type Table struct {
	Caption InlineRun `json:"caption,omitempty"`
	Rows    []Row     `json:"rows"`
}

type Row struct {
	Cells []Cell `json:"cells"`
}

type Cell struct {
	Header  bool      `json:"header"`
	Content InlineRun `json:"content"`
}

// CodeBlock is verbatim text; no inline parsing is applied to it.
type CodeBlock struct {
	Language string `json:"language,omitempty"`
	Text     string `json:"text"`
}

// DisplayMath is a standalone formula. Latex is the raw source.
type DisplayMath struct {
	Latex string `json:"latex"`
}

type Blockquote struct {
	Content InlineRun `json:"content"`
}

type HorizontalRule struct{}

func (Heading) Kind() BlockKind        { return KindHeading }
func (Paragraph) Kind() BlockKind      { return KindParagraph }
func (List) Kind() BlockKind           { return KindList }
func (Table) Kind() BlockKind          { return KindTable }
func (CodeBlock) Kind() BlockKind      { return KindCodeBlock }
func (DisplayMath) Kind() BlockKind    { return KindDisplayMath }
func (Blockquote) Kind() BlockKind     { return KindBlockquote }
func (HorizontalRule) Kind() BlockKind { return KindHorizontalRule }

// Slice returns a document holding blocks[offset:offset+limit], clamped to
// the available range. A non-positive limit means "to the end".
func (d *Document) Slice(offset, limit int) *Document {
	if d == nil {
		return &Document{}
	}
	n := len(d.Blocks)
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return &Document{Blocks: d.Blocks[offset:end]}
}
