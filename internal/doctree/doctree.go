package doctree

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Document *Document  // Flat block sequence as produced by the parser
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leading text before the first heading)
	Anchor   string     // Heading anchor, usable as a URL fragment
	Level    int        // Heading level (0 for the lead section)
	Text     string     // Plain text of the blocks directly under this heading
	Blocks   []Block    // Blocks directly under this heading
	Children []*DocNode // Subsections
}

// Chunk is a sized text segment with structural context, ready for indexing.
type Chunk struct {
	Text       string   // Chunk text content
	Index      int      // Sequence number within document
	Breadcrumb []string // Heading hierarchy, e.g. ["History", "Early life"]
	Anchor     string   // Anchor of the innermost section
}
