package chunker

import (
	"strings"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Target chunk size in tokens.
	ChunkOverlap int // Overlap between consecutive chunks in tokens.
	MinChunk     int // Minimum chunk size to emit.
}

// Defaults sized for encyclopedia sections.
const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 100
	defaultMinChunk     = 8
)

// tokensPerWord approximates subword tokens for encyclopedia prose.
const tokensPerWord = 1.33

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    defaultChunkSize,
		ChunkOverlap: defaultChunkOverlap,
		MinChunk:     defaultMinChunk,
	}
}

// ChunkTree walks a DocTree and produces structure-aware chunks. Each chunk
// carries the heading breadcrumb and the anchor of its section.
func ChunkTree(tree *doctree.DocTree, cfg Config) []doctree.Chunk {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = defaultChunkOverlap
	}
	if cfg.MinChunk <= 0 {
		cfg.MinChunk = defaultMinChunk
	}
	if tree == nil {
		return nil
	}

	var chunks []doctree.Chunk
	tree.Walk(func(node *doctree.DocNode, breadcrumb []string) {
		if node.Text == "" {
			return
		}
		parts := []string{node.Text}
		if EstimateTokens(node.Text) > cfg.ChunkSize {
			parts = splitText(node.Text, cfg.ChunkSize, cfg.ChunkOverlap)
		}
		for _, part := range parts {
			if EstimateTokens(part) < cfg.MinChunk {
				continue
			}
			chunks = append(chunks, doctree.Chunk{
				Text:       part,
				Index:      len(chunks),
				Breadcrumb: copyBreadcrumb(breadcrumb),
				Anchor:     node.Anchor,
			})
		}
	})
	return chunks
}

// splitText breaks text into chunks of about targetTokens. Paragraphs are
// packed whole; a paragraph larger than the target is packed by sentence.
func splitText(text string, targetTokens, overlapTokens int) []string {
	var (
		result []string
		small  []string
	)
	for _, para := range splitByParagraphs(text) {
		if EstimateTokens(para) <= targetTokens {
			small = append(small, para)
			continue
		}
		result = append(result, pack(small, "\n\n", targetTokens, overlapTokens)...)
		small = nil
		result = append(result, pack(splitSentences(para), " ", targetTokens, overlapTokens)...)
	}
	return append(result, pack(small, "\n\n", targetTokens, overlapTokens)...)
}

// pack joins pieces with sep into chunks of at most targetTokens where
// possible. Each chunk after the first starts with the tail of the one
// before it.
func pack(pieces []string, sep string, targetTokens, overlapTokens int) []string {
	var (
		result  []string
		current strings.Builder
		tokens  int
	)
	for _, piece := range pieces {
		n := EstimateTokens(piece)
		if tokens+n > targetTokens && tokens > 0 {
			result = append(result, current.String())
			overlap := getOverlapText(current.String(), overlapTokens)
			current.Reset()
			tokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				tokens = EstimateTokens(overlap)
			}
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
		tokens += n
	}
	if tokens > 0 {
		result = append(result, current.String())
	}
	return result
}

// splitByParagraphs splits on blank lines.
func splitByParagraphs(text string) []string {
	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitSentences splits after '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	for i := 0; i+1 < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' || text[i+1] == '\n' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// EstimateTokens gives a rough token count from the word count. Any
// non-empty text counts as at least one token.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		if text == "" {
			return 0
		}
		return 1
	}
	return max(int(float64(words)*tokensPerWord), 1)
}

// getOverlapText extracts the last N tokens worth of text for overlap.
func getOverlapText(text string, targetTokens int) string {
	words := strings.Fields(text)
	targetWords := int(float64(targetTokens) / tokensPerWord)
	if targetWords <= 0 || len(words) <= targetWords {
		return ""
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}

func copyBreadcrumb(bc []string) []string {
	if len(bc) == 0 {
		return nil
	}
	out := make([]string, len(bc))
	copy(out, bc)
	return out
}
