package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// TextParser handles plain text files. Each blank-line separated paragraph
// becomes a Paragraph block with one run per line.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &doctree.Document{}
	var current []doctree.InlineRun
	flush := func() {
		if len(current) > 0 {
			doc.Blocks = append(doc.Blocks, doctree.Paragraph{Runs: current})
			current = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, doctree.PlainRun(line))
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return doctree.BuildTree(titleFromFilename(filename), doc), nil
}
