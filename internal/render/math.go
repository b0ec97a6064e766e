package render

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wyatt915/treeblood"
)

// MathRenderer converts LaTeX into markup.
type MathRenderer interface {
	RenderMath(latex string, display bool) (string, error)
}

// DocumentMath is implemented by renderers that keep per-document state
// such as equation numbers. ForDocument returns a renderer for one document.
type DocumentMath interface {
	MathRenderer
	ForDocument() MathRenderer
}

// forDocument gives r's per-document renderer when it has one.
func forDocument(r MathRenderer) MathRenderer {
	if dm, ok := r.(DocumentMath); ok {
		return dm.ForDocument()
	}
	return r
}

// MathML renders LaTeX to MathML with treeblood. A single document carries
// macro and numbering state, so calls are serialized.
type MathML struct {
	numbering bool
	macros    map[string]string

	mu   sync.Mutex
	pitz *treeblood.Pitziil
}

// NewMathML returns a MathML renderer. With numbering on, display formulas
// are numbered in render order, starting at (1) in every document.
func NewMathML(numbering bool, macros map[string]string) *MathML {
	return &MathML{
		numbering: numbering,
		macros:    macros,
		pitz:      treeblood.NewDocument(macros, numbering),
	}
}

// ForDocument returns a fresh renderer with the same settings.
func (m *MathML) ForDocument() MathRenderer {
	return NewMathML(m.numbering, m.macros)
}

func (m *MathML) RenderMath(latex string, display bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if display {
		return m.pitz.DisplayStyle(latex)
	}
	return m.pitz.TextStyle(latex)
}

// safeMath calls r and reports false when it errors or panics. Failures
// are counted; the caller renders the literal source instead.
func safeMath(r MathRenderer, latex string, display bool) (string, bool) {
	if r == nil {
		return "", false
	}
	out, err := tryMath(r, latex, display)
	if err != nil {
		reason := "error"
		if errors.Is(err, errMathPanic) {
			reason = "panic"
		}
		recordMathFailure(display, reason)
		return "", false
	}
	return out, true
}

var (
	errMathPanic = errors.New("math renderer panicked")
	errMathEmpty = errors.New("math renderer returned no markup")
)

// tryMath calls r, turning panics and empty output into errors.
func tryMath(r MathRenderer, latex string, display bool) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = "", fmt.Errorf("%w: %v", errMathPanic, p)
		}
	}()
	out, err = r.RenderMath(latex, display)
	if err == nil && out == "" {
		err = errMathEmpty
	}
	return out, err
}

// MathFunc adapts a plain function to MathRenderer.
type MathFunc func(latex string, display bool) (string, error)

func (f MathFunc) RenderMath(latex string, display bool) (string, error) {
	return f(latex, display)
}
