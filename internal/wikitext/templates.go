package wikitext

import (
	"strings"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// templateArgs holds the pipe-separated arguments of a template call.
type templateArgs struct {
	positional []string
	named      map[string]string
}

// inlineTemplate returns the renderer for one of the fixed set of inline
// templates. Anything else is emitted as its literal source.
func inlineTemplate(name string) func(*tokenizer, templateArgs) []doctree.Token {
	switch name {
	case "ipac-en":
		return ipaTemplate
	case "respell":
		return respellTemplate
	case "lisp2", "code":
		return codeTemplate
	case "webarchive":
		return webarchiveTemplate
	case "annotated link":
		return annotatedLinkTemplate
	}
	return nil
}

func (t *tokenizer) template(s string, i, end int) ([]doctree.Token, int) {
	if end < 0 {
		return text("{{"), 2
	}
	consumed := end + 2 - i
	name, args := parseTemplate(s[i+2 : end])
	if render := inlineTemplate(name); render != nil {
		return render(t, args), consumed
	}
	return text(t.math.restore(s[i : end+2])), consumed
}

// parseTemplate splits a template body into its lower-cased name and
// arguments. Pipes inside nested links and templates do not split.
func parseTemplate(body string) (string, templateArgs) {
	parts := splitTopLevel(body, '|')
	name := strings.ToLower(strings.TrimSpace(parts[0]))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.TrimPrefix(name, "template:")

	args := templateArgs{named: map[string]string{}}
	for _, part := range parts[1:] {
		if k, v, ok := strings.Cut(part, "="); ok && isArgName(k) {
			args.named[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
			continue
		}
		args.positional = append(args.positional, strings.TrimSpace(part))
	}
	return name, args
}

func isArgName(k string) bool {
	k = strings.TrimSpace(k)
	if k == "" {
		return false
	}
	for _, r := range k {
		if !(r == ' ' || r == '-' || r == '_' || isAlnumASCII(r)) {
			return false
		}
	}
	return true
}

func splitTopLevel(s string, sep byte) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch {
		case i+1 < len(s) && (s[i:i+2] == "[[" || s[i:i+2] == "{{"):
			depth++
			i++
		case i+1 < len(s) && (s[i:i+2] == "]]" || s[i:i+2] == "}}"):
			if depth > 0 {
				depth--
			}
			i++
		case s[i] == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func (a templateArgs) arg(n int) string {
	if n < len(a.positional) {
		return a.positional[n]
	}
	return ""
}

// ipaLabels are leading ipac-en arguments that name a dialect or prefix
// rather than a sound.
var ipaLabels = map[string]bool{
	"us": true, "uk": true, "lang": true, "pron": true, "also": true,
	"local": true, "ca": true, "au": true, "nz": true, "ie": true,
}

var ipaCodes = map[string]string{
	"'":  "ˈ",
	",":  "ˌ",
	"_":  " ",
	"-":  "-",
	".":  ".",
	"ii": "iː",
	"uu": "uː",
	"aa": "ɑː",
	"oo": "ɔː",
	"er": "ɜːr",
	"dh": "ð",
	"th": "θ",
	"sh": "ʃ",
	"zh": "ʒ",
	"ng": "ŋ",
	"ch": "tʃ",
	"ae": "æ",
	"ow": "aʊ",
}

func ipaTemplate(_ *tokenizer, a templateArgs) []doctree.Token {
	var b strings.Builder
	for _, code := range a.positional {
		if ipaLabels[strings.ToLower(code)] {
			continue
		}
		if mapped, ok := ipaCodes[code]; ok {
			b.WriteString(mapped)
			continue
		}
		b.WriteString(code)
	}
	if b.Len() == 0 {
		return nil
	}
	return text("/" + b.String() + "/")
}

func respellTemplate(_ *tokenizer, a templateArgs) []doctree.Token {
	var parts []string
	for _, p := range a.positional {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return []doctree.Token{doctree.Italic{Content: doctree.PlainRun(strings.Join(parts, "-"))}}
}

func codeTemplate(t *tokenizer, a templateArgs) []doctree.Token {
	code := a.arg(0)
	if code == "" {
		code = a.named["1"]
	}
	if code == "" {
		return nil
	}
	return []doctree.Token{doctree.Code{Text: t.math.restore(code)}}
}

func webarchiveTemplate(t *tokenizer, a templateArgs) []doctree.Token {
	url := a.named["url"]
	if url == "" {
		return nil
	}
	label := t.run(a.named["title"]).PlainText()
	if label == "" {
		label = "Archived"
	}
	toks := []doctree.Token{doctree.Link{URL: url, Label: label}}
	if date := a.named["date"]; date != "" {
		toks = append(toks, doctree.Text{Text: " (archived " + date + ")"})
	}
	return toks
}

func annotatedLinkTemplate(_ *tokenizer, a templateArgs) []doctree.Token {
	target := a.arg(0)
	if target == "" {
		return nil
	}
	label := a.arg(1)
	if label == "" {
		label = target
	}
	return []doctree.Token{doctree.WikiLink{Target: target, Label: label}}
}
