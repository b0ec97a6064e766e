package render

import (
	"net/url"
	"strings"
)

// DefaultLinkBase is the navigation prefix for wiki links.
const DefaultLinkBase = "/wiki/"

// LinkResolver maps wiki-link targets to internal navigation URLs.
type LinkResolver struct {
	Base string // "/wiki/" or "/search/"
}

// Resolve returns Base followed by the percent-encoded page name.
func (l LinkResolver) Resolve(target string) string {
	base := l.Base
	if base == "" {
		base = DefaultLinkBase
	}
	return base + EncodeComponent(strings.TrimSpace(target))
}

// componentUnescape restores the characters encodeURIComponent leaves alone.
var componentUnescape = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeComponent percent-encodes s the way encodeURIComponent does.
func EncodeComponent(s string) string {
	return componentUnescape.Replace(url.QueryEscape(s))
}
