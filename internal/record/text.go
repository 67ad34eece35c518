package record

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// droppedTags never contribute to the plain-text projection.
var droppedTags = map[atom.Atom]struct{}{
	atom.Script:   {},
	atom.Style:    {},
	atom.Noscript: {},
	atom.Iframe:   {},
	atom.Embed:    {},
	atom.Object:   {},
	atom.Template: {},
}

// CollapseSpace folds whitespace runs into single spaces and trims the edges.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// PlainText strips markup (and script-like elements entirely) from an HTML
// fragment and collapses whitespace.
func PlainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return CollapseSpace(fragment)
	}
	var sb strings.Builder
	for _, n := range nodes {
		writeText(n, &sb)
	}
	return CollapseSpace(sb.String())
}

func writeText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if _, skip := droppedTags[n.DataAtom]; skip {
			return
		}
		// keep words from adjacent blocks apart
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, sb)
	}
	if n.Type == html.ElementNode {
		sb.WriteByte(' ')
	}
}
