package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var stateGlobals = []string{
	"window.__INITIAL_STATE__",
	"window.__APP_STATE__",
}

// EmbeddedState returns the application state serialized into the page:
// props.pageProps of the Next.js data script, or else the first inline
// window.__INITIAL_STATE__ / window.__APP_STATE__ assignment.
func EmbeddedState(doc *goquery.Document) (any, bool) {
	if doc == nil {
		return nil, false
	}
	if raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text()); raw != "" {
		if payload, ok := DecodeJSON([]byte(raw)); ok {
			if props, ok := Lookup(payload, "props.pageProps"); ok {
				return props, true
			}
		}
	}

	var (
		state any
		found bool
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if typ, ok := s.Attr("type"); ok && strings.Contains(typ, "json") {
			return true
		}
		state, found = assignedState(s.Text())
		return !found
	})
	return state, found
}

func assignedState(script string) (any, bool) {
	for _, global := range stateGlobals {
		idx := strings.Index(script, global)
		if idx < 0 {
			continue
		}
		rest := script[idx+len(global):]
		eq := strings.IndexByte(rest, '=')
		if eq < 0 || strings.TrimSpace(rest[:eq]) != "" {
			continue
		}
		start := strings.IndexByte(rest[eq:], '{')
		if start < 0 {
			continue
		}
		start += eq
		obj, ok := extractJSONObject(rest, start)
		if !ok {
			continue
		}
		if payload, ok := DecodeJSON([]byte(obj)); ok {
			return payload, true
		}
	}
	return nil, false
}

// extractJSONObject returns the balanced {...} starting at start, skipping
// braces inside string literals.
func extractJSONObject(body string, start int) (string, bool) {
	depth := 0
	inString := false
	escape := false

	for i := start; i < len(body); i++ {
		c := body[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			if c == '\\' {
				escape = true
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return body[start : i+1], true
			}
		}
	}
	return "", false
}
