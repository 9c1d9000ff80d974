package render

import "strings"

// escapeText escapes a string for XHTML text content.
func escapeText(s string) string {
	return escape(s, false)
}

// escapeAttr escapes a string for an XHTML attribute value. Angle brackets
// are escaped here too so attribute content can never break well-formedness.
func escapeAttr(s string) string {
	return escape(s, true)
}

func escape(s string, attr bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch c {
		case '&':
			b.WriteString("&amp;")
		case '"':
			if attr {
				b.WriteString("&quot;")
			} else {
				b.WriteRune(c)
			}
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
