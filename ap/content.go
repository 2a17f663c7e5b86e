package ap

import (
	"io"
	"strings"

	xhtml "golang.org/x/net/html"
)

// htmlToText flattens note markup to plain text so the command parser
// sees what the user typed. Paragraphs and line breaks become newlines,
// everything else contributes its text content.
func htmlToText(r io.Reader) (string, error) {
	doc, err := xhtml.Parse(r)
	if err != nil {
		return "", err
	}

	var traverse func(n *xhtml.Node) string
	traverse = func(n *xhtml.Node) string {
		var result strings.Builder

		switch n.Type {
		case xhtml.TextNode:
			result.WriteString(n.Data)
		case xhtml.ElementNode:
			switch n.Data {
			case "p":
				result.WriteString("\n")
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					result.WriteString(traverse(c))
				}
			case "br":
				result.WriteString("\n")
			default:
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					result.WriteString(traverse(c))
				}
			}
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				result.WriteString(traverse(c))
			}
		}
		return result.String()
	}

	return traverse(doc), nil
}
