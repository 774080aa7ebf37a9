package source

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// PageLines flattens an HTML page into trimmed, non-empty text lines in document
// order, the same token stream a user gets when copying the rendered page.
func PageLines(r io.Reader) ([]string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "svg", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			for _, part := range strings.Split(n.Data, "\n") {
				if s := strings.TrimSpace(part); s != "" {
					lines = append(lines, s)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return lines, nil
}

// SplitLines turns pasted text into the same trimmed line stream.
func SplitLines(text string) []string {
	var lines []string
	for _, part := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if s := strings.TrimSpace(part); s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}
