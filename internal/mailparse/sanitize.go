package mailparse

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxTextChars caps the plain text extracted from an HTML body.
const MaxTextChars = 50000

// strippedElements are removed together with their content.
var strippedElements = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Meta:   true,
	atom.Object: true,
	atom.Iframe: true,
	atom.Form:   true,
	atom.Link:   true,
}

// Sanitize removes unsafe and tracking constructs from an HTML body and returns
// the cleaned HTML together with its whitespace-collapsed text.
//
// Images without a src or pointing at cid: content are dropped as likely
// trackers or placeholders. This is a best-effort heuristic, not a security boundary.
func Sanitize(body string) (string, string) {
	if strings.TrimSpace(body) == "" {
		return "", ""
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", ""
	}
	prune(doc)

	text := truncateRunes(collapseWhitespace(nodeText(doc)), MaxTextChars)

	var b strings.Builder
	if strings.Contains(strings.ToLower(body), "<html") {
		if err := html.Render(&b, doc); err != nil {
			return "", text
		}
		return b.String(), text
	}

	// Fragments are rendered without the html/head/body wrapper the parser adds.
	if bodyNode := findElement(doc, atom.Body); bodyNode != nil {
		for c := bodyNode.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&b, c); err != nil {
				return "", text
			}
		}
	}
	return b.String(), text
}

// prune detaches every disallowed element below n.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if dropNode(c) {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}

func dropNode(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if strippedElements[n.DataAtom] {
		return true
	}
	if n.DataAtom == atom.Img {
		src := strings.ToLower(strings.TrimSpace(attr(n, "src")))
		return src == "" || strings.HasPrefix(src, "cid:")
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// nodeText joins all text nodes with a single space separator.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
