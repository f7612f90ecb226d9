package mailparse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"mailcorpus/internal/logging"
	"mailcorpus/internal/models"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RenderInput carries everything the Markdown renderer looks at. Any field may be empty.
type RenderInput struct {
	Subject   string
	From      string
	To        []string
	Date      string
	MessageID string
	Text      string
	HTML      string
}

// Render produces one Markdown document: a short header block followed by the body.
// The body comes from HTML when present, else from the trimmed plain text.
// Render never fails; a conversion panic falls back to the plain text as given.
func Render(in RenderInput) (out string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Log.WithField("subject", in.Subject).Warnf("Markdown conversion failed: %v", r)
			out = in.Text
		}
	}()

	body := strings.TrimSpace(in.Text)
	if strings.TrimSpace(in.HTML) != "" {
		md, err := htmlToMarkdown(in.HTML)
		if err != nil {
			return in.Text
		}
		if md != "" {
			body = md
		}
	}

	header := renderHeader(in)
	switch {
	case header == "":
		return body
	case body == "":
		return header
	default:
		return header + "\n\n---\n\n" + body
	}
}

// EnsureMarkdown fills BodyMarkdown from the record's text and HTML when it is missing.
func EnsureMarkdown(r *models.EmailRecord) {
	if r.BodyMarkdown != "" {
		return
	}
	r.BodyMarkdown = Render(RenderInput{
		Subject:   r.Subject,
		From:      r.From,
		To:        r.To,
		Date:      r.Date,
		MessageID: r.MessageID,
		Text:      r.BodyText,
		HTML:      r.BodyHTML,
	})
}

func renderHeader(in RenderInput) string {
	if in.Subject == "" && in.From == "" && len(in.To) == 0 && in.Date == "" && in.MessageID == "" {
		return ""
	}

	subject := in.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	lines := []string{"# " + subject, ""}
	if in.From != "" {
		lines = append(lines, "- From: "+in.From)
	}
	if len(in.To) > 0 {
		lines = append(lines, "- To: "+strings.Join(in.To, ", "))
	}
	if in.Date != "" {
		lines = append(lines, "- Date: "+in.Date)
	}
	if in.MessageID != "" {
		lines = append(lines, "- Message-ID: "+in.MessageID)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func htmlToMarkdown(body string) (string, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	prune(doc)

	var b strings.Builder
	writeMarkdown(&b, doc)
	return normalizeMarkdown(b.String()), nil
}

func writeMarkdown(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(collapseRuns(n.Data))
		return
	case html.ElementNode:
	default:
		writeChildren(b, n)
		return
	}

	switch n.DataAtom {
	case atom.Head:
	case atom.H1, atom.H2, atom.H3:
		level := int(n.Data[1] - '0')
		b.WriteString("\n\n" + strings.Repeat("#", level) + " ")
		b.WriteString(strings.TrimSpace(childMarkdown(n)))
		b.WriteString("\n\n")
	case atom.Strong, atom.B:
		wrapInline(b, childMarkdown(n), "**")
	case atom.Em, atom.I:
		wrapInline(b, childMarkdown(n), "*")
	case atom.A:
		inner := childMarkdown(n)
		href := strings.TrimSpace(attr(n, "href"))
		if href == "" {
			b.WriteString(inner)
			return
		}
		text := strings.TrimSpace(inner)
		if text == "" {
			text = href
		}
		b.WriteString("[" + text + "](" + href + ")")
	case atom.Ul, atom.Ol:
		writeList(b, n, n.DataAtom == atom.Ol)
	case atom.P, atom.Div:
		b.WriteString("\n\n")
		writeChildren(b, n)
		b.WriteString("\n\n")
	case atom.Br:
		b.WriteString("\n")
	default:
		writeChildren(b, n)
	}
}

func writeChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeMarkdown(b, c)
	}
}

func childMarkdown(n *html.Node) string {
	var b strings.Builder
	writeChildren(&b, n)
	return b.String()
}

// wrapInline keeps surrounding spaces outside the emphasis markers.
func wrapInline(b *strings.Builder, inner, marker string) {
	text := strings.TrimSpace(inner)
	if text == "" {
		b.WriteString(inner)
		return
	}
	if strings.HasPrefix(inner, " ") {
		b.WriteString(" ")
	}
	b.WriteString(marker + text + marker)
	if strings.HasSuffix(inner, " ") {
		b.WriteString(" ")
	}
}

func writeList(b *strings.Builder, n *html.Node, ordered bool) {
	b.WriteString("\n\n")
	index := 1
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			writeMarkdown(b, c)
			continue
		}
		bullet := "- "
		if ordered {
			bullet = strconv.Itoa(index) + ". "
			index++
		}
		b.WriteString(bullet + strings.Join(strings.Fields(childMarkdown(c)), " ") + "\n")
	}
	b.WriteString("\n")
}

// collapseRuns replaces each whitespace run with one space, keeping edges.
func collapseRuns(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// normalizeMarkdown trims every line and keeps at most one blank line between blocks.
func normalizeMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
