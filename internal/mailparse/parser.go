package mailparse

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"

	"mailcorpus/internal/logging"
	"mailcorpus/internal/models"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

var (
	emailAddressRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	linkRe         = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)
)

var (
	// ErrTooLarge is returned when the raw message exceeds the configured size.
	ErrTooLarge = errors.New("email exceeds size limit")
	// ErrParse is returned when no minimal message structure can be read.
	ErrParse = errors.New("email could not be parsed")
)

// Parser turns raw RFC 822 / MIME bytes into EmailRecords.
type Parser struct {
	maxBytes int64
}

// NewParser creates a Parser rejecting messages larger than maxBytes.
// A non-positive value selects models.DefaultMaxEmailBytes.
func NewParser(maxBytes int64) *Parser {
	if maxBytes <= 0 {
		maxBytes = models.DefaultMaxEmailBytes
	}
	return &Parser{maxBytes: maxBytes}
}

// bodyParts collects the first HTML and first plain-text part plus attachments in parse order.
type bodyParts struct {
	html        string
	hasHTML     bool
	text        string
	hasText     bool
	attachments []models.AttachmentRecord
}

// Parse decodes one message. Identity fields are left unset; source is recorded
// as the record path. Oversized input fails with ErrTooLarge before any parsing.
func (p *Parser) Parse(raw []byte, source string) (*models.EmailRecord, error) {
	if int64(len(raw)) > p.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes > %d)", ErrTooLarge, len(raw), p.maxBytes)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrParse)
	}

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !isRecoverable(err) {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: no message entity", ErrParse)
	}

	header := mail.Header{Header: entity.Header}
	mediaType, _, _ := entity.Header.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}

	var parts bodyParts
	if mr := entity.MultipartReader(); mr != nil {
		p.walkMultipart(mr, &parts, source)
	} else {
		p.collectBody(entity, mediaType, &parts)
	}

	cleanedHTML, textFromHTML := Sanitize(parts.html)

	bodyText := parts.text
	if bodyText == "" {
		bodyText = textFromHTML
	}
	bodyRaw := parts.html
	if bodyRaw == "" {
		bodyRaw = parts.text
	}

	record := &models.EmailRecord{
		MessageID:   strings.TrimSpace(header.Get("Message-Id")),
		Path:        source,
		From:        strings.Join(addressList(header, "From"), ", "),
		To:          addressList(header, "To"),
		Cc:          addressList(header, "Cc"),
		Bcc:         addressList(header, "Bcc"),
		Subject:     subject(header),
		Date:        strings.TrimSpace(header.Get("Date")),
		Headers:     headerMap(entity.Header),
		BodyRaw:     bodyRaw,
		BodyText:    bodyText,
		BodyHTML:    cleanedHTML,
		Attachments: parts.attachments,
		Metadata: map[string]any{
			"content_type": mediaType,
		},
	}
	if addr := extractEmailAddress(record.From); addr != "" {
		record.Metadata["from_addr"] = addr
	}
	if links := ExtractLinks(parts.text + "\n" + parts.html); len(links) > 0 {
		// float64 so the value compares equal after a JSON round trip.
		record.Metadata["links"] = float64(len(links))
	}

	EnsureMarkdown(record)

	return record, nil
}

// walkMultipart visits every leaf part depth-first. Parts with an attachment or
// inline disposition become attachments, never bodies.
func (p *Parser) walkMultipart(mr message.MultipartReader, parts *bodyParts, source string) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return
		}
		if err != nil && (part == nil || !isRecoverable(err)) {
			logging.Log.WithField("source", source).Debugf("Stopping multipart walk: %v", err)
			return
		}

		if inner := part.MultipartReader(); inner != nil {
			p.walkMultipart(inner, parts, source)
			continue
		}

		disposition, _, _ := part.Header.ContentDisposition()
		if disposition == "attachment" || disposition == "inline" {
			if att, ok := readAttachment(part, disposition); ok {
				parts.attachments = append(parts.attachments, att)
			} else {
				logging.Log.WithField("source", source).Debug("Skipping undecodable attachment")
			}
			continue
		}

		mediaType, _, _ := part.Header.ContentType()
		if mediaType == "" {
			mediaType = "text/plain"
		}
		p.collectBody(part, mediaType, parts)
	}
}

// collectBody records the part as the HTML or text body if none was seen yet.
func (p *Parser) collectBody(entity *message.Entity, mediaType string, parts *bodyParts) {
	switch {
	case mediaType == "text/html" && !parts.hasHTML:
		parts.html = readText(entity)
		parts.hasHTML = true
	case mediaType == "text/plain" && !parts.hasText:
		parts.text = readText(entity)
		parts.hasText = true
	}
}

// readText keeps whatever was read even if the stream failed midway.
func readText(entity *message.Entity) string {
	b, _ := io.ReadAll(entity.Body)
	return toUTF8(b)
}

func readAttachment(part *message.Entity, disposition string) (models.AttachmentRecord, bool) {
	payload, err := io.ReadAll(part.Body)
	if err != nil {
		return models.AttachmentRecord{}, false
	}

	mediaType, _, _ := part.Header.ContentType()
	ah := mail.AttachmentHeader{Header: part.Header}
	filename, err := ah.Filename()
	if err != nil {
		filename = ""
	}
	sum := sha256.Sum256(payload)

	return models.AttachmentRecord{
		Filename:    filename,
		ContentType: mediaType,
		SizeBytes:   int64(len(payload)),
		IsInline:    disposition == "inline",
		ContentID:   strings.TrimSpace(part.Header.Get("Content-Id")),
		Checksum:    hex.EncodeToString(sum[:]),
	}, true
}

// isRecoverable reports errors after which go-message still returns a usable entity.
func isRecoverable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

func subject(h mail.Header) string {
	if s, err := h.Subject(); err == nil {
		return strings.TrimSpace(s)
	}
	raw := h.Get("Subject")
	if decoded, err := DecodeHeader(raw); err == nil {
		return strings.TrimSpace(decoded)
	}
	return strings.TrimSpace(raw)
}

// addressList formats each address as "Name <addr>" or "addr". A header that
// does not parse as an address list is kept as one decoded string.
func addressList(h mail.Header, key string) []string {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return nil
	}

	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		if decoded, derr := DecodeHeader(raw); derr == nil {
			return []string{decoded}
		}
		return []string{raw}
	}

	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Name != "" {
			out = append(out, a.Name+" <"+a.Address+">")
		} else {
			out = append(out, a.Address)
		}
	}
	return out
}

// headerMap flattens the header; when a name repeats, the last occurrence wins.
func headerMap(h message.Header) map[string]string {
	out := make(map[string]string)
	fields := h.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		out[fields.Key()] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DecodeHeader decodes MIME-encoded headers (e.g., "=?UTF-8?B?...?=") to plain text
func DecodeHeader(encoded string) (string, error) {
	decoder := &mime.WordDecoder{CharsetReader: charsetReader}
	decoded, err := decoder.DecodeHeader(encoded)
	if err != nil {
		return "", err
	}
	return decoded, nil
}

// ExtractLinks finds all http(s) URLs in the given text, in order of appearance.
func ExtractLinks(text string) []string {
	return linkRe.FindAllString(text, -1)
}

// extractEmailAddress pulls the first bare address out of a From-style header value.
func extractEmailAddress(from string) string {
	return emailAddressRe.FindString(from)
}
