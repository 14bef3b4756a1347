package markdown

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// Parser renders reporter-supplied markdown into HTML that is safe to embed
// in notification emails.
type Parser struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithHardWraps(),
			goldmarkhtml.WithXHTML(),
		),
	)

	sanitizer := bluemonday.UGCPolicy()
	sanitizer.RequireNoFollowOnLinks(true)
	sanitizer.AddTargetBlankToFullyQualifiedLinks(true)

	return &Parser{
		md:        md,
		sanitizer: sanitizer,
	}
}

// Parse converts markdown to sanitized HTML.
func (p *Parser) Parse(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	err := p.md.Convert(source, &buf)
	if err != nil {
		return nil, err
	}
	return p.sanitizer.SanitizeBytes(buf.Bytes()), nil
}

// ParseString is Parse for string input; on render failure it falls back to
// the escaped source so a notification is never blocked on formatting.
func (p *Parser) ParseString(source string) string {
	out, err := p.Parse([]byte(source))
	if err != nil {
		return bluemonday.StrictPolicy().Sanitize(source)
	}
	return string(out)
}
