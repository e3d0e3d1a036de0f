package extract

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/ledongthuc/pdf"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// PDFExtractor extracts page text from .pdf files.
type PDFExtractor struct{}

// ExtractText walks the pages and concatenates their text runs. The PDF
// library can panic on malformed input, so every page is guarded.
func (e *PDFExtractor) ExtractText(data []byte) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", errors.New("pdf parse panic")
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		func() {
			defer func() { _ = recover() }()
			page := reader.Page(i)
			if page.V.IsNull() {
				return
			}
			for _, item := range page.Content().Text {
				b.WriteString(item.S)
				b.WriteByte(' ')
			}
			b.WriteByte('\n')
		}()
	}
	return strings.TrimSpace(b.String()), nil
}

// HTMLExtractor strips tags and decodes common entities from .html files.
type HTMLExtractor struct{}

func (e *HTMLExtractor) ExtractText(data []byte) (string, error) {
	text := tagRe.ReplaceAllString(string(data), " ")
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&nbsp;", " ",
	)
	text = replacer.Replace(text)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " ")), nil
}

// EMLExtractor extracts the body text of .eml MIME messages, preferring the
// plain-text part and falling back to stripped HTML.
type EMLExtractor struct{}

func (e *EMLExtractor) ExtractText(data []byte) (string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	text := env.Text
	if text == "" && env.HTML != "" {
		text = tagRe.ReplaceAllString(env.HTML, " ")
	}
	subject := env.GetHeader("Subject")
	if subject != "" {
		text = subject + "\n" + text
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " ")), nil
}
