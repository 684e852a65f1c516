package extractor

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// PlainTextStrategy decodes UTF-8 (honouring a UTF-8/UTF-16 BOM) and drops
// byte sequences it cannot decode. It never fails.
type PlainTextStrategy struct{}

func (PlainTextStrategy) Format() domain.Format { return domain.FormatPlainText }

func (PlainTextStrategy) Extract(_ context.Context, content []byte) (string, error) {
	if bytes.HasPrefix(content, utf16LEBOM) || bytes.HasPrefix(content, utf16BEBOM) {
		decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		if decoded, _, err := transform.Bytes(decoder, content); err == nil {
			return string(decoded), nil
		}
	}
	// Invalid sequences are dropped from the raw bytes; a U+FFFD present in the
	// input is kept.
	return strings.ToValidUTF8(string(bytes.TrimPrefix(content, utf8BOM)), ""), nil
}
