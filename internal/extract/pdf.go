// Package extract pulls plain text out of retrieved bill documents.
package extract

import (
	"bytes"
	"errors"
	"fmt"

	pdf "github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned when a document cannot be read as a PDF.
var ErrUnreadable = errors.New("extract: unreadable document")

// PDF extracts text from PDF bill documents.
type PDF struct{}

// FirstPageText returns the plain text of the document's first page.
// Bills carry all billed line items on page one; later pages are inserts.
func (PDF) FirstPageText(content []byte) (text string, err error) {
	// The underlying reader panics on some truncated documents.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if reader.NumPage() < 1 {
		return "", fmt.Errorf("%w: no pages", ErrUnreadable)
	}

	page := reader.Page(1)
	if page.V.IsNull() {
		return "", fmt.Errorf("%w: empty first page", ErrUnreadable)
	}

	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return text, nil
}
