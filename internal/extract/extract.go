package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	MimePDF   = "application/pdf"
	MimePlain = "text/plain"
)

// ErrUnsupported is returned for payloads that are not PDFs.
var ErrUnsupported = errors.New("unsupported document type")

// Result is the text produced for one document.
type Result struct {
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// Extractor turns raw document bytes into text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, fileName string) (Result, error)
}

// NewResult fills Length from the text.
func NewResult(text string) Result {
	return Result{Text: text, Length: utf8.RuneCountInString(text)}
}

// IsPlainText reports whether a blob content type is already text.
func IsPlainText(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}
	return mediaType == MimePlain
}

// DetectType returns the sniffed media type of data without parameters.
func DetectType(data []byte) string {
	mediaType, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}

// PDF extracts text locally with github.com/ledongthuc/pdf.
type PDF struct{}

// Extract returns the plain text of a PDF payload.
func (PDF) Extract(ctx context.Context, data []byte, fileName string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if DetectType(data) != MimePDF {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupported, fileName)
	}
	text, err := extractPDF(data)
	if err != nil {
		return Result{}, fmt.Errorf("extract pdf %s: %w", fileName, err)
	}
	return NewResult(strings.TrimSpace(text)), nil
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var _ Extractor = PDF{}
