// Package extract pulls usable content out of uploaded files: text from
// digital documents and a PCM audio track from media.
package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
	"github.com/ledongthuc/pdf"
)

const (
	wordNamespace   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	docxBodyPart    = "word/document.xml"
	maxDocxBodySize = 64 << 20
	maxPDFTextSize  = 64 << 20
)

var errNotUTF8 = errors.New("file is not valid UTF-8 text")

// DocumentExtractor reads text straight out of formats that carry it
// digitally. Anything it cannot read yields blank text so callers can fall
// back to recognition.
type DocumentExtractor struct{}

func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

func (e *DocumentExtractor) Extract(ctx context.Context, path string) (string, error) {
	log := logging.NewLogger(ctx)

	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".md":
		text, err = readPlainText(path)
	case ".docx":
		text, err = readDocx(path)
	case ".pdf":
		text, err = readPDF(path)
	default:
		return "", nil
	}

	if err != nil {
		log.Warnf("direct extraction of %s failed, falling back: %v", filepath.Base(path), err)
		return "", nil
	}
	return text, nil
}

func readPlainText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	if !utf8.Valid(content) {
		return "", utils.WrapIfNotNil(errNotUTF8)
	}
	return strings.TrimPrefix(string(content), "\ufeff"), nil
}

func readDocx(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != docxBodyPart {
			continue
		}
		body, err := file.Open()
		if err != nil {
			return "", utils.WrapIfNotNil(err)
		}
		defer body.Close()
		return docxText(io.LimitReader(body, maxDocxBodySize))
	}
	return "", utils.WrapIfNotNil(errors.New("docx has no " + docxBodyPart))
}

// readPDF returns the text layer of a digital PDF. Scans have none and come
// back blank. The parser panics on some malformed files, which is reported as
// an error like any other read failure.
func readPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = utils.WrapIfNotNil(fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	defer file.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	content, err := io.ReadAll(io.LimitReader(plain, maxPDFTextSize))
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	return string(content), nil
}

// docxText walks WordprocessingML: w:t runs are text, w:tab and w:br are
// whitespace, and each w:p ends a line.
func docxText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var (
		out    strings.Builder
		inText bool
	)
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", utils.WrapIfNotNil(err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br", "cr":
				out.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}
	return out.String(), nil
}

var _ model.TextExtractor = (*DocumentExtractor)(nil)
