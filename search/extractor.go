package search

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"count-words/config"
	pdftext "count-words/search/pdf"
)

var (
	// ErrNotUTF8 is returned for TXT and CSV files that are not valid UTF-8
	ErrNotUTF8 = errors.New("content is not valid UTF-8")

	// ErrNoExtractor is returned when no extractor is registered for a kind
	ErrNoExtractor = errors.New("no extractor registered")
)

// unitSeparator joins pages, rows and paragraphs. A term without a newline
// therefore never matches across two of them.
const unitSeparator = "\n"

// Extractor defines the interface for extracting text from document formats
type Extractor interface {
	// ExtractText takes raw file bytes and returns extracted plain text
	ExtractText(data []byte) (string, error)
}

// ExtractorRegistry holds extractors for different file types
type ExtractorRegistry struct {
	extractors map[config.Kind]Extractor
}

// NewExtractorRegistry creates a new registry with built-in extractors
func NewExtractorRegistry() *ExtractorRegistry {
	reg := &ExtractorRegistry{
		extractors: make(map[config.Kind]Extractor),
	}

	reg.Register(config.KindPDF, &PDFExtractor{})
	reg.Register(config.KindTXT, &TXTExtractor{})
	reg.Register(config.KindCSV, &CSVExtractor{})
	reg.Register(config.KindDOCX, &DOCXExtractor{})

	return reg
}

// Register installs or replaces the extractor for kind
func (r *ExtractorRegistry) Register(kind config.Kind, e Extractor) {
	r.extractors[kind] = e
}

// GetExtractor returns the extractor for a given kind
func (r *ExtractorRegistry) GetExtractor(kind config.Kind) (Extractor, bool) {
	extractor, exists := r.extractors[kind]
	return extractor, exists
}

// ExtractFile reads path and extracts its text. Panics raised by parsing
// libraries are turned into errors so one bad file cannot stop a scan.
func (r *ExtractorRegistry) ExtractFile(path string, kind config.Kind) (text string, err error) {
	extractor, ok := r.GetExtractor(kind)
	if !ok {
		return "", fmt.Errorf("%w for %q", ErrNoExtractor, kind)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%s extractor panicked: %v", kind, rec)
		}
	}()

	return extractor.ExtractText(data)
}

// TXTExtractor returns file content as UTF-8 text
type TXTExtractor struct{}

// ExtractText implements the Extractor interface for TXT files
func (e *TXTExtractor) ExtractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrNotUTF8
	}
	return string(data), nil
}

// CSVExtractor re-serializes rows with a comma between fields. The join can
// produce matches spanning two cells; that is intended.
type CSVExtractor struct{}

// ExtractText implements the Extractor interface for CSV files
func (e *CSVExtractor) ExtractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrNotUTF8
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, strings.Join(record, ","))
	}

	return strings.Join(rows, unitSeparator), nil
}

// PDFExtractor extracts text from .pdf files page by page
type PDFExtractor struct{}

// ExtractText implements the Extractor interface for PDF files
func (e *PDFExtractor) ExtractText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	// Safely obtain number of pages (library may panic on malformed PDFs).
	pages := 0
	var numErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				numErr = fmt.Errorf("read page tree: %v", r)
			}
		}()
		pages = reader.NumPage()
	}()
	if numErr != nil {
		return "", numErr
	}

	texts := make([]string, pages)
	var failed []int

	// A page without text counts as empty. Pages the library cannot decode
	// are retried below from their raw content streams.
	for i := 1; i <= pages; i++ {
		func() {
			defer func() {
				if r := recover(); r != nil {
					failed = append(failed, i)
				}
			}()
			page := reader.Page(i)
			if page.V.IsNull() {
				return
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				failed = append(failed, i)
				return
			}
			texts[i-1] = text
		}()
	}

	if len(failed) > 0 {
		recovered, err := pdftext.ExtractPages(bytes.NewReader(data), failed, 0)
		if err == nil {
			for _, n := range failed {
				texts[n-1] = recovered[n]
			}
		}
	}

	return strings.Join(texts, unitSeparator), nil
}

// DOCXExtractor extracts body paragraph text from .docx files. Tables,
// headers, footers and text boxes are not part of the result.
type DOCXExtractor struct{}

// ExtractText implements the Extractor interface for DOCX files
func (e *DOCXExtractor) ExtractText(data []byte) (string, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, file := range zipReader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()

		paragraphs, err := bodyParagraphs(rc)
		if err != nil {
			return "", err
		}
		return strings.Join(paragraphs, unitSeparator), nil
	}

	return "", errors.New("docx has no word/document.xml")
}

// skippedSubtrees hold drawings and text boxes. Word stores a text box in
// both branches of mc:AlternateContent.
var skippedSubtrees = map[string]bool{
	"AlternateContent": true,
	"txbxContent":      true,
	"pict":             true,
}

// bodyParagraphs streams document.xml and returns the text of every w:p that
// is a direct child of w:body.
func bodyParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		stack      []string
		paragraphs []string
		current    strings.Builder
		inPara     bool
		paraDepth  int
		skipDepth  int // stack depth of the subtree being ignored, 0 if none
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if skipDepth > 0 {
				stack = append(stack, name)
				continue
			}
			if inPara && skippedSubtrees[name] {
				stack = append(stack, name)
				skipDepth = len(stack)
				continue
			}
			if !inPara && name == "p" && len(stack) > 0 && stack[len(stack)-1] == "body" {
				inPara = true
				paraDepth = len(stack)
				current.Reset()
			} else if inPara {
				switch name {
				case "tab", "ptab":
					current.WriteByte('\t')
				case "br", "cr":
					current.WriteByte('\n')
				case "noBreakHyphen":
					current.WriteByte('-')
				}
			}
			stack = append(stack, name)

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			stack = stack[:len(stack)-1]
			if skipDepth > 0 {
				if len(stack) < skipDepth {
					skipDepth = 0
				}
				continue
			}
			if inPara && len(stack) == paraDepth && t.Name.Local == "p" {
				paragraphs = append(paragraphs, current.String())
				inPara = false
			}

		case xml.CharData:
			if inPara && skipDepth == 0 && len(stack) > 0 && stack[len(stack)-1] == "t" {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}
