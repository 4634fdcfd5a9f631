package pdf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// DefaultPerPageCap limits recovered text per page to 128 KiB
const DefaultPerPageCap = 128 * 1024

// normalizeSpace turns non-printable runes into spaces and collapses runs
// of whitespace.
func normalizeSpace(s string) string {
	printable := strings.Map(func(r rune) rune {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(printable), " ")
}

// stringLiterals collects the text inside balanced parentheses of a PDF
// content stream, honoring backslash escapes, up to maxOut bytes.
func stringLiterals(s string, maxOut int) string {
	var out strings.Builder
	depth := 0
	escape := false
	in := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !in {
			if c == '(' {
				in = true
				depth = 1
			}
			continue
		}
		if escape {
			out.WriteByte(c)
			escape = false
			if out.Len() >= maxOut {
				return out.String()
			}
			continue
		}
		switch c {
		case '\\':
			escape = true
		case '(':
			depth++
			out.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				in = false
				out.WriteByte(' ')
			} else {
				out.WriteByte(c)
			}
		default:
			out.WriteByte(c)
		}
		if out.Len() >= maxOut {
			return out.String()
		}
	}
	return out.String()
}

// ExtractPages recovers the text of the given 1-based pages by dumping
// their content streams with pdfcpu and reading the string literals they
// draw. It serves pages whose fonts defeat the regular page text decoder.
// An empty selection means every page. The result is keyed by page number;
// pages without a content stream are absent.
//   - perPageCap: maximum bytes of text per page (use <=0 for default)
func ExtractPages(rs io.ReadSeeker, pages []int, perPageCap int) (texts map[int]string, err error) {
	if perPageCap <= 0 {
		perPageCap = DefaultPerPageCap
	}

	defer func() {
		if r := recover(); r != nil {
			texts = nil
			err = fmt.Errorf("pdfcpu panicked: %v", r)
		}
	}()

	tmpDir, err := os.MkdirTemp("", "count-words-pdfcpu-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var selection []string
	for _, p := range pages {
		selection = append(selection, strconv.Itoa(p))
	}
	if err := api.ExtractContent(rs, tmpDir, "doc", selection, nil); err != nil {
		return nil, fmt.Errorf("pdfcpu ExtractContent: %w", err)
	}

	return readPages(tmpDir, perPageCap)
}

// readPages loads the content dumps in dir, one file per page
func readPages(dir string, perPageCap int) (map[int]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	texts := make(map[int]string, len(ents))
	for _, de := range ents {
		if de.IsDir() {
			continue
		}
		n, ok := pageNumber(de.Name())
		if !ok {
			continue
		}
		data, _ := os.ReadFile(filepath.Join(dir, de.Name()))
		if len(data) == 0 {
			continue
		}

		txt := normalizeSpace(stringLiterals(string(data), perPageCap))
		if len(txt) > perPageCap {
			txt = txt[:perPageCap]
		}
		texts[n] = txt
	}
	return texts, nil
}

// pageNumber reads the page from dump names like doc_Content_page_12.txt
func pageNumber(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndexByte(base, '_')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
