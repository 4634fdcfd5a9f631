package archive

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"

	"count-words/config"
)

// Candidate is one legacy codepage the decoder may try for an entry name
type Candidate struct {
	Name     string
	Encoding encoding.Encoding
}

// codepages maps setting names to encodings. Adding a codepage here and to
// config.KnownFilenameEncodings is all that is needed to make it selectable.
var codepages = map[string]encoding.Encoding{
	"gbk":       simplifiedchinese.GBK,
	"gb18030":   simplifiedchinese.GB18030,
	"big5":      traditionalchinese.Big5,
	"shift_jis": japanese.ShiftJIS,
	"euc-jp":    japanese.EUCJP,
	"euc-kr":    korean.EUCKR,
	"cp437":     charmap.CodePage437,
}

// Decoder recovers readable names from archive metadata that may have been
// written in a regional codepage instead of UTF-8.
type Decoder struct {
	candidates []Candidate
}

// NewDecoder builds a decoder trying the named codepages in order
func NewDecoder(names ...string) (*Decoder, error) {
	d := &Decoder{candidates: make([]Candidate, 0, len(names))}
	for _, name := range names {
		enc, ok := codepages[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown filename encoding %q", name)
		}
		d.candidates = append(d.candidates, Candidate{Name: name, Encoding: enc})
	}
	return d, nil
}

// DefaultDecoder returns a decoder for config.DefaultFilenameEncodings
func DefaultDecoder() *Decoder {
	d, err := NewDecoder(config.DefaultFilenameEncodings...)
	if err != nil {
		panic(err)
	}
	return d
}

// Candidates returns the codepages in the order they are tried
func (d *Decoder) Candidates() []Candidate {
	out := make([]Candidate, len(d.candidates))
	copy(out, d.candidates)
	return out
}

// Decode returns raw unchanged when it is valid UTF-8, otherwise the first
// candidate decoding that looks clean. When nothing fits, raw is returned
// as is; ambiguous inputs may decode to the wrong but harmless name.
func (d *Decoder) Decode(raw string) string {
	name, _ := d.DecodeWith(raw)
	return name
}

// DecodeWith is Decode that also reports which candidate matched ("utf-8"
// for untouched names, "" when falling back to the raw bytes).
func (d *Decoder) DecodeWith(raw string) (string, string) {
	if utf8.ValidString(raw) {
		return raw, "utf-8"
	}
	for _, c := range d.candidates {
		out, err := c.Encoding.NewDecoder().String(raw)
		if err != nil {
			continue
		}
		if cleanDecode(out) {
			return out, c.Name
		}
	}
	return raw, ""
}

// cleanDecode is the success predicate: no replacement runes, no C0 controls
func cleanDecode(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r == utf8.RuneError {
			return false
		}
		if r < 0x20 || r == 0x7f || (unicode.IsControl(r) && r < 0xa0) {
			return false
		}
	}
	return true
}
