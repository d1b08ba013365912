package render

import (
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Decoder turns raw stored content into text. UTF-8 input is validated
// strictly; other charsets go through their x/text decoder.
type Decoder struct {
	name string
	enc  encoding.Encoding
}

func NewDecoder(label string) (*Decoder, error) {
	if label == "" || isUTF8(label) {
		return &Decoder{name: "utf-8"}, nil
	}
	enc, name := charset.Lookup(label)
	if enc == nil {
		return nil, fmt.Errorf("unknown charset %q", label)
	}
	if name == "utf-8" {
		return &Decoder{name: name}, nil
	}
	return &Decoder{name: name, enc: enc}, nil
}

func isUTF8(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}

func (d *Decoder) Name() string {
	return d.name
}

func (d *Decoder) Decode(raw []byte) (string, error) {
	if d.enc == nil {
		out, _, err := transform.Bytes(encoding.UTF8Validator, raw)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", d.name, err)
		}
		return string(out), nil
	}
	out, err := d.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", d.name, err)
	}
	return string(out), nil
}
