// Package tokenizer resolves tokenizer names to encoders that turn text into token ids.
package tokenizer

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultName is the tokenizer used when none is configured.
const DefaultName = "cl100k_base"

var (
	ErrUnknownModel = errors.New("unknown tokenizer")
	ErrEncode       = errors.New("encode failed")
)

// Encoder converts text into token ids.
type Encoder interface {
	// Name is recorded in document metadata.
	Name() string
	// Encode tokenizes text, keeping at most maxLen ids. maxLen <= 0 keeps all of them.
	Encode(text string, maxLen int) ([]int, error)
}

// encodings maps accepted names to BPE encodings. Resolving here keeps unknown names
// from triggering a download.
var encodings = map[string]string{
	"cl100k_base": "cl100k_base",
	"o200k_base":  "o200k_base",
	"p50k_base":   "p50k_base",
	"p50k_edit":   "p50k_edit",
	"r50k_base":   "r50k_base",

	"gpt-4o":                 "o200k_base",
	"gpt-4":                  "cl100k_base",
	"gpt-3.5-turbo":          "cl100k_base",
	"text-embedding-ada-002": "cl100k_base",
	"text-embedding-3-small": "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"text-davinci-003":       "p50k_base",
	"davinci":                "r50k_base",
}

// Names lists every accepted tokenizer name.
func Names() []string {
	names := make([]string, 0, len(encodings))
	for name := range encodings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the BPE encoding behind a tokenizer name.
func Resolve(name string) (string, error) {
	enc, ok := encodings[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return enc, nil
}

// Load resolves name and loads its BPE ranks. The first load of an encoding may fetch the
// rank file; later loads hit the tiktoken cache.
func Load(name string) (Encoder, error) {
	enc, err := Resolve(name)
	if err != nil {
		return nil, err
	}
	tk, err := tiktoken.GetEncoding(enc)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", enc, err)
	}
	return &tiktokenEncoder{name: name, tk: tk}, nil
}

type tiktokenEncoder struct {
	name string
	tk   *tiktoken.Tiktoken
}

func (e *tiktokenEncoder) Name() string {
	return e.name
}

func (e *tiktokenEncoder) Encode(text string, maxLen int) (ids []int, err error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrEncode)
	}
	defer func() {
		if r := recover(); r != nil {
			ids = nil
			err = fmt.Errorf("%w: %v", ErrEncode, r)
		}
	}()
	return Truncate(e.tk.Encode(text, nil, nil), maxLen), nil
}

// Truncate keeps the first maxLen ids. maxLen <= 0 keeps all of them.
func Truncate(ids []int, maxLen int) []int {
	if maxLen > 0 && len(ids) > maxLen {
		return ids[:maxLen]
	}
	return ids
}
