package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/MimeLyc/subs-ai/pkg/log"
)

const fallbackEncoding = "cl100k_base"

// Tokenizer counts model tokens. Release frees encoder state once a
// segmentation pass is done; a released tokenizer must not be reused.
type Tokenizer interface {
	Count(text string) int
	Release()
}

// Factory builds a fresh tokenizer for one segmentation pass.
type Factory func() (Tokenizer, error)

// Tiktoken counts tokens with the BPE ranks of an OpenAI model.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the encoding for model, falling back to cl100k_base for
// models tiktoken does not know.
func NewTiktoken(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("load %s encoding: %w", fallbackEncoding, err)
		}
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *Tiktoken) Release() {
	t.enc = nil
}

// Approx estimates four characters per token.
type Approx struct{}

func (Approx) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

func (Approx) Release() {}

// NewFactory returns a factory for the named tokenizer kind ("tiktoken" or
// "approx"). When the BPE ranks cannot be loaded the factory degrades to Approx.
func NewFactory(kind, model string) Factory {
	if kind == "approx" {
		return func() (Tokenizer, error) { return Approx{}, nil }
	}
	return func() (Tokenizer, error) {
		tk, err := NewTiktoken(model)
		if err != nil {
			log.Warn("Tokenizer unavailable for %s, using estimate: %v", model, err)
			return Approx{}, nil
		}
		return tk, nil
	}
}
