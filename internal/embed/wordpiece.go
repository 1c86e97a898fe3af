package embed

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Vocab maps subword pieces to token ids.
type Vocab struct {
	ids          map[string]int
	unknownID    int
	continuation string
	maxWordChars int
}

// VocabOptions tunes tokenization behavior.
type VocabOptions struct {
	// UnknownToken is the piece emitted for unmatchable words.
	UnknownToken string
	// Continuation is the marker prepended to non-initial pieces.
	Continuation string
	// MaxWordChars maps longer words straight to the unknown id.
	MaxWordChars int
}

func (o *VocabOptions) withDefaults() VocabOptions {
	out := VocabOptions{
		UnknownToken: "[UNK]",
		Continuation: "##",
		MaxWordChars: 100,
	}
	if o == nil {
		return out
	}
	if o.UnknownToken != "" {
		out.UnknownToken = o.UnknownToken
	}
	if o.Continuation != "" {
		out.Continuation = o.Continuation
	}
	if o.MaxWordChars > 0 {
		out.MaxWordChars = o.MaxWordChars
	}
	return out
}

// NewVocab builds a vocabulary from pieces in id order.
func NewVocab(pieces []string, opts *VocabOptions) (*Vocab, error) {
	o := opts.withDefaults()

	ids := make(map[string]int, len(pieces))
	for i, p := range pieces {
		ids[p] = i
	}

	unknownID, ok := ids[o.UnknownToken]
	if !ok {
		return nil, fmt.Errorf("vocabulary has no %s token", o.UnknownToken)
	}

	return &Vocab{
		ids:          ids,
		unknownID:    unknownID,
		continuation: o.Continuation,
		maxWordChars: o.MaxWordChars,
	}, nil
}

// LoadVocab reads a vocabulary file with one piece per line; line
// number is the token id.
func LoadVocab(path string, opts *VocabOptions) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary: %w", err)
	}
	defer f.Close()

	var pieces []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		pieces = append(pieces, strings.TrimRight(scanner.Text(), "\r\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}

	return NewVocab(pieces, opts)
}

// Size returns the number of pieces in the vocabulary.
func (v *Vocab) Size() int {
	return len(v.ids)
}

// UnknownID returns the id of the unknown token.
func (v *Vocab) UnknownID() int {
	return v.unknownID
}

// Tokenize maps text to token ids: normalize, pre-tokenize, then greedy
// longest-match-first wordpiece per word.
func (v *Vocab) Tokenize(text string) []int {
	var ids []int
	for _, word := range preTokenize(normalizeText(text)) {
		ids = append(ids, v.tokenizeWord(word)...)
	}
	return ids
}

// tokenizeWord splits one word into subword ids. No matching prefix at
// the start of the word collapses the whole word to the unknown id.
func (v *Vocab) tokenizeWord(word string) []int {
	runes := []rune(word)
	if len(runes) > v.maxWordChars {
		return []int{v.unknownID}
	}

	var ids []int
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = v.continuation + piece
			}
			if id, ok := v.ids[piece]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			// no piece matches; the whole word becomes unknown
			return []int{v.unknownID}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}
