// Package segment packs subtitle entries into token-bounded request groups.
package segment

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/MimeLyc/subs-ai/internal/subtitle"
	"github.com/MimeLyc/subs-ai/internal/tokenizer"
)

// DefaultOverhead covers the "\nNN. " delimiter added per entry.
const DefaultOverhead = 5

var ErrInvalidBudget = errors.New("token budget must be positive")

// Group is an ordered run of entries sent in one model request.
type Group []subtitle.Entry

// Segmenter packs entries greedily in order. Entries are never split,
// reordered or merged.
type Segmenter struct {
	Tokenizer    tokenizer.Factory
	Instructions string // system prompt; its cost seeds every group
	Overhead     int
}

func New(factory tokenizer.Factory, instructions string) *Segmenter {
	return &Segmenter{
		Tokenizer:    factory,
		Instructions: instructions,
		Overhead:     DefaultOverhead,
	}
}

// Segment splits entries into groups whose instructions, entry costs and
// per-entry overhead fit within budget. An entry that alone exceeds the
// budget becomes a group of its own.
func (s *Segmenter) Segment(entries []subtitle.Entry, budget int) ([]Group, error) {
	if budget <= 0 {
		return nil, ErrInvalidBudget
	}
	if len(entries) == 0 {
		return nil, nil
	}

	tk, err := s.Tokenizer()
	if err != nil {
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}
	defer tk.Release()

	seed := tk.Count(s.Instructions)
	running := seed

	var groups []Group
	var current Group
	for _, entry := range entries {
		cost := tk.Count(entry.Content) + s.Overhead
		if len(current) > 0 && running+cost > budget {
			groups = append(groups, current)
			current = nil
			running = seed
		}
		current = append(current, entry)
		running += cost
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups, nil
}

// Request renders the numbered request text for g. The result is the cache
// and job key for the group.
func Request(g Group) string {
	var b strings.Builder
	for i, entry := range g {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(entry.Content)
	}
	return b.String()
}

var numbering = regexp.MustCompile(`^\d+\.( |$)`)

// SplitNumbered splits numbered model output (or a request) into its
// unnumbered lines.
func SplitNumbered(text string) []string {
	raw := strings.Split(strings.TrimSpace(text), "\n")
	ret := make([]string, len(raw))
	for i, line := range raw {
		ret[i] = numbering.ReplaceAllString(strings.TrimSpace(line), "")
	}
	return ret
}

// LineCount is the number of lines a request expects back.
func LineCount(request string) int {
	return strings.Count(request, "\n") + 1
}
