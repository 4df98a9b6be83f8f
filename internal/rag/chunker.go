package rag

import (
	"fmt"
	"strings"
)

// splitSeparators are tried in strict priority order: paragraph break, line
// break, sentence boundary, word boundary, then a hard character split when
// nothing else applies.
var splitSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits raw document text into bounded, overlapping segments.
// Splitting is fully deterministic: the same input and parameters always
// produce the same chunk sequence.
type Chunker struct {
	chunkSize int
	overlap   int
}

func NewChunker(chunkSize int, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", overlap)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split segments text into chunks of at most the configured size. Adjacent
// chunks share the configured overlap of trailing/leading characters when
// the split point allows it. A document shorter than the chunk size comes
// back as a single chunk.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, splitSeparators)
}

func (c *Chunker) split(text string, separators []string) []string {
	if runeLen(text) <= c.chunkSize {
		return []string{text}
	}

	sep := ""
	rest := []string(nil)
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}
	if sep == "" {
		// No separator applies: a single oversized "word" is hard-split at
		// the character level.
		return c.hardSplit(text)
	}

	pieces := splitKeepSeparator(text, sep)
	units := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if runeLen(piece) <= c.chunkSize {
			units = append(units, piece)
			continue
		}
		units = append(units, c.split(piece, rest)...)
	}
	return c.merge(units)
}

// merge greedily packs units into chunks, seeding each new chunk with the
// previous chunk's trailing overlap characters whenever that still fits
// within the size budget.
func (c *Chunker) merge(units []string) []string {
	var chunks []string
	cur := ""
	for _, unit := range units {
		if cur == "" || runeLen(cur)+runeLen(unit) <= c.chunkSize {
			cur += unit
			continue
		}
		chunks = append(chunks, cur)
		carry := c.overlap
		if avail := c.chunkSize - runeLen(unit); carry > avail {
			carry = avail
		}
		if carry > 0 {
			cur = tailRunes(cur, carry) + unit
		} else {
			cur = unit
		}
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

func (c *Chunker) hardSplit(text string) []string {
	runes := []rune(text)
	step := c.chunkSize - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitKeepSeparator splits text on sep, keeping the separator attached to
// the preceding piece so chunk reassembly loses nothing.
func splitKeepSeparator(text string, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}
