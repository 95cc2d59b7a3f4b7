// Package chunker splits extracted document text into overlapping
// segments sized for embedding.
package chunker

import (
	"errors"
	"strings"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

var ErrInvalidConfig = errors.New("chunker: overlap must be non-negative and less than chunk size")

// Segment is one contiguous piece of the input text. Start and End are
// rune offsets of the window the segment was cut from, before trimming.
type Segment struct {
	Text  string
	Start int
	End   int
}

type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

func New(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize < 1 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, ErrInvalidConfig
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

func NewDefault() *Chunker {
	c, _ := New(DefaultChunkSize, DefaultChunkOverlap)
	return c
}

// Chunk splits text into overlapping segments. The candidate window is
// [start, start+chunkSize); when the window does not reach the end of the
// text the cut is pulled back to the last sentence terminator, then the
// last space, before falling back to the hard boundary. Empty segments
// are skipped. Deterministic: same input, same output.
func (c *Chunker) Chunk(text string) []Segment {
	runes := []rune(text)
	textLen := len(runes)
	if textLen == 0 {
		return nil
	}

	var chunks []Segment
	start := 0

	for start < textLen {
		end := start + c.chunkSize
		if end > textLen {
			end = textLen
		}

		if end < textLen {
			if se := lastSentenceEnd(runes, start, end); se > start {
				end = se + 1 // keep the punctuation
			} else if sp := lastSpace(runes, start, end); sp > start {
				end = sp
			}
		}

		if seg := strings.TrimSpace(string(runes[start:end])); seg != "" {
			chunks = append(chunks, Segment{Text: seg, Start: start, End: end})
		}

		if end >= textLen {
			break
		}
		next := end - c.chunkOverlap
		if next <= start {
			// A short boundary cut would walk backwards; drop the
			// overlap for this step so the scan always advances.
			next = end
		}
		start = next
	}

	return chunks
}

// ChunkBySentences groups up to maxSentences sentences per segment.
func (c *Chunker) ChunkBySentences(text string, maxSentences int) []Segment {
	if text == "" || maxSentences < 1 {
		return nil
	}

	sentences := splitSentences(text)
	var chunks []Segment
	for i := 0; i < len(sentences); i += maxSentences {
		j := i + maxSentences
		if j > len(sentences) {
			j = len(sentences)
		}
		group := sentences[i:j]

		parts := make([]string, len(group))
		for k, s := range group {
			parts[k] = s.Text
		}
		chunks = append(chunks, Segment{
			Text:  strings.Join(parts, " "),
			Start: group[0].Start,
			End:   group[len(group)-1].End,
		})
	}
	return chunks
}

// ChunkByParagraphs emits one segment per paragraph; paragraphs longer
// than the chunk size fall back to the sliding-window split.
func (c *Chunker) ChunkByParagraphs(text string) []Segment {
	if text == "" {
		return nil
	}

	var chunks []Segment
	pos := 0
	for _, para := range strings.Split(text, "\n\n") {
		paraLen := len([]rune(para))
		trimmed := strings.TrimSpace(para)
		if trimmed != "" {
			if len([]rune(trimmed)) > c.chunkSize {
				for _, sub := range c.Chunk(trimmed) {
					chunks = append(chunks, Segment{
						Text:  sub.Text,
						Start: pos + sub.Start,
						End:   pos + sub.End,
					})
				}
			} else {
				chunks = append(chunks, Segment{Text: trimmed, Start: pos, End: pos + paraLen})
			}
		}
		pos += paraLen + 2 // the \n\n separator
	}
	return chunks
}

func lastSentenceEnd(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		switch runes[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

func lastSpace(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

// splitSentences scans for terminator-then-whitespace boundaries.
// Offsets are rune positions into the original text.
func splitSentences(text string) []Segment {
	runes := []rune(text)
	var sentences []Segment
	start := 0

	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					sentences = append(sentences, Segment{Text: s, Start: start, End: i + 1})
				}
				start = i + 1
			}
		}
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, Segment{Text: s, Start: start, End: len(runes)})
		}
	}
	return sentences
}
