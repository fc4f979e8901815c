// Package chunker splits documents into overlapping, size-bounded chunks
// by recursively trying coarser separators before finer ones.
package chunker

import (
	"strings"
	"unicode/utf8"

	"healthcare-rag/internal/model"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// DefaultSeparators go from paragraph to word boundaries.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

func NewSplitter(chunkSize, overlap int, separators ...string) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: separators,
	}
}

// Split chunks every document in order. Chunks keep their document's source.
func (s *Splitter) Split(documents []model.Document) []model.Chunk {
	var chunks []model.Chunk
	for _, doc := range documents {
		for _, text := range s.SplitText(doc.Text) {
			chunks = append(chunks, model.Chunk{Source: doc.Source, Text: text})
		}
	}
	return chunks
}

func (s *Splitter) SplitText(text string) []string {
	return s.splitText(text, s.separators)
}

func (s *Splitter) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var out []string
	var pending []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if length(piece) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			out = append(out, s.merge(pending)...)
			pending = nil
		}
		if len(rest) == 0 {
			// Nothing finer to split on; keep the oversized run whole.
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				out = append(out, trimmed)
			}
			continue
		}
		out = append(out, s.splitText(piece, rest)...)
	}
	if len(pending) > 0 {
		out = append(out, s.merge(pending)...)
	}
	return out
}

// merge packs small pieces into chunks of at most chunkSize, carrying up to
// overlap characters of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var out []string
	var window []string
	total := 0
	for _, piece := range pieces {
		n := length(piece)
		if total+n > s.chunkSize && len(window) > 0 {
			if doc := strings.TrimSpace(strings.Join(window, "")); doc != "" {
				out = append(out, doc)
			}
			for total > s.overlap || (total+n > s.chunkSize && total > 0) {
				total -= length(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(window, "")); doc != "" {
		out = append(out, doc)
	}
	return out
}

// splitKeepingSeparator attaches each separator to the start of the piece that follows it.
func splitKeepingSeparator(text, separator string) []string {
	if separator == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, separator)
	out := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = separator + part
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
