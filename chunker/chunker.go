// Package chunker splits extracted text into fixed-size word chunks, the
// atomic unit stored in the knowledge corpus and scored at retrieval time.
//
// Splitting is deliberately simple: whitespace tokenization, consecutive
// groups of exactly ChunkSize words, last group possibly shorter. The same
// input always yields the same boundaries, and concatenating chunk word
// sequences reconstructs the tokenized input.
package chunker

import "strings"

// Options configures the chunking behaviour.
type Options struct {
	// ChunkSize is the number of words per chunk. Default: 500.
	ChunkSize int
}

func (o *Options) defaults() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 500
	}
}

// Chunk is one text fragment with its position in the sequence.
type Chunk struct {
	Index     int    // 0-based position in the sequence
	Text      string // chunk text content
	WordCount int    // number of whitespace-separated words
}

// Split divides text into chunks of opts.ChunkSize words.
func Split(text string, opts Options) []Chunk {
	opts.defaults()

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0, (len(words)+opts.ChunkSize-1)/opts.ChunkSize)
	for start := 0; start < len(words); start += opts.ChunkSize {
		end := start + opts.ChunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      strings.Join(words[start:end], " "),
			WordCount: end - start,
		})
	}
	return chunks
}

// CountWords returns the whitespace-separated word count of text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
