// Package chunk splits free text into retrievable units for embedding.
package chunk

import "strings"

// Delimiter is the sentence boundary the splitter cuts on.
//
// A single-character delimiter is a known weak point: abbreviations,
// decimal numbers and non-English punctuation all break it. It is kept
// because retrieval quality is tuned against it; a replacement heuristic
// must stay deterministic and never emit empty chunks.
const Delimiter = "."

// Split cuts input into an ordered sequence of non-empty chunks.
//
// The sequence is deterministic: the same input always yields the same
// chunks. Pieces that trim to the empty string (consecutive delimiters,
// stray whitespace) are dropped, so every returned chunk is non-empty
// after trimming.
func Split(input string) []string {
	pieces := strings.Split(strings.TrimSpace(input), Delimiter)

	chunks := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p) == "" {
			continue
		}
		chunks = append(chunks, p)
	}
	return chunks
}
