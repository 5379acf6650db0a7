package index

import (
	"strings"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
)

// splitSentences segments text with prose. If segmentation fails or finds
// nothing, the trimmed text is one sentence.
func splitSentences(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	doc, err := prose.NewDocument(trimmed,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return []string{trimmed}
	}

	sentences := make([]string, 0, len(doc.Sentences()))
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			sentences = append(sentences, t)
		}
	}
	if len(sentences) == 0 {
		return []string{trimmed}
	}
	return sentences
}

// chunkSentences packs sentences into chunks of at most size runes. Each new
// chunk starts with the last overlap sentences of the previous one when they
// fit alongside at least one new sentence.
func chunkSentences(sentences []string, size, overlap int) []string {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}

	var (
		chunks []string
		cur    []string
		fresh  int
	)

	for _, sentence := range sentences {
		for _, piece := range splitLong(sentence, size) {
			if fresh > 0 && joinedLen(cur)+1+runeLen(piece) > size {
				chunks = append(chunks, strings.Join(cur, " "))
				if overlap > 0 {
					start := len(cur) - overlap
					if start < 0 {
						start = 0
					}
					cur = append([]string(nil), cur[start:]...)
				} else {
					cur = nil
				}
				fresh = 0
			}
			// drop carried-over sentences until the new one fits
			for len(cur) > 0 && fresh == 0 && joinedLen(cur)+1+runeLen(piece) > size {
				cur = cur[1:]
			}
			cur = append(cur, piece)
			fresh++
		}
	}
	if fresh > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}

	return chunks
}

// splitLong breaks a sentence longer than size on word boundaries, cutting
// single oversized words by rune count.
func splitLong(sentence string, size int) []string {
	if runeLen(sentence) <= size {
		return []string{sentence}
	}

	var (
		parts []string
		b     strings.Builder
		n     int
	)
	flush := func() {
		if n > 0 {
			parts = append(parts, b.String())
			b.Reset()
			n = 0
		}
	}

	for _, word := range strings.Fields(sentence) {
		for runeLen(word) > size {
			flush()
			r := []rune(word)
			parts = append(parts, string(r[:size]))
			word = string(r[size:])
		}
		wl := runeLen(word)
		if n > 0 && n+1+wl > size {
			flush()
		}
		if n > 0 {
			b.WriteByte(' ')
			n++
		}
		b.WriteString(word)
		n += wl
	}
	flush()

	return parts
}

func joinedLen(parts []string) int {
	if len(parts) == 0 {
		return -1
	}
	n := len(parts) - 1
	for _, p := range parts {
		n += runeLen(p)
	}
	return n
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
