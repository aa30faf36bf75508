package ingest

import (
	"regexp"
	"strings"
)

const defaultMaxChunkChars = 2000

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceSplit  = regexp.MustCompile(`[^.!?]+[.!?]+[ \t\r\n]*|[^.!?]+\z`)
)

// Chunk splits extracted text into ordered, bounded segments. Paragraphs
// (blank-line delimited) are accumulated until the next one would overflow
// maxChunkChars; a paragraph that alone exceeds the budget is split again on
// sentence boundaries. A single sentence longer than the budget is emitted
// whole rather than cut mid-sentence. Pure function of its inputs, so a
// rerun over the same text reproduces the same sequence.
//
// overlapChars > 0 seeds each new segment with the tail of the previous one
// to preserve continuity across boundaries. Empty or whitespace-only input
// yields zero chunks.
func Chunk(text string, maxChunkChars int, overlapChars int) []string {
	if maxChunkChars <= 0 {
		maxChunkChars = defaultMaxChunkChars
	}
	if overlapChars < 0 || overlapChars >= maxChunkChars {
		overlapChars = 0
	}

	var chunks []string
	cur := ""
	fresh := false // cur holds content not yet flushed (beyond an overlap seed)

	flush := func() {
		trimmed := strings.TrimSpace(cur)
		emitted := fresh && trimmed != ""
		if emitted {
			chunks = append(chunks, trimmed)
		}
		if emitted && overlapChars > 0 && len(trimmed) > overlapChars {
			cur = trimmed[len(trimmed)-overlapChars:]
		} else {
			cur = ""
		}
		fresh = false
	}

	add := func(piece string, sep string) {
		if cur == "" {
			cur = piece
		} else {
			cur += sep + piece
		}
		fresh = true
	}

	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) > maxChunkChars {
			flush()
			for _, sentence := range sentenceSplit.FindAllString(para, -1) {
				sentence = strings.TrimSpace(sentence)
				if sentence == "" {
					continue
				}
				if cur != "" && len(cur)+1+len(sentence) > maxChunkChars {
					flush()
					if len(cur)+1+len(sentence) > maxChunkChars {
						cur = "" // overlap seed would blow the budget
					}
				}
				add(sentence, " ")
				if len(cur) > maxChunkChars {
					// a lone sentence over budget goes out unsplit
					flush()
				}
			}
			continue
		}
		if cur != "" && len(cur)+2+len(para) > maxChunkChars {
			flush()
			if len(cur)+2+len(para) > maxChunkChars {
				cur = ""
			}
		}
		add(para, "\n\n")
	}
	flush()
	return chunks
}
