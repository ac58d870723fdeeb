// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devgateway

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

const (
	// NoContextAnswer is returned when retrieval finds nothing.
	NoContextAnswer = "I couldn't find anything relevant to that in the knowledge base. " +
		"Try uploading a document that covers it, or rephrase the question."

	// maxAnswerSentences caps how many cited sentences an answer carries.
	maxAnswerSentences = 3
)

type scoredSentence struct {
	text     string
	filename string
	source   int
	score    int
	order    int
}

// composeAnswer builds an extractive answer from the retrieved chunks: the
// sentences sharing the most terms with the question, each attributed to its
// source number and file.
func composeAnswer(question string, chunks []Chunk) string {
	if len(chunks) == 0 {
		return NoContextAnswer
	}

	terms := questionTerms(question)
	var candidates []scoredSentence
	for i, ch := range chunks {
		for _, sentence := range splitSentences(ch.Content) {
			candidates = append(candidates, scoredSentence{
				text:     sentence,
				filename: ch.Filename,
				source:   i + 1,
				score:    overlap(terms, sentence),
				order:    len(candidates),
			})
		}
	}

	// Rank chunks already sorted best first, so ties keep retrieval order.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	picked := make([]scoredSentence, 0, maxAnswerSentences)
	for _, c := range candidates {
		if len(picked) == maxAnswerSentences {
			break
		}
		if c.score == 0 && len(picked) > 0 {
			break
		}
		picked = append(picked, c)
	}
	sort.Slice(picked, func(a, b int) bool { return picked[a].order < picked[b].order })

	var b strings.Builder
	b.WriteString("Based on your documents:\n")
	for _, p := range picked {
		fmt.Fprintf(&b, "\n- %s [Source %d - %s]", p.text, p.source, p.filename)
	}
	return b.String()
}

// questionTerms returns the lowercase words of at least three letters.
func questionTerms(question string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range words(question) {
		if len([]rune(w)) >= 3 {
			out[w] = struct{}{}
		}
	}
	return out
}

func overlap(terms map[string]struct{}, sentence string) int {
	n := 0
	for _, w := range words(sentence) {
		if _, ok := terms[w]; ok {
			n++
		}
	}
	return n
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// splitSentences breaks text after '.', '!' and '?' followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	fields := strings.Fields(text)
	start := 0
	for i, f := range fields {
		if strings.HasSuffix(f, ".") || strings.HasSuffix(f, "!") || strings.HasSuffix(f, "?") {
			out = append(out, strings.Join(fields[start:i+1], " "))
			start = i + 1
		}
	}
	if start < len(fields) {
		out = append(out, strings.Join(fields[start:], " "))
	}
	return out
}
