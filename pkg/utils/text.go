package utils

import (
	"strings"
	"unicode"

	"github.com/aryann/difflib"
)

type runeClass uint8

const (
	classSpace runeClass = iota
	classWord
	classPunct
)

func classify(r rune) runeClass {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsLetter(r), unicode.IsNumber(r), strings.ContainsRune("_-'", r):
		return classWord
	}
	return classPunct
}

// TokenizeWords splits s into runs of word, whitespace and punctuation
// characters. Joining the tokens gives back s.
func TokenizeWords(s string) []string {
	var out []string
	start := 0
	prev := classSpace
	for i, r := range s {
		c := classify(r)
		if i > 0 && c != prev {
			out = append(out, s[start:i])
			start = i
		}
		prev = c
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

type DeltaOp string

const (
	OpEqual  DeltaOp = "equal"
	OpInsert DeltaOp = "insert"
	OpDelete DeltaOp = "delete"
)

type WordDelta struct {
	Op   DeltaOp `json:"op"`
	Text string  `json:"text"`
}

// DiffWords returns the word-level changes turning a into b. Adjacent tokens
// with the same op are merged.
func DiffWords(a, b string) []WordDelta {
	recs := difflib.Diff(TokenizeWords(a), TokenizeWords(b))
	out := make([]WordDelta, 0, len(recs))
	for _, r := range recs {
		var op DeltaOp
		switch r.Delta {
		case difflib.Common:
			op = OpEqual
		case difflib.LeftOnly:
			op = OpDelete
		case difflib.RightOnly:
			op = OpInsert
		}
		if n := len(out); n > 0 && out[n-1].Op == op {
			out[n-1].Text += r.Payload
			continue
		}
		out = append(out, WordDelta{Op: op, Text: r.Payload})
	}
	return out
}
