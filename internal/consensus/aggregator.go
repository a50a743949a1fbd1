// Package consensus turns the per-frame candidates collected over one capture
// session into a single trusted plate decision.
package consensus

// Candidate is one frame's corrected OCR read together with its validation
// and EV classification.
type Candidate struct {
	Text        string
	ValidFormat bool
	IsEV        bool
}

// Result is the final decision for a capture session. UsedValidMajority is
// true when the vote ran over format-valid candidates only, false when the
// session fell back to a raw majority of malformed reads.
type Result struct {
	PlateText         string
	IsEV              bool
	UsedValidMajority bool
}

// Resolve computes the majority-vote decision over the ordered candidate
// list. Format-valid candidates take priority: if any exist, the plate text
// is the most frequent valid text; otherwise the most frequent text overall
// is used as a best-effort fallback. Ties break in first-seen order. The EV
// flag is the majority of IsEV across the same candidate set the text vote
// ran over. An empty candidate list yields no result.
func Resolve(candidates []Candidate) (Result, bool) {
	if len(candidates) == 0 {
		return Result{}, false
	}

	voters := candidates
	usedValid := false
	if valid := filterValid(candidates); len(valid) > 0 {
		voters = valid
		usedValid = true
	}

	return Result{
		PlateText:         modeText(voters),
		IsEV:              modeEV(voters),
		UsedValidMajority: usedValid,
	}, true
}

func filterValid(candidates []Candidate) []Candidate {
	var valid []Candidate
	for _, c := range candidates {
		if c.ValidFormat {
			valid = append(valid, c)
		}
	}
	return valid
}

// modeText returns the most frequent text, preferring the earliest-seen text
// on ties.
func modeText(candidates []Candidate) string {
	counts := make(map[string]int, len(candidates))
	for _, c := range candidates {
		counts[c.Text]++
	}

	best := ""
	bestCount := 0
	for _, c := range candidates {
		if counts[c.Text] > bestCount {
			best = c.Text
			bestCount = counts[c.Text]
		}
	}
	return best
}

func modeEV(candidates []Candidate) bool {
	ev := 0
	for _, c := range candidates {
		if c.IsEV {
			ev++
		}
	}
	return ev*2 > len(candidates)
}
