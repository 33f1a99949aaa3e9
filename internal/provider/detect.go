package provider

import (
	"bytes"
	"os"
	"path/filepath"
)

// PatternKind is the kind of on-disk evidence a detection pattern checks.
type PatternKind int

const (
	// PatternFile matches when Path exists under the candidate root and
	// is a regular file.
	PatternFile PatternKind = iota
	// PatternDir matches when Path exists and is a directory.
	PatternDir
	// PatternContent matches when the file at Path contains Substr.
	PatternContent
)

// Pattern is one weighted piece of detection evidence. Required patterns
// gate the match; optional patterns contribute weight to the confidence.
type Pattern struct {
	Kind     PatternKind
	Path     string
	Substr   string
	Weight   int
	Required bool
}

// DetectionScore is the outcome of evaluating an adapter's patterns
// against a candidate path. Confidence is the weighted share of matched
// optional patterns normalized to 0-100; a path with a failed required
// pattern scores zero and cannot be handled.
type DetectionScore struct {
	CanHandle       bool     `json:"canHandle"`
	Confidence      int      `json:"confidence"`
	MatchedPatterns []string `json:"matchedPatterns,omitempty"`
	MissingPatterns []string `json:"missingPatterns,omitempty"`
}

// EvaluatePatterns scores a candidate root against a pattern set. Adapters
// share this so detection stays deterministic across providers: the same
// path and pattern set always produce the same score.
func EvaluatePatterns(root string, patterns []Pattern) DetectionScore {
	score := DetectionScore{}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		for _, p := range patterns {
			score.MissingPatterns = append(score.MissingPatterns, p.Path)
		}
		return score
	}

	var optTotal, optMatched int
	requiredOK := true

	for _, p := range patterns {
		matched := patternMatches(root, p)
		if matched {
			score.MatchedPatterns = append(score.MatchedPatterns, p.Path)
		} else {
			score.MissingPatterns = append(score.MissingPatterns, p.Path)
		}

		if p.Required {
			if !matched {
				requiredOK = false
			}
			continue
		}
		optTotal += p.Weight
		if matched {
			optMatched += p.Weight
		}
	}

	if !requiredOK {
		return DetectionScore{MissingPatterns: score.MissingPatterns, MatchedPatterns: score.MatchedPatterns}
	}

	score.CanHandle = true
	if optTotal == 0 {
		score.Confidence = 100
	} else {
		score.Confidence = optMatched * 100 / optTotal
	}
	return score
}

func patternMatches(root string, p Pattern) bool {
	target := filepath.Join(root, p.Path)
	info, err := os.Stat(target)
	if err != nil {
		return false
	}

	switch p.Kind {
	case PatternDir:
		return info.IsDir()
	case PatternFile:
		return info.Mode().IsRegular()
	case PatternContent:
		if !info.Mode().IsRegular() {
			return false
		}
		data, err := os.ReadFile(target)
		if err != nil {
			return false
		}
		return bytes.Contains(data, []byte(p.Substr))
	}
	return false
}
