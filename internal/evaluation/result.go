package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Collaboration holds the three 1-4 sub-scores.
type Collaboration struct {
	Contribution   float64 `json:"contribution"`
	Communication  float64 `json:"communication"`
	Responsiveness float64 `json:"responsiveness"`
}

// Result is the structured AI feedback for one session. It is treated as an
// opaque payload beyond the required-key check: partial metrics are never
// shown, a result either validates fully or the whole panel is withheld.
type Result struct {
	Strengths            []string      `json:"strengths"`
	Improvements         []string      `json:"improvements"`
	Tips                 []string      `json:"tips"`
	Objectives           []string      `json:"objectives"`
	WordsPerMinute       float64       `json:"words_per_minute"`
	FillerWordsPerMinute float64       `json:"filler_words_per_minute"`
	ParticipationPct     float64       `json:"participation_pct"`
	DurationSeconds      float64       `json:"duration_seconds"`
	Collaboration        Collaboration `json:"collaboration"`
}

var requiredKeys = []string{"strengths", "improvements", "tips", "objectives", "collaboration"}

// ParseResult extracts and validates an evaluation result from a raw
// service response. The body may wrap the object in prose or in an
// {"evaluation": ...} envelope.
func ParseResult(body []byte) (*Result, error) {
	objText, err := ExtractJSON(string(body))
	if err != nil {
		return nil, err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(objText), &keys); err != nil {
		return nil, fmt.Errorf("decode evaluation object: %w", err)
	}

	if inner, ok := keys["evaluation"]; ok {
		objText = string(inner)
		keys = nil
		if err := json.Unmarshal(inner, &keys); err != nil {
			return nil, fmt.Errorf("decode evaluation object: %w", err)
		}
	}

	for _, key := range requiredKeys {
		if _, ok := keys[key]; !ok {
			return nil, fmt.Errorf("evaluation missing required field %q", key)
		}
	}

	var result Result
	if err := json.Unmarshal([]byte(objText), &result); err != nil {
		return nil, fmt.Errorf("decode evaluation fields: %w", err)
	}
	return &result, nil
}

// ExtractJSON locates the outermost JSON object in text that may carry
// leading or trailing prose. Braces inside string literals are ignored.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", errors.New("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", errors.New("unterminated JSON object in response")
}
