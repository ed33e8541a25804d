package scoring

import (
	"encoding/json"
	"strings"

	"ielts-practice-service/internal/domain"
)

// normalize prepares a value for comparison: underscores become spaces so
// "NOT_GIVEN" and "not given" are equivalent, then trim and lowercase.
func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(value, "_", " ")))
}

// Grade reports whether a submitted value matches the stored correct-answer
// specification. The spec is either a single JSON string or an array of
// acceptable equivalents. An empty submission never matches, even against an
// empty-string spec.
func Grade(submitted string, spec domain.AnswerSpec) bool {
	if strings.TrimSpace(submitted) == "" || len(spec) == 0 {
		return false
	}
	want := normalize(submitted)

	var alternatives []string
	if err := json.Unmarshal(spec, &alternatives); err == nil {
		for _, alt := range alternatives {
			if normalize(alt) == want {
				return true
			}
		}
		return false
	}

	var single string
	if err := json.Unmarshal(spec, &single); err == nil {
		return normalize(single) == want
	}
	return false
}
