package generate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/quizgest/internal/quota"
)

const (
	minQuestionChars = 10
	maxQuestionChars = 1000
	maxAnswerChars   = 4000
	MinMarks         = 1
	MaxMarks         = 20
)

// Item is one question as returned by the provider.
type Item struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
	Cognitive  string `json:"cognitive_level"`
	Marks      int    `json:"marks"`
}

// Expect describes what a work unit asked for. Empty tier names mean the
// axis was left open.
type Expect struct {
	Difficulty string
	Cognitive  string
	Count      int
}

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

// ParseItems reads the provider reply as a JSON array of items, drops the
// ones that fail ValidateItem and caps the rest at want.Count. A reply with
// no usable item is ErrInvalidResponse.
func ParseItems(raw string, want Expect) ([]Item, error) {
	text := stripCodeBlock(raw)
	var items []Item
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		// Some models wrap the array in prose despite the instructions.
		start, end := strings.IndexByte(text, '['), strings.LastIndexByte(text, ']')
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: %v (raw: %s)", ErrInvalidResponse, err, truncate(text, 200))
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &items); err != nil {
			return nil, fmt.Errorf("%w: %v (raw: %s)", ErrInvalidResponse, err, truncate(text, 200))
		}
	}

	valid := items[:0]
	for i := range items {
		if ValidateItem(&items[i], want) {
			valid = append(valid, items[i])
		}
	}
	if want.Count > 0 && len(valid) > want.Count {
		valid = valid[:want.Count]
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid items in %d returned", ErrInvalidResponse, len(items))
	}
	return valid, nil
}

// ValidateItem checks an item and normalizes it in place. Returns true if valid.
func ValidateItem(it *Item, want Expect) bool {
	if it == nil {
		return false
	}
	it.Question = strings.TrimSpace(it.Question)
	it.Answer = strings.TrimSpace(it.Answer)

	n := utf8.RuneCountInString(it.Question)
	if n < minQuestionChars || n > maxQuestionChars {
		return false
	}
	if utf8.RuneCountInString(it.Answer) > maxAnswerChars {
		return false
	}
	if injectionPattern.MatchString(it.Question) || injectionPattern.MatchString(it.Answer) {
		return false
	}

	it.Difficulty = coerceTier(strings.ToLower(strings.TrimSpace(it.Difficulty)), want.Difficulty, quota.LookupDifficulty)
	it.Cognitive = coerceTier(strings.ToLower(strings.TrimSpace(it.Cognitive)), want.Cognitive, quota.LookupCognitive)

	if it.Marks == 0 {
		it.Marks = MinMarks
		if t, ok := quota.LookupDifficulty(it.Difficulty); ok {
			it.Marks = t.Marks
		}
	}
	it.Marks = min(max(it.Marks, MinMarks), MaxMarks)
	return true
}

// coerceTier pins the label to the requested tier. With no requested tier a
// known label is kept and anything else is cleared.
func coerceTier(got, want string, lookup func(string) (quota.Tier, bool)) string {
	if want != "" {
		return want
	}
	if _, ok := lookup(got); ok {
		return got
	}
	return ""
}
