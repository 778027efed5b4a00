package domain

import (
	"fmt"
	"sort"
	"strings"
)

// AnswerFormat says how the user answers a question.
type AnswerFormat string

const (
	FormatTextInput      AnswerFormat = "text_input"
	FormatMultipleChoice AnswerFormat = "multiple_choice"
	FormatTrueFalse      AnswerFormat = "true_false"
)

// TextKey is the accepted-answer set for free-text questions. Answer holds
// the primary name lower-cased; Alternates is deduplicated, sorted and
// free of empty strings.
type TextKey struct {
	Answer     string   `json:"answer"`
	Alternates []string `json:"alternates"`
}

// ChoiceKey is the key for multiple-choice questions.
type ChoiceKey struct {
	Correct string   `json:"correct"`
	Options []string `json:"options"`
}

// BoolKey is the key for true/false questions.
type BoolKey struct {
	Answer bool `json:"answer"`
}

// AnswerKey is a tagged union keyed by Format; exactly the matching variant
// pointer is set.
type AnswerKey struct {
	Format AnswerFormat `json:"format"`
	Text   *TextKey     `json:"text,omitempty"`
	Choice *ChoiceKey   `json:"choice,omitempty"`
	Bool   *BoolKey     `json:"bool,omitempty"`
}

// NewTextKey builds a text key from a display name and any number of
// alternate spelling sources (catalog alternates, manual overrides). All
// entries are lower-cased; duplicates, empties and the primary itself are
// dropped, and the result is sorted for determinism.
func NewTextKey(primary string, alternateSources ...[]string) AnswerKey {
	answer := strings.ToLower(strings.TrimSpace(primary))
	seen := map[string]struct{}{answer: {}}
	var alternates []string
	for _, source := range alternateSources {
		for _, alt := range source {
			alt = strings.ToLower(strings.TrimSpace(alt))
			if alt == "" {
				continue
			}
			if _, dup := seen[alt]; dup {
				continue
			}
			seen[alt] = struct{}{}
			alternates = append(alternates, alt)
		}
	}
	sort.Strings(alternates)
	return AnswerKey{Format: FormatTextInput, Text: &TextKey{Answer: answer, Alternates: alternates}}
}

func NewChoiceKey(correct string, options []string) AnswerKey {
	return AnswerKey{Format: FormatMultipleChoice, Choice: &ChoiceKey{Correct: correct, Options: options}}
}

func NewBoolKey(answer bool) AnswerKey {
	return AnswerKey{Format: FormatTrueFalse, Bool: &BoolKey{Answer: answer}}
}

// Accepted lists every answer the key accepts, for the post-completion
// reveal.
func (k AnswerKey) Accepted() []string {
	switch k.Format {
	case FormatTextInput:
		if k.Text == nil {
			return nil
		}
		out := make([]string, 0, len(k.Text.Alternates)+1)
		out = append(out, k.Text.Answer)
		out = append(out, k.Text.Alternates...)
		return out
	case FormatMultipleChoice:
		if k.Choice == nil {
			return nil
		}
		return []string{k.Choice.Correct}
	case FormatTrueFalse:
		if k.Bool == nil {
			return nil
		}
		return []string{fmt.Sprintf("%t", k.Bool.Answer)}
	default:
		return nil
	}
}

// AnswerSubmission is a user's answer; the field matching the question's
// format must be set.
type AnswerSubmission struct {
	Text           string `json:"text,omitempty"`
	SelectedOption string `json:"selectedOption,omitempty"`
	Answer         *bool  `json:"answer,omitempty"`
}

// ValidateSubmission rejects payloads that cannot be judged against the
// given format, before any state is touched.
func ValidateSubmission(format AnswerFormat, sub AnswerSubmission) error {
	switch format {
	case FormatTextInput:
		if strings.TrimSpace(sub.Text) == "" {
			return ErrMalformedAnswer
		}
	case FormatMultipleChoice:
		if sub.SelectedOption == "" {
			return ErrMalformedAnswer
		}
	case FormatTrueFalse:
		if sub.Answer == nil {
			return ErrMalformedAnswer
		}
	}
	return nil
}

// Judge compares a submission to the key. Pure; returns correctness plus an
// explanation suitable for the client. An unknown format judges incorrect
// rather than failing: a stored question must never become unanswerable.
func Judge(key AnswerKey, sub AnswerSubmission) (bool, string) {
	switch key.Format {
	case FormatTextInput:
		if key.Text == nil {
			return false, "question has no text answer key"
		}
		guess := strings.ToLower(strings.TrimSpace(sub.Text))
		if guess == key.Text.Answer {
			return true, fmt.Sprintf("Correct answer: %s", key.Text.Answer)
		}
		for _, alt := range key.Text.Alternates {
			if guess == alt {
				return true, fmt.Sprintf("Correct answer: %s", key.Text.Answer)
			}
		}
		return false, fmt.Sprintf("Correct answer: %s", key.Text.Answer)
	case FormatMultipleChoice:
		if key.Choice == nil {
			return false, "question has no choice answer key"
		}
		return sub.SelectedOption == key.Choice.Correct, fmt.Sprintf("Correct answer: %s", key.Choice.Correct)
	case FormatTrueFalse:
		if key.Bool == nil {
			return false, "question has no boolean answer key"
		}
		return sub.Answer != nil && *sub.Answer == key.Bool.Answer, fmt.Sprintf("The statement is %t", key.Bool.Answer)
	default:
		return false, fmt.Sprintf("unknown question format %q", key.Format)
	}
}
