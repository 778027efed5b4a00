package domain_test

import (
	"reflect"
	"strings"
	"testing"

	"flag-challenge-service/internal/domain"
)

func TestJudgeTextNormalization(t *testing.T) {
	key := domain.NewTextKey("France", []string{"FRA"})

	for _, guess := range []string{"france", "FRANCE", " France ", "fra", " FRA\t"} {
		correct, explanation := domain.Judge(key, domain.AnswerSubmission{Text: guess})
		if !correct {
			t.Fatalf("expected %q to be accepted", guess)
		}
		if explanation != "Correct answer: france" {
			t.Fatalf("unexpected explanation %q", explanation)
		}
	}

	correct, explanation := domain.Judge(key, domain.AnswerSubmission{Text: "Germany"})
	if correct {
		t.Fatalf("expected Germany to be rejected")
	}
	if explanation != "Correct answer: france" {
		t.Fatalf("wrong guesses still get the answer in the explanation, got %q", explanation)
	}
}

func TestNewTextKeyMergesSources(t *testing.T) {
	key := domain.NewTextKey("Germany",
		[]string{"Deutschland", "DEU", ""},
		[]string{"deutschland", "germany", "Federal Republic of Germany"},
	)

	if key.Text.Answer != "germany" {
		t.Fatalf("expected lower-cased primary, got %q", key.Text.Answer)
	}
	want := []string{"deu", "deutschland", "federal republic of germany"}
	if !reflect.DeepEqual(key.Text.Alternates, want) {
		t.Fatalf("expected %v, got %v", want, key.Text.Alternates)
	}
}

func TestJudgeMultipleChoice(t *testing.T) {
	key := domain.NewChoiceKey("JPN", []string{"JPN", "KOR", "CHN"})

	if correct, _ := domain.Judge(key, domain.AnswerSubmission{SelectedOption: "JPN"}); !correct {
		t.Fatalf("expected JPN to be accepted")
	}
	correct, explanation := domain.Judge(key, domain.AnswerSubmission{SelectedOption: "KOR"})
	if correct {
		t.Fatalf("expected KOR to be rejected")
	}
	if explanation != "Correct answer: JPN" {
		t.Fatalf("unexpected explanation %q", explanation)
	}
}

func TestJudgeTrueFalse(t *testing.T) {
	key := domain.NewBoolKey(true)
	yes, no := true, false

	if correct, _ := domain.Judge(key, domain.AnswerSubmission{Answer: &yes}); !correct {
		t.Fatalf("expected true to be accepted")
	}
	correct, explanation := domain.Judge(key, domain.AnswerSubmission{Answer: &no})
	if correct {
		t.Fatalf("expected false to be rejected")
	}
	if explanation != "The statement is true" {
		t.Fatalf("unexpected explanation %q", explanation)
	}
}

func TestJudgeUnknownFormat(t *testing.T) {
	key := domain.AnswerKey{Format: domain.AnswerFormat("emoji_pick")}
	correct, explanation := domain.Judge(key, domain.AnswerSubmission{Text: "anything"})
	if correct {
		t.Fatalf("unknown formats must judge incorrect")
	}
	if !strings.Contains(explanation, "emoji_pick") {
		t.Fatalf("explanation should name the format, got %q", explanation)
	}
}

func TestValidateSubmission(t *testing.T) {
	yes := true
	cases := []struct {
		name    string
		format  domain.AnswerFormat
		sub     domain.AnswerSubmission
		wantErr bool
	}{
		{"text ok", domain.FormatTextInput, domain.AnswerSubmission{Text: "france"}, false},
		{"text empty", domain.FormatTextInput, domain.AnswerSubmission{}, true},
		{"text whitespace", domain.FormatTextInput, domain.AnswerSubmission{Text: "   "}, true},
		{"choice ok", domain.FormatMultipleChoice, domain.AnswerSubmission{SelectedOption: "JPN"}, false},
		{"choice missing", domain.FormatMultipleChoice, domain.AnswerSubmission{Text: "JPN"}, true},
		{"bool ok", domain.FormatTrueFalse, domain.AnswerSubmission{Answer: &yes}, false},
		{"bool missing", domain.FormatTrueFalse, domain.AnswerSubmission{}, true},
	}
	for _, tc := range cases {
		err := domain.ValidateSubmission(tc.format, tc.sub)
		if tc.wantErr && err != domain.ErrMalformedAnswer {
			t.Fatalf("%s: expected ErrMalformedAnswer, got %v", tc.name, err)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestAcceptedIncludesAlternates(t *testing.T) {
	key := domain.NewTextKey("France", []string{"FRA", "French Republic"})
	got := key.Accepted()
	want := []string{"france", "fra", "french republic"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
