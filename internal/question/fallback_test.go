package question

import (
	"testing"

	"github.com/stemsi/quizlock/internal/model"
)

func TestFallbackBankIsValid(t *testing.T) {
	bank := Fallback()
	if len(bank) < 10 {
		t.Fatalf("expected at least 10 fallback questions, got %d", len(bank))
	}
	if err := model.ValidateAll(bank); err != nil {
		t.Fatalf("fallback bank violates the question invariant: %v", err)
	}
}

func TestFallbackReturnsCopies(t *testing.T) {
	first := Fallback()
	first[0].Options[0] = "tampered"
	first[0].CorrectIndex = 3

	second := Fallback()
	if second[0].Options[0] == "tampered" || second[0].CorrectIndex == 3 {
		t.Fatal("mutating a returned bank leaked into the built-in bank")
	}
}
