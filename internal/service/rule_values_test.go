package service

import (
	"errors"
	"testing"

	"academy/internal/model"

	"github.com/google/uuid"
)

func TestNormalizeRuleValue(t *testing.T) {
	tests := []struct {
		name      string
		valueType string
		raw       string
		want      string
		wantErr   bool
	}{
		{"text trimmed", model.RuleValueText, "  Class 1  ", "Class 1", false},
		{"number canonical", model.RuleValueNumber, "012.50", "12.5", false},
		{"number negative", model.RuleValueNumber, "-3", "-3", false},
		{"number invalid", model.RuleValueNumber, "twelve", "", true},
		{"date", model.RuleValueDate, "2026-03-01", "2026-03-01", false},
		{"date wrong layout", model.RuleValueDate, "01/03/2026", "", true},
		{"unknown type as text", "", "x", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeRuleValue(tt.valueType, tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildRuleValues(t *testing.T) {
	cellID := uuid.New()
	minHours := model.DocumentRule{ID: uuid.New(), Name: "Minimum hours", ValueType: model.RuleValueNumber}
	issuer := model.DocumentRule{ID: uuid.New(), Name: "Issuer", ValueType: model.RuleValueText}
	rules := []model.DocumentRule{minHours, issuer}

	t.Run("drops blanks and normalizes", func(t *testing.T) {
		values, err := buildRuleValues(cellID, rules, []RuleValueInput{
			{RuleID: minHours.ID.String(), Value: "1500.0"},
			{RuleID: issuer.ID.String(), Value: "   "},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(values) != 1 {
			t.Fatalf("got %d values, want 1", len(values))
		}
		if values[0].Value != "1500" || values[0].MatrixCellID != cellID {
			t.Errorf("unexpected value %+v", values[0])
		}
	})

	t.Run("last duplicate wins", func(t *testing.T) {
		values, err := buildRuleValues(cellID, rules, []RuleValueInput{
			{RuleID: issuer.ID.String(), Value: "EASA"},
			{RuleID: issuer.ID.String(), Value: "FAA"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(values) != 1 || values[0].Value != "FAA" {
			t.Errorf("got %+v", values)
		}
	})

	t.Run("foreign rule rejected", func(t *testing.T) {
		_, err := buildRuleValues(cellID, rules, []RuleValueInput{{RuleID: uuid.NewString(), Value: "x"}})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("malformed id rejected", func(t *testing.T) {
		_, err := buildRuleValues(cellID, rules, []RuleValueInput{{RuleID: "nope", Value: "x"}})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
