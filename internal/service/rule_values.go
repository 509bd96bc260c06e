package service

import (
	"strings"
	"time"

	"academy/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const ruleDateLayout = "2006-01-02"

// RuleValueInput is one filled rule of a toggle request
type RuleValueInput struct {
	RuleID string `json:"rule_id" binding:"required"`
	Value  string `json:"value"`
}

// normalizeRuleValue canonicalizes a raw value for the rule's value type.
func normalizeRuleValue(valueType, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	switch valueType {
	case model.RuleValueNumber:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return "", validationf("'%s' is not a number", raw)
		}
		return d.String(), nil
	case model.RuleValueDate:
		t, err := time.Parse(ruleDateLayout, v)
		if err != nil {
			return "", validationf("'%s' is not a date (YYYY-MM-DD)", raw)
		}
		return t.Format(ruleDateLayout), nil
	default:
		return v, nil
	}
}

// buildRuleValues drops blank inputs, checks every rule id belongs to the document's
// rules and returns normalized values for the cell. A later input for the same rule wins.
func buildRuleValues(cellID uuid.UUID, rules []model.DocumentRule, inputs []RuleValueInput) ([]model.MatrixRuleValue, error) {
	byID := make(map[uuid.UUID]model.DocumentRule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	index := make(map[uuid.UUID]int)
	values := make([]model.MatrixRuleValue, 0, len(inputs))
	for _, in := range inputs {
		if blank(in.Value) {
			continue
		}
		ruleID, err := parseID("rule", in.RuleID)
		if err != nil {
			return nil, err
		}
		rule, ok := byID[ruleID]
		if !ok {
			return nil, validationf("rule %s does not belong to this document", ruleID)
		}
		normalized, err := normalizeRuleValue(rule.ValueType, in.Value)
		if err != nil {
			return nil, err
		}
		if i, seen := index[ruleID]; seen {
			values[i].Value = normalized
			continue
		}
		index[ruleID] = len(values)
		values = append(values, model.MatrixRuleValue{MatrixCellID: cellID, RuleID: ruleID, Value: normalized})
	}
	return values, nil
}
