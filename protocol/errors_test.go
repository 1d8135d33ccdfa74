package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(ErrCodeRuleNotFound, "rule not found")
	if err.Code != ErrCodeRuleNotFound {
		t.Errorf("Expected code %d, got %d", ErrCodeRuleNotFound, err.Code)
	}
	want := fmt.Sprintf("[%d] rule not found", ErrCodeRuleNotFound)
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestWrapError(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapError(ErrCodePersistence, inner)
	if err.Code != ErrCodePersistence {
		t.Errorf("Expected code %d, got %d", ErrCodePersistence, err.Code)
	}
	if err.Message != "disk full" {
		t.Errorf("Expected message 'disk full', got %q", err.Message)
	}
}

func TestWithDetails(t *testing.T) {
	err := NewError(ErrCodeDuplicateRule, "duplicate rule").
		WithDetails("rule_id", "r1").
		WithDetails("count", 2)

	if err.Details["rule_id"] != "r1" {
		t.Errorf("Expected rule_id=r1, got %v", err.Details["rule_id"])
	}
	if err.Details["count"] != 2 {
		t.Errorf("Expected count=2, got %v", err.Details["count"])
	}
}
