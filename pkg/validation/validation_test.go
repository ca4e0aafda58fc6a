package validation

import (
	"testing"

	pkgerrors "github.com/castanedo/poscore-backend/pkg/errors"
)

type sampleLine struct {
	Barcode  string `json:"barcode" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

func TestStructValid(t *testing.T) {
	if err := Struct(sampleLine{Barcode: "B-1", Quantity: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(sampleLine{Quantity: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details type: %T", typed.Details())
	}
	if details["barcode"] != "is required" {
		t.Fatalf("unexpected barcode message %q", details["barcode"])
	}
	if _, found := details["quantity"]; !found {
		t.Fatal("expected quantity violation")
	}
}

func TestViolations(t *testing.T) {
	violations := Violations(sampleLine{Barcode: "B-1", Quantity: 1})
	if violations != nil {
		t.Fatalf("expected nil for valid struct, got %v", violations)
	}

	violations = Violations(sampleLine{})
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(violations))
	}
	for _, v := range violations {
		if v.Field == "" || v.Message == "" {
			t.Fatalf("incomplete violation %+v", v)
		}
	}
}
