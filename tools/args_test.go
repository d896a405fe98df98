package tools

import (
	"encoding/json"
	"testing"

	"github.com/vinayprograms/aisdk/errors"
)

func TestArgs_RequiredAccessors(t *testing.T) {
	args := Args{
		"name":  "grep",
		"count": float64(3),
		"ratio": json.Number("0.5"),
		"deep":  true,
		"globs": []interface{}{"*.go", "*.md"},
	}

	if s, err := args.String("name"); err != nil || s != "grep" {
		t.Errorf("String() = %q, %v", s, err)
	}
	if n, err := args.Int("count"); err != nil || n != 3 {
		t.Errorf("Int() = %d, %v", n, err)
	}
	if f, err := args.Float("ratio"); err != nil || f != 0.5 {
		t.Errorf("Float() = %v, %v", f, err)
	}
	if b, err := args.Bool("deep"); err != nil || !b {
		t.Errorf("Bool() = %v, %v", b, err)
	}
	if globs, err := args.StringSlice("globs"); err != nil || len(globs) != 2 {
		t.Errorf("StringSlice() = %v, %v", globs, err)
	}
}

func TestArgs_FailuresAreValidation(t *testing.T) {
	args := Args{
		"name":  42,
		"count": "three",
		"big":   json.Number("1.5"),
		"deep":  "yes",
		"globs": []interface{}{"*.go", 7},
	}

	tests := []struct {
		name    string
		call    func() error
		wantMsg string
	}{
		{"missing", func() error { _, err := args.String("path"); return err }, "path is required"},
		{"wrong string", func() error { _, err := args.String("name"); return err }, "name must be a string, got int"},
		{"wrong int", func() error { _, err := args.Int("count"); return err }, "count must be a number, got string"},
		{"fractional json int", func() error { _, err := args.Int("big"); return err }, "big must be an integer, got 1.5"},
		{"wrong bool", func() error { _, err := args.Bool("deep"); return err }, "deep must be a boolean, got string"},
		{"wrong element", func() error { _, err := args.StringSlice("globs"); return err }, "globs[1] must be a string, got int"},
		{"missing float", func() error { _, err := args.Float("ratio"); return err }, "ratio is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.IsKind(err, errors.KindValidation) {
				t.Fatalf("error = %v, want validation", err)
			}
			failure, _ := errors.As(err)
			if failure.Message() != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", failure.Message(), tt.wantMsg)
			}
		})
	}
}

func TestArgs_Defaults(t *testing.T) {
	args := Args{"limit": "ten"}

	if got := args.StringOr("mode", "fast"); got != "fast" {
		t.Errorf("StringOr() = %q", got)
	}
	if got := args.IntOr("limit", 10); got != 10 {
		t.Errorf("IntOr() = %d", got)
	}
	if got := args.FloatOr("ratio", 0.25); got != 0.25 {
		t.Errorf("FloatOr() = %v", got)
	}
	if got := args.BoolOr("deep", true); !got {
		t.Errorf("BoolOr() = %v", got)
	}
	if got := args.StringSliceOr("globs", []string{"*"}); len(got) != 1 {
		t.Errorf("StringSliceOr() = %v", got)
	}
	if !args.Has("limit") || args.Raw("limit") != "ten" {
		t.Error("Has/Raw should see the stored value")
	}
}

func TestArgs_FailureNamesArgument(t *testing.T) {
	args := Args{"limit": 2.5}

	_, err := args.Int("limit")
	if !errors.IsKind(err, errors.KindValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
	if got := errors.GetMetadata(err)["argument"]; got != "limit" {
		t.Errorf("argument metadata = %q, want %q", got, "limit")
	}
	if got := args.IntOr("limit", 7); got != 7 {
		t.Errorf("IntOr() = %d, want default for a fractional value", got)
	}
}
