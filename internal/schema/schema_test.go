package schema

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want Schema
	}{
		{
			name: "plain string",
			spec: Spec{{Name: "col", Value: "STRING"}},
			want: Schema{{Name: "col", Type: "STRING", Mode: ModeNullable}},
		},
		{
			name: "type and mode",
			spec: Spec{{Name: "col", Value: []any{"STRING", "REQUIRED"}}},
			want: Schema{{Name: "col", Type: "STRING", Mode: ModeRequired}},
		},
		{
			name: "singleton list",
			spec: Spec{{Name: "col", Value: []string{"STRING"}}},
			want: Schema{{Name: "col", Type: "STRING", Mode: ModeNullable}},
		},
		{
			name: "lower case mode",
			spec: Spec{{Name: "col", Value: []string{"INTEGER", "repeated"}}},
			want: Schema{{Name: "col", Type: "INTEGER", Mode: ModeRepeated}},
		},
		{
			name: "empty spec",
			spec: Spec{},
			want: Schema{},
		},
		{
			name: "mixed",
			spec: Spec{
				{Name: "id", Value: []string{"INTEGER", "REQUIRED"}},
				{Name: "name", Value: "STRING"},
				{Name: "tags", Value: []any{"STRING", "REPEATED"}},
			},
			want: Schema{
				{Name: "id", Type: "INTEGER", Mode: ModeRequired},
				{Name: "name", Type: "STRING", Mode: ModeNullable},
				{Name: "tags", Type: "STRING", Mode: ModeRepeated},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.spec)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeSingletonMatchesString(t *testing.T) {
	for _, typ := range []string{"STRING", "INTEGER", "FLOAT", "BOOLEAN", "TIMESTAMP"} {
		plain, err := Normalize(Spec{{Name: "c", Value: typ}})
		if err != nil {
			t.Fatalf("plain %s: %v", typ, err)
		}
		wrapped, err := Normalize(Spec{{Name: "c", Value: []any{typ}}})
		if err != nil {
			t.Fatalf("wrapped %s: %v", typ, err)
		}
		if !reflect.DeepEqual(plain, wrapped) {
			t.Errorf("singleton %s = %+v, plain = %+v", typ, wrapped, plain)
		}
	}
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name     string
		spec     Spec
		column   string
		rule     Rule
		contains string
	}{
		{
			name:     "too many fields",
			spec:     Spec{{Name: "col", Value: []string{"STRING", "REQUIRED", "EXTRA"}}},
			column:   "col",
			rule:     RuleTooManyFields,
			contains: "too many schema arguments",
		},
		{
			name:     "four fields",
			spec:     Spec{{Name: "col", Value: []any{"STRING", "NULLABLE", "a", "b"}}},
			column:   "col",
			rule:     RuleTooManyFields,
			contains: "expected at most [type, mode]",
		},
		{
			name:     "bad mode reported before extra fields",
			spec:     Spec{{Name: "col", Value: []string{"STRING", "BOGUS", "EXTRA"}}},
			column:   "col",
			rule:     RuleBadMode,
			contains: `"BOGUS"`,
		},
		{
			name:     "missing type reported before extra fields",
			spec:     Spec{{Name: "col", Value: []any{" ", "REQUIRED", "EXTRA"}}},
			column:   "col",
			rule:     RuleMissingType,
			contains: "missing type token",
		},
		{
			name:     "empty list",
			spec:     Spec{{Name: "col", Value: []any{}}},
			column:   "col",
			rule:     RuleMissingType,
			contains: "missing type token",
		},
		{
			name:     "empty string type",
			spec:     Spec{{Name: "col", Value: "  "}},
			column:   "col",
			rule:     RuleMissingType,
			contains: "missing type token",
		},
		{
			name:     "integer value",
			spec:     Spec{{Name: "col", Value: 42}},
			column:   "col",
			rule:     RuleWrongShape,
			contains: "must be a string or a [type, mode] sequence",
		},
		{
			name:     "mapping value",
			spec:     Spec{{Name: "col", Value: map[string]any{"type": "STRING"}}},
			column:   "col",
			rule:     RuleWrongShape,
			contains: "must be a string or a [type, mode] sequence",
		},
		{
			name:     "nil value",
			spec:     Spec{{Name: "col", Value: nil}},
			column:   "col",
			rule:     RuleWrongShape,
			contains: "col",
		},
		{
			name:     "non-string type token",
			spec:     Spec{{Name: "col", Value: []any{7, "REQUIRED"}}},
			column:   "col",
			rule:     RuleWrongShape,
			contains: "must be a string",
		},
		{
			name:     "unknown mode",
			spec:     Spec{{Name: "col", Value: []string{"STRING", "OPTIONAL"}}},
			column:   "col",
			rule:     RuleBadMode,
			contains: `"OPTIONAL"`,
		},
		{
			name:     "empty name",
			spec:     Spec{{Name: "", Value: "STRING"}},
			column:   "",
			rule:     RuleBadName,
			contains: "must not be empty",
		},
		{
			name:     "duplicate name",
			spec:     Spec{{Name: "a", Value: "STRING"}, {Name: "a", Value: "INTEGER"}},
			column:   "a",
			rule:     RuleBadName,
			contains: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.spec)
			if err == nil {
				t.Fatalf("Normalize() = %+v, want error", got)
			}
			if got != nil {
				t.Errorf("Normalize() returned partial schema %+v", got)
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %v is not a *ValidationError", err)
			}
			if verr.Column != tt.column {
				t.Errorf("Column = %q, want %q", verr.Column, tt.column)
			}
			if verr.Rule != tt.rule {
				t.Errorf("Rule = %q, want %q", verr.Rule, tt.rule)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestNormalizeFailFast(t *testing.T) {
	spec := Spec{
		{Name: "a", Value: "STRING"},
		{Name: "b", Value: []string{"INT", "BAD_MODE"}},
		{Name: "c", Value: 3},
	}

	got, err := Normalize(spec)
	if got != nil {
		t.Fatalf("Normalize() = %+v, want nil", got)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Column != "b" || verr.Rule != RuleBadMode {
		t.Errorf("got column %q rule %q, want b / %q", verr.Column, verr.Rule, RuleBadMode)
	}
}

func TestNormalizePreservesOrder(t *testing.T) {
	spec := Spec{
		{Name: "c3", Value: "STRING"},
		{Name: "c1", Value: "INTEGER"},
		{Name: "c2", Value: []string{"FLOAT"}},
	}

	got, err := Normalize(spec)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := []string{"c3", "c1", "c2"}
	if !reflect.DeepEqual(got.Names(), want) {
		t.Errorf("Names() = %v, want %v", got.Names(), want)
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	pair := []any{"STRING", "REQUIRED"}
	strs := []string{"INTEGER", "REPEATED", "EXTRA"}
	spec := Spec{
		{Name: "a", Value: pair},
		{Name: "b", Value: strs},
	}

	if _, err := Normalize(spec); err == nil {
		t.Fatal("expected error for three element list")
	}
	if _, err := Normalize(spec[:1]); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if !reflect.DeepEqual(pair, []any{"STRING", "REQUIRED"}) {
		t.Errorf("pair mutated: %v", pair)
	}
	if !reflect.DeepEqual(strs, []string{"INTEGER", "REPEATED", "EXTRA"}) {
		t.Errorf("strs mutated: %v", strs)
	}
	if len(spec[0].Value.([]any)) != 2 {
		t.Errorf("spec entry mutated: %v", spec[0].Value)
	}
}

func TestParseMode(t *testing.T) {
	for _, token := range []string{"NULLABLE", "required", " Repeated "} {
		if _, ok := ParseMode(token); !ok {
			t.Errorf("ParseMode(%q) not recognized", token)
		}
	}
	for _, token := range []string{"", "OPTIONAL", "NULL"} {
		if _, ok := ParseMode(token); ok {
			t.Errorf("ParseMode(%q) unexpectedly recognized", token)
		}
	}
}
