// Package schema turns loosely-typed column specifications into validated
// BigQuery table schemas.
//
// A column specification maps a column name to either a type token
// ("STRING"), a singleton list (["STRING"]) or a [type, mode] pair
// (["STRING", "REQUIRED"]). Normalize validates the whole specification and
// returns an ordered Schema, or the first ValidationError it finds.
package schema

import (
	"fmt"
	"strings"
)

// Mode is the nullability/repetition marker of a column
type Mode string

const (
	ModeNullable Mode = "NULLABLE"
	ModeRequired Mode = "REQUIRED"
	ModeRepeated Mode = "REPEATED"
)

// DefaultMode is used when a column specification carries no mode
const DefaultMode = ModeNullable

// Modes returns the recognized column modes
func Modes() []Mode {
	return []Mode{ModeNullable, ModeRequired, ModeRepeated}
}

// ParseMode validates a mode token. Tokens are matched case-insensitively.
func ParseMode(token string) (Mode, bool) {
	m := Mode(strings.ToUpper(strings.TrimSpace(token)))
	for _, known := range Modes() {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// Entry is one column specification. Value is a string, a []string or a []any.
type Entry struct {
	Name  string
	Value any
}

// Spec is an ordered column specification
type Spec []Entry

// Column describes a single table column
type Column struct {
	Name string
	Type string
	Mode Mode
}

// Schema is an ordered list of column descriptors
type Schema []Column

// Names returns the column names in order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, col := range s {
		names[i] = col.Name
	}
	return names
}

// Normalize validates spec and converts it into a Schema. The first invalid
// entry aborts the call; no partial schema is ever returned.
func Normalize(spec Spec) (Schema, error) {
	result := make(Schema, 0, len(spec))
	seen := make(map[string]struct{}, len(spec))

	for _, entry := range spec {
		if strings.TrimSpace(entry.Name) == "" {
			return nil, newValidationError(entry.Name, RuleBadName, "column name must not be empty")
		}
		if _, dup := seen[entry.Name]; dup {
			return nil, newValidationError(entry.Name, RuleBadName, fmt.Sprintf("duplicate column `%s`", entry.Name))
		}
		seen[entry.Name] = struct{}{}

		col, err := normalizeEntry(entry)
		if err != nil {
			return nil, err
		}
		result = append(result, col)
	}

	return result, nil
}

func normalizeEntry(entry Entry) (Column, error) {
	switch v := entry.Value.(type) {
	case string:
		return newColumn(entry.Name, v)
	case []string:
		args := make([]any, len(v))
		for i, s := range v {
			args[i] = s
		}
		return fromArgs(entry.Name, args)
	case []any:
		args := make([]any, len(v))
		copy(args, v)
		return fromArgs(entry.Name, args)
	default:
		return Column{}, newValidationError(entry.Name, RuleWrongShape,
			fmt.Sprintf("column `%s` specification must be a string or a [type, mode] sequence, got %T", entry.Name, entry.Value))
	}
}

// fromArgs consumes args left to right: type, then mode, then anything left
// over. Each step is validated before the next. args is always a private copy.
func fromArgs(name string, args []any) (Column, error) {
	if len(args) == 0 {
		return Column{}, newValidationError(name, RuleMissingType, fmt.Sprintf("missing type token for column `%s`", name))
	}

	typeToken, ok := args[0].(string)
	if !ok {
		return Column{}, newValidationError(name, RuleWrongShape,
			fmt.Sprintf("type token for column `%s` must be a string, got %T", name, args[0]))
	}
	typeToken, err := parseType(name, typeToken)
	if err != nil {
		return Column{}, err
	}
	args = args[1:]

	mode := DefaultMode
	if len(args) > 0 {
		modeToken, ok := args[0].(string)
		if !ok {
			return Column{}, newValidationError(name, RuleBadMode,
				fmt.Sprintf("mode for column `%s` must be a string, got %T", name, args[0]))
		}
		if mode, err = parseColumnMode(name, modeToken); err != nil {
			return Column{}, err
		}
		args = args[1:]
	}

	if len(args) > 0 {
		return Column{}, newValidationError(name, RuleTooManyFields,
			fmt.Sprintf("too many schema arguments for column `%s`; expected at most [type, mode]", name))
	}

	return Column{Name: name, Type: typeToken, Mode: mode}, nil
}

func newColumn(name, typeToken string) (Column, error) {
	typeToken, err := parseType(name, typeToken)
	if err != nil {
		return Column{}, err
	}
	return Column{Name: name, Type: typeToken, Mode: DefaultMode}, nil
}

func parseType(name, typeToken string) (string, error) {
	typeToken = strings.TrimSpace(typeToken)
	if typeToken == "" {
		return "", newValidationError(name, RuleMissingType, fmt.Sprintf("missing type token for column `%s`", name))
	}
	return typeToken, nil
}

func parseColumnMode(name, modeToken string) (Mode, error) {
	m, ok := ParseMode(modeToken)
	if !ok {
		return "", newValidationError(name, RuleBadMode,
			fmt.Sprintf("invalid mode %q for column `%s`; expected one of %v", modeToken, name, Modes()))
	}
	return m, nil
}
