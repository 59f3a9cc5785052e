package schema

// Rule identifies which column specification rule was violated
type Rule string

const (
	RuleMissingType   Rule = "missing type"
	RuleBadMode       Rule = "bad mode"
	RuleTooManyFields Rule = "too many fields"
	RuleWrongShape    Rule = "wrong shape"
	RuleBadName       Rule = "bad name"
	RuleUnknownType   Rule = "unknown type"
	RuleNestedType    Rule = "nested type"
)

// ValidationError reports an invalid column specification
type ValidationError struct {
	Column string
	Rule   Rule
	Reason string
}

func newValidationError(column string, rule Rule, reason string) *ValidationError {
	return &ValidationError{Column: column, Rule: rule, Reason: reason}
}

func (e *ValidationError) Error() string {
	return "schema validation failed (" + string(e.Rule) + "): " + e.Reason
}
