package cli

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/leandroluk/orm/core"
)

// operators is ordered so that two-character tokens are tried first.
var operators = []struct {
	token string
	build func(value any) any
}{
	{">=", func(v any) any { return core.Gte(v) }},
	{"<=", func(v any) any { return core.Lte(v) }},
	{"!=", func(v any) any { return core.Ne(v) }},
	{"!~", func(v any) any { return core.NotLike(v.(string)) }},
	{">", func(v any) any { return core.Gt(v) }},
	{"<", func(v any) any { return core.Lt(v) }},
	{"~", func(v any) any { return core.Like(v.(string)) }},
	{"=", func(v any) any { return v }},
}

// ParseConditions parses expressions such as "age>=18" or "name~b%" into
// conditions. A comma separated right-hand side of "=" is a list match;
// "a..b" after "=" is a range.
func ParseConditions(expressions []string) (core.Conditions, error) {
	conditions := core.Conditions{}
	for _, expression := range expressions {
		field, value, err := parseCondition(expression)
		if err != nil {
			return nil, err
		}
		conditions[field] = value
	}
	return conditions, nil
}

func parseCondition(expression string) (string, any, error) {
	index, op := -1, -1
	for i := 0; i < len(expression) && index < 0; i++ {
		for j, candidate := range operators {
			if strings.HasPrefix(expression[i:], candidate.token) {
				index, op = i, j
				break
			}
		}
	}
	if index <= 0 {
		return "", nil, errors.Errorf("invalid condition %q", expression)
	}
	field := strings.TrimSpace(expression[:index])
	raw := strings.TrimSpace(expression[index+len(operators[op].token):])

	switch operators[op].token {
	case "~", "!~":
		return field, operators[op].build(raw), nil
	case "=":
		if from, to, ok := strings.Cut(raw, ".."); ok {
			return field, core.Between(ParseValue(from), ParseValue(to)), nil
		}
		if strings.Contains(raw, ",") {
			var list []any
			for _, item := range strings.Split(raw, ",") {
				list = append(list, ParseValue(strings.TrimSpace(item)))
			}
			return field, list, nil
		}
	}
	return field, operators[op].build(ParseValue(raw)), nil
}

// ParseValue reads a command line value as an integer, float, boolean or
// null when it looks like one, and as a string otherwise.
func ParseValue(raw string) any {
	if raw == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	return raw
}
