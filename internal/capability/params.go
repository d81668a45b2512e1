package capability

import (
	"fmt"
	"regexp"

	"github.com/google/cel-go/cel"
)

// #region compiled-rule
// compiledRule is a ParamRule ready for concurrent, read-only checks.
type compiledRule struct {
	required bool
	values   map[string]struct{}
	patterns []*regexp.Regexp
	program  cel.Program
}

// newRuleEnv declares the single CEL variable rules may reference.
func newRuleEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(cel.Variable("value", cel.StringType))
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}
	return env, nil
}

func compileRule(env *cel.Env, p ParamRule) (compiledRule, error) {
	c := compiledRule{required: p.Required}
	if len(p.Values) > 0 {
		c.values = make(map[string]struct{}, len(p.Values))
		for _, v := range p.Values {
			c.values[v] = struct{}{}
		}
	}
	for _, pat := range p.Patterns {
		re, err := regexp.Compile(`^(?:` + pat + `)$`)
		if err != nil {
			return compiledRule{}, fmt.Errorf("pattern %q: %w", pat, err)
		}
		c.patterns = append(c.patterns, re)
	}
	if p.Rule != "" {
		ast, iss := env.Compile(p.Rule)
		if iss != nil && iss.Err() != nil {
			return compiledRule{}, fmt.Errorf("rule %q: %w", p.Rule, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return compiledRule{}, fmt.Errorf("rule %q: must evaluate to bool, got %s", p.Rule, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return compiledRule{}, fmt.Errorf("rule %q: %w", p.Rule, err)
		}
		c.program = prg
	}
	if c.values == nil && c.patterns == nil && c.program == nil {
		return compiledRule{}, fmt.Errorf("no values, patterns or rule")
	}
	return c, nil
}

// #endregion compiled-rule

// #region check
// check returns "" when v is permitted, else a rejection reason.
func (c compiledRule) check(v string) string {
	if c.values != nil || c.patterns != nil {
		if !c.listed(v) {
			return "value not in allowed set"
		}
	}
	if c.program != nil {
		out, _, err := c.program.Eval(map[string]any{"value": v})
		if err != nil {
			return fmt.Sprintf("rule evaluation failed: %v", err)
		}
		if ok, isBool := out.Value().(bool); !isBool || !ok {
			return "rule rejected value"
		}
	}
	return ""
}

func (c compiledRule) listed(v string) bool {
	if _, ok := c.values[v]; ok {
		return true
	}
	for _, re := range c.patterns {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

// #endregion check
