package capability

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mayur256/ai-assistant/internal/intent"
)

// #region risk-tier
// RiskTier is the ordinal impact class of an action.
type RiskTier string

const (
	RiskLow      RiskTier = "LOW"
	RiskMedium   RiskTier = "MEDIUM"
	RiskHigh     RiskTier = "HIGH"
	RiskCritical RiskTier = "CRITICAL"
)

// Rank orders tiers; unknown tiers rank highest.
func (r RiskTier) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 3
	}
}

// ParseRiskTier accepts a tier name in any case.
func ParseRiskTier(s string) (RiskTier, error) {
	switch r := RiskTier(strings.ToUpper(strings.TrimSpace(s))); r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return r, nil
	}
	return "", fmt.Errorf("unknown risk tier %q", s)
}

// #endregion risk-tier

// #region descriptor
// ParamRule lists what a slot may hold. A value passes when it equals one of
// Values or fully matches one of Patterns, and Rule (if set) evaluates true.
type ParamRule struct {
	Required bool     `yaml:"required" json:"required"`
	Values   []string `yaml:"values,omitempty" json:"values,omitempty"`
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Rule     string   `yaml:"rule,omitempty" json:"rule,omitempty"`
}

// Descriptor is the authorization entry for one intent.
type Descriptor struct {
	Intent               intent.Intent        `json:"intent"`
	Risk                 RiskTier             `json:"risk"`
	RequiresConfirmation bool                 `json:"requires_confirmation"`
	AllowedParams        map[string]ParamRule `json:"allowed_params"`
	HandlerID            string               `json:"handler_id"`
	Description          string               `json:"description,omitempty"`
}

// NeedsConfirmation reports whether a human must approve the action.
func (d Descriptor) NeedsConfirmation() bool {
	return d.RequiresConfirmation || d.Risk.Rank() >= RiskHigh.Rank()
}

func (d Descriptor) clone() Descriptor {
	out := d
	out.AllowedParams = make(map[string]ParamRule, len(d.AllowedParams))
	for k, p := range d.AllowedParams {
		out.AllowedParams[k] = ParamRule{
			Required: p.Required,
			Values:   append([]string(nil), p.Values...),
			Patterns: append([]string(nil), p.Patterns...),
			Rule:     p.Rule,
		}
	}
	return out
}

// #endregion descriptor

// #region args
// Arg is one validated slot value.
type Arg struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Args is the ordered, validated parameter list handed to a handler.
type Args []Arg

// Get returns the value of the named argument.
func (a Args) Get(name string) (string, bool) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return "", false
}

// Map returns the arguments as a fresh map.
func (a Args) Map() map[string]string {
	out := make(map[string]string, len(a))
	for _, arg := range a {
		out[arg.Name] = arg.Value
	}
	return out
}

// #endregion args

// #region authorization
// Authorization is proof that an intent and its slots passed the registry.
// Only Registry.Authorize can produce a non-zero value.
type Authorization struct {
	desc   Descriptor
	args   Args
	policy string
}

// Descriptor returns a copy of the authorizing descriptor.
func (a Authorization) Descriptor() Descriptor { return a.desc.clone() }

// Intent returns the authorized intent.
func (a Authorization) Intent() intent.Intent { return a.desc.Intent }

// HandlerID returns the handler named by the descriptor.
func (a Authorization) HandlerID() string { return a.desc.HandlerID }

// Args returns a copy of the validated arguments.
func (a Authorization) Args() Args { return append(Args(nil), a.args...) }

// Policy returns the registry version and fingerprint that authorized this.
func (a Authorization) Policy() string { return a.policy }

// Valid reports whether a was produced by a registry.
func (a Authorization) Valid() bool { return a.desc.HandlerID != "" && a.policy != "" }

// Describe renders the descriptor's description template, e.g.
// "close {app_name}" becomes "close firefox".
func (a Authorization) Describe() string {
	tmpl := a.desc.Description
	if tmpl == "" {
		tmpl = strings.ToLower(strings.ReplaceAll(string(a.desc.Intent), "_", " "))
		for _, arg := range a.args {
			tmpl += " {" + arg.Name + "}"
		}
	}
	pairs := make([]string, 0, len(a.args)*2)
	for _, arg := range a.args {
		pairs = append(pairs, "{"+arg.Name+"}", arg.Value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// #endregion authorization

// #region errors
// ErrNotRegistered means the intent has no capability and can never run.
var ErrNotRegistered = errors.New("capability not registered")

// SlotError rejects a slot value or a missing required slot.
type SlotError struct {
	Intent intent.Intent
	Slot   string
	Value  string
	Reason string
}

func (e *SlotError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("slot %s for %s: %s", e.Slot, e.Intent, e.Reason)
	}
	return fmt.Sprintf("slot %s=%q for %s: %s", e.Slot, e.Value, e.Intent, e.Reason)
}

// #endregion errors
