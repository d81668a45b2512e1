package capability

import (
	"fmt"
	"sort"

	"github.com/mayur256/ai-assistant/internal/intent"
)

// #region registry
// Registry is the immutable capability table. Safe for concurrent use.
type Registry struct {
	version     string
	fingerprint string
	entries     map[intent.Intent]Descriptor
	rules       map[intent.Intent]map[string]compiledRule
	order       []intent.Intent
}

// Version returns the table's declared semantic version.
func (r *Registry) Version() string { return r.version }

// Fingerprint returns the sha256 of the canonical JSON form of the table.
func (r *Registry) Fingerprint() string { return r.fingerprint }

// Policy returns "version@fingerprint-prefix", recorded with each decision.
func (r *Registry) Policy() string {
	fp := r.fingerprint
	if len(fp) > 12 {
		fp = fp[:12]
	}
	return r.version + "@" + fp
}

// Intents returns the registered intents in sorted order.
func (r *Registry) Intents() []intent.Intent {
	return append([]intent.Intent(nil), r.order...)
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int { return len(r.entries) }

// #endregion registry

// #region lookup
// Lookup returns the descriptor for i. UNKNOWN is never registered.
func (r *Registry) Lookup(i intent.Intent) (Descriptor, error) {
	if i == intent.Unknown {
		return Descriptor{}, fmt.Errorf("lookup %s: %w", i, ErrNotRegistered)
	}
	d, ok := r.entries[i]
	if !ok {
		return Descriptor{}, fmt.Errorf("lookup %s: %w", i, ErrNotRegistered)
	}
	return d.clone(), nil
}

// #endregion lookup

// #region validate
// ValidateSlots checks slots against the registered rules for desc.Intent.
// The registry's own entry is authoritative, so an edited descriptor cannot
// widen what is allowed.
func (r *Registry) ValidateSlots(desc Descriptor, slots map[string]string) error {
	rules, ok := r.rules[desc.Intent]
	if !ok {
		return fmt.Errorf("validate %s: %w", desc.Intent, ErrNotRegistered)
	}

	names := make([]string, 0, len(slots))
	for k := range slots {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		value := slots[name]
		rule, ok := rules[name]
		if !ok {
			return &SlotError{Intent: desc.Intent, Slot: name, Value: value, Reason: "slot not permitted"}
		}
		if reason := rule.check(value); reason != "" {
			return &SlotError{Intent: desc.Intent, Slot: name, Value: value, Reason: reason}
		}
	}

	for _, name := range sortedKeys(rules) {
		if _, present := slots[name]; rules[name].required && !present {
			return &SlotError{Intent: desc.Intent, Slot: name, Reason: "required slot missing"}
		}
	}
	return nil
}

// #endregion validate

// #region authorize
// Authorize looks up res.Intent and validates its slots. On success it
// returns the Authorization the dispatcher requires.
func (r *Registry) Authorize(res intent.Result) (Authorization, error) {
	desc, err := r.Lookup(res.Intent)
	if err != nil {
		return Authorization{}, err
	}
	if err := r.ValidateSlots(desc, res.Slots); err != nil {
		return Authorization{}, err
	}
	args := make(Args, 0, len(res.Slots))
	for _, name := range sortedKeys(res.Slots) {
		args = append(args, Arg{Name: name, Value: res.Slots[name]})
	}
	return Authorization{desc: desc, args: args, policy: r.Policy()}, nil
}

// #endregion authorize

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
