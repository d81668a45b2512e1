package capability

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/gowebpki/jcs"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/mayur256/ai-assistant/internal/intent"
)

// #region embedded

//go:embed schema.json
var schemaJSON []byte

//go:embed default.yaml
var defaultYAML []byte

// SupportedVersions is the semver constraint a table's version must meet.
const SupportedVersions = "^1.0.0"

const schemaURL = "https://ai-assistant.local/schemas/capabilities.schema.json"

// DefaultTable returns the embedded default capability table.
func DefaultTable() []byte {
	return append([]byte(nil), defaultYAML...)
}

// #endregion embedded

// #region options
type loadOptions struct {
	known func(intent.Intent) bool
}

// LoadOption configures Load and Parse.
type LoadOption func(*loadOptions)

// KnownIntents restricts registrable intents to the given vocabulary.
// Without it only the built-in intents are accepted.
func KnownIntents(intents []intent.Intent) LoadOption {
	set := make(map[intent.Intent]bool, len(intents))
	for _, i := range intents {
		set[i] = true
	}
	return func(o *loadOptions) {
		o.known = func(i intent.Intent) bool { return set[i] }
	}
}

// #endregion options

// #region load
// Load reads a capability table from path. An empty path loads the
// embedded default table.
func Load(path string, opts ...LoadOption) (*Registry, error) {
	if path == "" {
		return Parse(defaultYAML, "default.yaml", opts...)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capabilities %s: %w", path, err)
	}
	return Parse(data, path, opts...)
}

type fileDoc struct {
	Version      string                    `yaml:"version"`
	Capabilities map[string]fileCapability `yaml:"capabilities"`
}

type fileCapability struct {
	Risk                 string               `yaml:"risk"`
	RequiresConfirmation bool                 `yaml:"requires_confirmation"`
	HandlerID            string               `yaml:"handler_id"`
	Description          string               `yaml:"description"`
	AllowedParams        map[string]ParamRule `yaml:"allowed_params"`
}

// Parse builds a Registry from YAML. Every defect is reported here, at
// startup: duplicate keys, schema violations, unsupported versions, unknown
// intents, and bad patterns or rules.
func Parse(data []byte, source string, opts ...LoadOption) (*Registry, error) {
	o := loadOptions{known: intent.IsBuiltin}
	for _, opt := range opts {
		opt(&o)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse capabilities %s: %w", source, err)
	}
	if err := checkDuplicateKeys(&root); err != nil {
		return nil, fmt.Errorf("parse capabilities %s: %w", source, err)
	}
	if err := validateSchema(&root); err != nil {
		return nil, fmt.Errorf("validate capabilities %s: %w", source, err)
	}

	var doc fileDoc
	if err := root.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode capabilities %s: %w", source, err)
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, fmt.Errorf("capabilities %s: %w", source, err)
	}

	reg, err := build(doc, o)
	if err != nil {
		return nil, fmt.Errorf("capabilities %s: %w", source, err)
	}
	return reg, nil
}

// #endregion load

// #region build
func build(doc fileDoc, o loadOptions) (*Registry, error) {
	env, err := newRuleEnv()
	if err != nil {
		return nil, err
	}
	reg := &Registry{
		version: doc.Version,
		entries: make(map[intent.Intent]Descriptor, len(doc.Capabilities)),
		rules:   make(map[intent.Intent]map[string]compiledRule, len(doc.Capabilities)),
	}

	for name, fc := range doc.Capabilities {
		in := intent.Intent(name)
		if in == intent.Unknown {
			return nil, fmt.Errorf("%s cannot be registered", in)
		}
		if !o.known(in) {
			return nil, fmt.Errorf("%s is not a declared intent", in)
		}
		risk, err := ParseRiskTier(fc.Risk)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in, err)
		}
		desc := Descriptor{
			Intent:               in,
			Risk:                 risk,
			RequiresConfirmation: fc.RequiresConfirmation,
			AllowedParams:        fc.AllowedParams,
			HandlerID:            fc.HandlerID,
			Description:          fc.Description,
		}
		rules := make(map[string]compiledRule, len(fc.AllowedParams))
		for slot, p := range fc.AllowedParams {
			c, err := compileRule(env, p)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", in, slot, err)
			}
			rules[slot] = c
		}
		reg.entries[in] = desc.clone()
		reg.rules[in] = rules
		reg.order = append(reg.order, in)
	}
	sort.Slice(reg.order, func(i, j int) bool { return reg.order[i] < reg.order[j] })

	fp, err := fingerprint(doc)
	if err != nil {
		return nil, err
	}
	reg.fingerprint = fp
	return reg, nil
}

// fingerprint hashes the RFC 8785 canonical JSON form of the table.
func fingerprint(doc fileDoc) (string, error) {
	raw, err := json.Marshal(doc.toJSON())
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

func (d fileDoc) toJSON() map[string]any {
	caps := make(map[string]any, len(d.Capabilities))
	for name, c := range d.Capabilities {
		caps[name] = map[string]any{
			"risk":                  c.Risk,
			"requires_confirmation": c.RequiresConfirmation,
			"handler_id":            c.HandlerID,
			"description":           c.Description,
			"allowed_params":        c.AllowedParams,
		}
	}
	return map[string]any{"version": d.Version, "capabilities": caps}
}

// #endregion build

// #region checks
// checkDuplicateKeys walks every mapping and rejects repeated keys.
func checkDuplicateKeys(n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			if err := checkDuplicateKeys(c); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		seen := make(map[string]int, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if line, dup := seen[k.Value]; dup {
				return fmt.Errorf("duplicate key %q at line %d (first at line %d)", k.Value, k.Line, line)
			}
			seen[k.Value] = k.Line
			if err := checkDuplicateKeys(n.Content[i+1]); err != nil {
				return err
			}
		}
	}
	return nil
}

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("capability schema load failed: %v", err))
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("capability schema compile failed: %v", err))
	}
	return s
}

// validateSchema round-trips the YAML tree through JSON so the validator
// sees plain JSON values.
func validateSchema(root *yaml.Node) error {
	var generic any
	if err := root.Decode(&generic); err != nil {
		return err
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("not representable as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return compiledSchema.Validate(doc)
}

func checkVersion(v string) error {
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("version %q: %w", v, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}
	if !c.Check(ver) {
		return fmt.Errorf("version %s does not satisfy %s", ver, SupportedVersions)
	}
	return nil
}

// #endregion checks
