package eval

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mayur256/ai-assistant/internal/intent"
)

//go:embed cases.yaml
var defaultCases []byte

// #region cases
type caseFile struct {
	Cases []Case `yaml:"cases"`
}

// DefaultCases returns the built-in labelled utterances.
func DefaultCases() []Case {
	cs, err := ParseCases(defaultCases)
	if err != nil {
		panic(fmt.Sprintf("built-in eval cases: %v", err))
	}
	return cs
}

// LoadCases reads a YAML case file; an empty path returns DefaultCases.
func LoadCases(path string) ([]Case, error) {
	if path == "" {
		return DefaultCases(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases %s: %w", path, err)
	}
	return ParseCases(data)
}

// ParseCases decodes a case file and rejects unlabelled entries.
func ParseCases(data []byte) ([]Case, error) {
	var f caseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cases: %w", err)
	}
	for i, c := range f.Cases {
		if c.Intent == "" {
			return nil, fmt.Errorf("case %d (%q) has no intent", i, c.Text)
		}
	}
	return f.Cases, nil
}

// #endregion cases

// #region eval-harness
// Classifier is the component under evaluation.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Result
}

// Run classifies every case and tallies accuracy overall and per intent.
func Run(ctx context.Context, c Classifier, cases []Case) Report {
	r := Report{
		Total:     len(cases),
		PerIntent: make(map[intent.Intent]IntentMetric),
		BySource:  make(map[intent.Source]int),
	}
	for _, tc := range cases {
		res := c.Classify(ctx, tc.Text)
		r.BySource[res.Source]++

		m := r.PerIntent[tc.Intent]
		m.Total++
		if res.Intent == tc.Intent {
			m.Correct++
			r.Correct++
		} else {
			r.Misses = append(r.Misses, Miss{
				Text:       tc.Text,
				Want:       tc.Intent,
				Got:        res.Intent,
				Confidence: res.Confidence,
				Source:     res.Source,
			})
		}
		r.PerIntent[tc.Intent] = m
	}

	for k, m := range r.PerIntent {
		m.Recall = float64(m.Correct) / float64(m.Total)
		r.PerIntent[k] = m
	}
	if r.Total > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.Total)
	}
	return r
}

// #endregion eval-harness
