package eval

import "github.com/mayur256/ai-assistant/internal/intent"

// #region eval-case
// Case is one labelled utterance.
type Case struct {
	Text   string        `yaml:"text" json:"text"`
	Intent intent.Intent `yaml:"intent" json:"intent"`
}

// #endregion eval-case

// #region eval-metric
// IntentMetric counts results for one expected intent.
type IntentMetric struct {
	Total   int     `json:"total"`
	Correct int     `json:"correct"`
	Recall  float64 `json:"recall"`
}

// Miss records a misclassified case.
type Miss struct {
	Text       string        `json:"text"`
	Want       intent.Intent `json:"want"`
	Got        intent.Intent `json:"got"`
	Confidence float64       `json:"confidence"`
	Source     intent.Source `json:"source"`
}

// #endregion eval-metric

// #region eval-result
// Report is the output of an accuracy run.
type Report struct {
	Total     int                            `json:"total"`
	Correct   int                            `json:"correct"`
	Accuracy  float64                        `json:"accuracy"`
	PerIntent map[intent.Intent]IntentMetric `json:"per_intent"`
	BySource  map[intent.Source]int          `json:"by_source"`
	Misses    []Miss                         `json:"misses,omitempty"`
}

// Passed reports whether accuracy meets min.
func (r Report) Passed(min float64) bool { return r.Accuracy >= min }

// #endregion eval-result
