package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mayur256/ai-assistant/internal/audit"
	"github.com/mayur256/ai-assistant/internal/capability"
	"github.com/mayur256/ai-assistant/internal/classifier"
	"github.com/mayur256/ai-assistant/internal/config"
	"github.com/mayur256/ai-assistant/internal/embed"
	"github.com/mayur256/ai-assistant/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to assistant_audit.db (DB mode)")
	last := flag.Int("last", 0, "DB mode: replay only the N most recent records")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	capsPath := flag.String("capabilities", "", "capability table (overrides the fixture's)")
	configPath := flag.String("config", "", "assistant config for classifier thresholds")
	jsonOut := flag.Bool("json", false, "output results as JSON")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/assistant_audit.db [--last N]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	ctx := context.Background()
	var f *replay.Fixture
	var err error
	if *fixturePath != "" {
		f, err = replay.LoadFixture(*fixturePath)
	} else {
		f, err = fixtureFromDB(ctx, *dbPath, *last)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load cases: %v\n", err)
		os.Exit(2)
	}
	if *capsPath != "" {
		f.Capabilities = *capsPath
	}

	opts, err := buildOptions(ctx, *configPath, f.Capabilities)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		os.Exit(2)
	}

	results, err := replay.Replay(ctx, *f, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(2)
	}

	summary := replay.Summarize(results)
	if *jsonOut {
		data, _ := json.MarshalIndent(struct {
			Results []replay.Result `json:"results"`
			Summary replay.Summary  `json:"summary"`
		}{results, summary}, "", "  ")
		fmt.Println(string(data))
	} else {
		printComparison(f.Cases, results, summary)
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// #endregion main

// #region setup

// buildOptions uses the hash embedder regardless of config so replays do not
// depend on a running sidecar.
func buildOptions(ctx context.Context, configPath, capsPath string) (replay.Options, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return replay.Options{}, err
	}
	lex := classifier.DefaultLexicon()
	if cfg.Classifier.Lexicon != "" {
		if lex, err = classifier.LoadLexicon(cfg.Classifier.Lexicon); err != nil {
			return replay.Options{}, err
		}
	}
	sem, err := classifier.NewSemanticMatcher(ctx, lex, embed.NewHashEmbedder(cfg.Embedder.Dimension))
	if err != nil {
		return replay.Options{}, err
	}
	reg, err := capability.Load(capsPath, capability.KnownIntents(lex.Intents()))
	if err != nil {
		return replay.Options{}, err
	}
	arb := classifier.NewArbiter(classifier.NewRuleMatcher(lex), sem, lex, classifier.Config{
		HighConfidence: cfg.Classifier.HighConfidence,
		SemanticMin:    cfg.Classifier.SemanticMin,
	})
	return replay.Options{Classifier: arb, Registry: reg}, nil
}

func fixtureFromDB(ctx context.Context, dbPath string, last int) (*replay.Fixture, error) {
	sink, err := audit.OpenSQLite(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer sink.Close()

	records, err := sink.List(ctx, last)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no audit records in %s", dbPath)
	}
	f := replay.FromRecords(fmt.Sprintf("audit log %s", dbPath), records)
	return &f, nil
}

// #endregion setup

// #region output

// printComparison outputs one row per case, then the mismatch details.
func printComparison(cases []replay.Case, results []replay.Result, s replay.Summary) {
	fmt.Printf("%-24s| %-12s| %-12s| %-12s| %s\n", "Case", "Intent", "Action", "Confirm", "Match")
	fmt.Printf("%-24s+%-13s+%-13s+%-13s+%s\n",
		"------------------------", "-------------", "-------------", "-------------", "------")

	for i, r := range results {
		match := "OK"
		if !r.Passed() {
			match = "DIFF"
		}
		action := r.ActionTaken
		if action == "" {
			action = r.ErrorKind
		}
		fmt.Printf("%-24s| %-12s| %-12s| %-12s| %s\n",
			truncate(r.CaseID, 24), r.Intent, truncate(action, 12), r.ConfirmationOutcome, match)
		if !r.Passed() {
			fmt.Printf("    utterance: %q\n", cases[i].Utterance)
			for _, m := range r.Mismatches {
				fmt.Printf("    %s\n", m)
			}
		}
		if len(r.WouldRun) > 0 {
			fmt.Printf("    would run: %s\n", strings.Join(r.WouldRun, "; "))
		}
	}

	fmt.Printf("\nSummary: %d total, %d match, %d diverge (%d dispatched, %d refused)\n",
		s.Total, s.Passed, s.Failed, s.Dispatched, s.Refused)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

// #endregion output
