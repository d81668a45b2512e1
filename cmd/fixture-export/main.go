package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mayur256/ai-assistant/internal/audit"
	"github.com/mayur256/ai-assistant/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to assistant_audit.db")
	last := flag.Int("last", 10, "number of most recent audit records to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	verify := flag.Bool("verify", true, "refuse to export a broken hash chain")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--last N]")
		os.Exit(2)
	}

	if err := run(context.Background(), *dbPath, *last, *outPath, *verify); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(ctx context.Context, dbPath string, last int, outPath string, verify bool) error {
	sink, err := audit.OpenSQLite(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer sink.Close()

	records, err := sink.List(ctx, last)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no audit records found in %s", dbPath)
	}
	if verify {
		if err := audit.Verify(records); err != nil {
			return err
		}
	}

	fmt.Printf("Found %d audit records (seq %d..%d)\n", len(records), records[0].Seq, records[len(records)-1].Seq)

	desc := fmt.Sprintf("Session export: %d records from %s", len(records), dbPath)
	if p := records[len(records)-1].PolicyVersion; p != "" {
		desc += " under policy " + p
	}
	return writeFixture(replay.FromRecords(desc, records), outPath)
}

// #endregion extract

// #region output

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote fixture to %s (%d bytes, %d cases)\n", outPath, len(data), len(fixture.Cases))
	return nil
}

// #endregion output
