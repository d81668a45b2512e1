package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mayur256/ai-assistant/internal/audit"
)

// #region main

type sinkFlags struct {
	sink      string
	dbPath    string
	redisAddr string
	stream    string
}

func main() {
	var sf sinkFlags

	root := &cobra.Command{
		Use:           "inspect",
		Short:         "Read and verify the assistant audit log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&sf.sink, "sink", "sqlite", "audit sink: sqlite or redis")
	root.PersistentFlags().StringVar(&sf.dbPath, "db", "assistant_audit.db", "path to the SQLite audit database")
	root.PersistentFlags().StringVar(&sf.redisAddr, "redis-addr", "127.0.0.1:6379", "Redis address")
	root.PersistentFlags().StringVar(&sf.stream, "stream", audit.DefaultStream, "Redis stream key")

	root.AddCommand(newListCmd(&sf), newShowCmd(&sf), newVerifyCmd(&sf))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func openSink(ctx context.Context, sf *sinkFlags) (audit.Sink, error) {
	switch sf.sink {
	case "sqlite":
		return audit.OpenSQLite(sf.dbPath)
	case "redis":
		return audit.NewRedisSink(ctx, audit.RedisConfig{Addr: sf.redisAddr, Stream: sf.stream})
	default:
		return nil, fmt.Errorf("unknown sink %q", sf.sink)
	}
}

func readRecords(ctx context.Context, sf *sinkFlags, limit int) ([]audit.Record, error) {
	sink, err := openSink(ctx, sf)
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	defer sink.Close()
	return sink.List(ctx, limit)
}

// #endregion main

// #region list-mode

type listRow struct {
	Seq        int64   `json:"seq"`
	Time       string  `json:"time"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Confirm    string  `json:"confirmation,omitempty"`
	Action     string  `json:"action,omitempty"`
	Success    bool    `json:"success"`
	ErrorKind  string  `json:"error_kind,omitempty"`
	Utterance  string  `json:"utterance"`
}

func newListCmd(sf *sinkFlags) *cobra.Command {
	var last int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent audit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(cmd.Context(), sf, last)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No audit records found.")
				return nil
			}

			rows := make([]listRow, len(records))
			for i, r := range records {
				rows[i] = listRow{
					Seq:        r.Seq,
					Time:       r.Timestamp.Local().Format("2006-01-02 15:04:05"),
					Intent:     r.Intent,
					Confidence: r.Confidence,
					Confirm:    r.ConfirmationOutcome,
					Action:     r.ActionTaken,
					Success:    r.Success,
					ErrorKind:  r.ErrorKind,
					Utterance:  r.Utterance,
				}
			}
			if jsonOut {
				return printJSON(rows)
			}
			printListTable(rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent records (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

func printListTable(rows []listRow) {
	fmt.Printf("%6s  %-19s  %-12s  %5s  %-10s  %-12s  %-3s  %s\n",
		"SEQ", "TIME", "INTENT", "CONF", "CONFIRM", "ACTION", "OK", "UTTERANCE")
	fmt.Printf("%6s  %-19s  %-12s  %5s  %-10s  %-12s  %-3s  %s\n",
		"------", "-------------------", "------------", "-----", "----------", "------------", "---", "---------")
	for _, r := range rows {
		ok := "yes"
		if !r.Success {
			ok = "no"
		}
		fmt.Printf("%6d  %-19s  %-12s  %5.2f  %-10s  %-12s  %-3s  %s\n",
			r.Seq, r.Time, r.Intent, r.Confidence, dash(r.Confirm), dash(r.Action), ok, truncate(r.Utterance, 48))
	}

	var refused int
	kinds := map[string]int{}
	for _, r := range rows {
		if !r.Success {
			refused++
			kinds[r.ErrorKind]++
		}
	}
	fmt.Printf("\n%d records, %d not completed\n", len(rows), refused)
	for kind, n := range kinds {
		fmt.Printf("  %-28s %d\n", dash(kind), n)
	}
}

// #endregion list-mode

// #region detail-mode

func newShowCmd(sf *sinkFlags) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <seq|id>",
		Short: "Show one audit record in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(cmd.Context(), sf, 0)
			if err != nil {
				return err
			}
			rec, ok := findRecord(records, args[0])
			if !ok {
				return fmt.Errorf("record %s not found", args[0])
			}
			if jsonOut {
				return printJSON(rec)
			}

			fmt.Printf("Seq:          %d\n", rec.Seq)
			fmt.Printf("ID:           %s\n", rec.ID)
			fmt.Printf("Time:         %s\n", rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"))
			fmt.Printf("Utterance:    %s\n", rec.Utterance)
			fmt.Printf("Intent:       %s (%.2f via %s)\n", rec.Intent, rec.Confidence, rec.Source)
			fmt.Printf("Risk:         %s\n", dash(rec.RiskTier))
			fmt.Printf("Confirmation: %s\n", dash(rec.ConfirmationOutcome))
			fmt.Printf("Action:       %s\n", dash(rec.ActionTaken))
			fmt.Printf("Success:      %v\n", rec.Success)
			fmt.Printf("Message:      %s\n", rec.Message)
			if rec.ErrorKind != "" {
				fmt.Printf("Error Kind:   %s\n", rec.ErrorKind)
			}
			fmt.Printf("Policy:       %s\n", dash(rec.PolicyVersion))
			if len(rec.Slots) > 0 {
				fmt.Printf("\nSlots:\n")
				for k, v := range rec.Slots {
					fmt.Printf("  %-12s %q\n", k, v)
				}
			}
			fmt.Printf("\nPrev Hash:    %s\n", shortID(rec.PrevHash))
			fmt.Printf("Hash:         %s\n", shortID(rec.Hash))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func findRecord(records []audit.Record, key string) (audit.Record, bool) {
	seq, seqErr := strconv.ParseInt(key, 10, 64)
	for _, r := range records {
		if r.ID == key || (seqErr == nil && r.Seq == seq) {
			return r, true
		}
	}
	return audit.Record{}, false
}

// #endregion detail-mode

// #region verify-mode

func newVerifyCmd(sf *sinkFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Recompute every record hash and check the chain is unbroken",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(cmd.Context(), sf, 0)
			if err != nil {
				return err
			}
			if err := audit.Verify(records); err != nil {
				var ce *audit.ChainError
				if errors.As(err, &ce) {
					fmt.Printf("FAIL  seq %d: %s\n", ce.Seq, ce.Reason)
				}
				return err
			}
			if len(records) == 0 {
				fmt.Println("OK    empty log")
				return nil
			}
			head := records[len(records)-1]
			fmt.Printf("OK    %d records, head seq %d hash %s\n", len(records), head.Seq, shortID(head.Hash))
			return nil
		},
	}
}

// #endregion verify-mode

// #region helpers

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	if id == "" {
		return "-"
	}
	return id
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n-3]) + "..."
}

// #endregion helpers
