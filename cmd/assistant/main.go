// Package main is the voice assistant: an interactive loop plus tooling to
// classify, inspect capabilities, evaluate the classifier and serve embeddings.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/mayur256/ai-assistant/internal/embed"
	"github.com/mayur256/ai-assistant/internal/eval"
	"github.com/mayur256/ai-assistant/internal/intent"
	"github.com/mayur256/ai-assistant/internal/metrics"
	"github.com/mayur256/ai-assistant/internal/speech"
)

var version = "dev"

// #region main
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "assistant",
		Short:         "Local voice assistant with an auditable decision core",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./assistant.yaml)")

	root.AddCommand(
		newRunCmd(&configPath),
		newClassifyCmd(&configPath),
		newCapabilitiesCmd(&configPath),
		newEvalCmd(&configPath),
		newEmbedderCmd(&configPath),
	)
	return root
}

// #endregion main

// #region run
func newRunCmd(configPath *string) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive assistant loop",
		Long: `Reads one utterance per line from stdin and runs it through the
classifier, capability registry, confirmation gate, dispatcher and audit log.
Type "exit" or "quit" to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newBase(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := a.buildPipeline(ctx); err != nil {
				return err
			}

			if metricsAddr == "" {
				metricsAddr = a.cfg.Metrics.Addr
			}

			g, gctx := errgroup.WithContext(ctx)
			if metricsAddr != "" {
				g.Go(func() error {
					a.log.Info().Str("addr", metricsAddr).Msg("serving metrics")
					return metrics.Serve(gctx, metricsAddr)
				})
			}
			g.Go(func() error {
				defer cancel()
				return a.loop(gctx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func isExit(text string) bool {
	switch strings.ToLower(strings.Trim(text, " .!")) {
	case "exit", "quit", "goodbye", "bye":
		return true
	}
	return false
}

// loop reads utterances until stdin closes, an exit word, or ctx is done.
func (a *app) loop(ctx context.Context) error {
	if err := a.speaker.Say(ctx, speech.Greeting(time.Now())); err != nil {
		a.log.Warn().Err(err).Msg("speak failed")
	}
	for {
		fmt.Print("> ")
		line, err := a.listener.Listen(ctx)
		if errors.Is(err, speech.ErrClosed) || ctx.Err() != nil {
			break
		}
		if err != nil {
			return err
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if isExit(text) {
			break
		}

		resp := a.pipeline.Handle(ctx, text)
		if resp.AuditErr != nil {
			a.log.Warn().Err(resp.AuditErr).Str("invocation_id", resp.InvocationID).Msg("audit record went to fallback")
		}
		if resp.Speech != "" {
			if err := a.speaker.Say(ctx, resp.Speech); err != nil {
				a.log.Warn().Err(err).Msg("speak failed")
			}
		}
	}
	// The parent context may already be cancelled on SIGINT.
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.speaker.Say(sctx, speech.Farewell(time.Now())); err != nil {
		a.log.Warn().Err(err).Msg("speak failed")
	}
	return nil
}

// #endregion run

// #region classify
type classifyOutput struct {
	Intent            string            `json:"intent"`
	Confidence        float64           `json:"confidence"`
	Source            string            `json:"source"`
	Slots             map[string]string `json:"slots"`
	Authorized        bool              `json:"authorized"`
	HandlerID         string            `json:"handler_id,omitempty"`
	Action            string            `json:"action,omitempty"`
	NeedsConfirmation bool              `json:"needs_confirmation,omitempty"`
	Refusal           string            `json:"refusal,omitempty"`
}

func newClassifyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <utterance>",
		Short: "Classify an utterance and check it against the registry without acting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newBase(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := a.buildClassifier(cmd.Context()); err != nil {
				return err
			}

			res := a.arbiter.Classify(cmd.Context(), strings.Join(args, " "))
			out := classifyOutput{
				Intent:     string(res.Intent),
				Confidence: res.Confidence,
				Source:     string(res.Source),
				Slots:      res.Slots,
			}
			auth, err := a.registry.Authorize(res)
			if err != nil {
				out.Refusal = err.Error()
			} else {
				out.Authorized = true
				out.HandlerID = auth.HandlerID()
				out.Action = auth.Describe()
				out.NeedsConfirmation = auth.Descriptor().NeedsConfirmation()
			}
			return printJSON(out)
		},
	}
}

// #endregion classify

// #region capabilities
func newCapabilitiesCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Print the loaded capability table and its policy fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newBase(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := a.buildClassifier(cmd.Context()); err != nil {
				return err
			}

			r := a.registry
			if asJSON {
				out := struct {
					Version      string `json:"version"`
					Fingerprint  string `json:"fingerprint"`
					Capabilities []any  `json:"capabilities"`
				}{Version: r.Version(), Fingerprint: r.Fingerprint()}
				for _, i := range r.Intents() {
					desc, _ := r.Lookup(i)
					out.Capabilities = append(out.Capabilities, desc)
				}
				return printJSON(out)
			}

			fmt.Printf("Policy %s (%d capabilities)\n\n", r.Policy(), r.Len())
			fmt.Printf("%-12s  %-6s  %-7s  %-12s  %s\n", "INTENT", "RISK", "CONFIRM", "HANDLER", "PARAMS")
			fmt.Printf("%-12s  %-6s  %-7s  %-12s  %s\n", "------------", "------", "-------", "------------", "------")
			for _, i := range r.Intents() {
				desc, err := r.Lookup(i)
				if err != nil {
					return err
				}
				params := make([]string, 0, len(desc.AllowedParams))
				for name, rule := range desc.AllowedParams {
					if rule.Required {
						name += "*"
					}
					params = append(params, name)
				}
				sort.Strings(params)
				confirm := "no"
				if desc.NeedsConfirmation() {
					confirm = "yes"
				}
				fmt.Printf("%-12s  %-6s  %-7s  %-12s  %s\n", i, desc.Risk, confirm, desc.HandlerID, strings.Join(params, ","))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

// #endregion capabilities

// #region eval
func newEvalCmd(configPath *string) *cobra.Command {
	var casesPath string
	var minAccuracy float64

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure classifier accuracy on a labelled utterance set",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newBase(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := a.buildClassifier(cmd.Context()); err != nil {
				return err
			}

			cases := eval.DefaultCases()
			if casesPath != "" {
				if cases, err = eval.LoadCases(casesPath); err != nil {
					return err
				}
			}

			report := eval.Run(cmd.Context(), a.arbiter, cases)
			fmt.Printf("Accuracy: %d/%d (%.1f%%)\n\n", report.Correct, report.Total, report.Accuracy*100)
			intents := make([]string, 0, len(report.PerIntent))
			for i := range report.PerIntent {
				intents = append(intents, string(i))
			}
			sort.Strings(intents)
			fmt.Printf("%-12s  %5s  %7s  %6s\n", "INTENT", "TOTAL", "CORRECT", "RECALL")
			fmt.Printf("%-12s  %5s  %7s  %6s\n", "------------", "-----", "-------", "------")
			for _, name := range intents {
				m := report.PerIntent[intent.Intent(name)]
				fmt.Printf("%-12s  %5d  %7d  %6.2f\n", name, m.Total, m.Correct, m.Recall)
			}
			for _, miss := range report.Misses {
				fmt.Printf("  miss: %q want=%s got=%s (%.2f)\n", miss.Text, miss.Want, miss.Got, miss.Confidence)
			}

			if !report.Passed(minAccuracy) {
				return fmt.Errorf("accuracy %.3f below minimum %.3f", report.Accuracy, minAccuracy)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&casesPath, "cases", "", "YAML case file (default: built-in set)")
	cmd.Flags().Float64Var(&minAccuracy, "min", 0.9, "fail below this accuracy")
	return cmd
}

// #endregion eval

// #region embedder
func newEmbedderCmd(configPath *string) *cobra.Command {
	parent := &cobra.Command{
		Use:   "embedder",
		Short: "Embedding sidecar tools",
	}

	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the hash embedder over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newBase(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.cfg.Embedder.Addr
			}

			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			srv := grpc.NewServer()
			embed.RegisterServer(srv, embed.NewHashEmbedder(a.cfg.Embedder.Dimension))

			go func() {
				<-cmd.Context().Done()
				srv.GracefulStop()
			}()
			a.log.Info().Str("addr", lis.Addr().String()).Int("dimension", a.cfg.Embedder.Dimension).Msg("embedder serving")
			if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default embedder.addr)")
	parent.AddCommand(serve)
	return parent
}

// #endregion embedder

// #region helpers
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// #endregion helpers
