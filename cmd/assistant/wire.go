package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/mayur256/ai-assistant/internal/audit"
	"github.com/mayur256/ai-assistant/internal/capability"
	"github.com/mayur256/ai-assistant/internal/classifier"
	"github.com/mayur256/ai-assistant/internal/config"
	"github.com/mayur256/ai-assistant/internal/dispatch"
	"github.com/mayur256/ai-assistant/internal/embed"
	"github.com/mayur256/ai-assistant/internal/gate"
	"github.com/mayur256/ai-assistant/internal/logging"
	"github.com/mayur256/ai-assistant/internal/metrics"
	"github.com/mayur256/ai-assistant/internal/pipeline"
	"github.com/mayur256/ai-assistant/internal/speech"
)

// #region app

// app holds the wired components and everything that must be closed on exit,
// in reverse order of construction.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	arbiter  *classifier.Arbiter
	registry *capability.Registry
	speaker  speech.Speaker
	listener speech.Listener
	pipeline *pipeline.Pipeline
	closers  []io.Closer
}

func (a *app) onClose(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// #endregion app

// #region base

// newBase loads configuration and the logger. Every subcommand starts here.
func newBase(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, closer, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		File:    cfg.Log.File,
	})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	a.onClose(closer)
	return a, nil
}

// #endregion base

// #region classifier

func (a *app) buildEmbedder() (embed.Embedder, error) {
	ec := a.cfg.Embedder
	var e embed.Embedder
	switch ec.Backend {
	case "grpc":
		c, err := embed.NewClient(ec.Addr, ec.Dimension, ec.Timeout)
		if err != nil {
			return nil, err
		}
		a.onClose(c)
		e = c
	default:
		e = embed.NewHashEmbedder(ec.Dimension)
	}
	if ec.CacheSize > 0 {
		cached, err := embed.NewCached(e, ec.CacheSize)
		if err != nil {
			return nil, err
		}
		e = cached
	}
	return e, nil
}

// buildClassifier wires the rule and semantic matchers. When the embedder
// cannot index the lexicon the arbiter runs on rules alone.
func (a *app) buildClassifier(ctx context.Context) (*classifier.Lexicon, error) {
	lex := classifier.DefaultLexicon()
	if path := a.cfg.Classifier.Lexicon; path != "" {
		l, err := classifier.LoadLexicon(path)
		if err != nil {
			return nil, err
		}
		lex = l
	}

	e, err := a.buildEmbedder()
	if err != nil {
		return nil, err
	}
	sem, err := classifier.NewSemanticMatcher(ctx, lex, e)
	if err != nil {
		a.log.Warn().Err(err).Str("embedder", e.Name()).Msg("semantic matcher unavailable, using rules only")
		sem = nil
	}

	cc := a.cfg.Classifier
	a.arbiter = classifier.NewArbiter(
		classifier.NewRuleMatcher(lex),
		sem,
		lex,
		classifier.Config{
			HighConfidence: cc.HighConfidence,
			SemanticMin:    cc.SemanticMin,
			Speculative:    cc.Speculative,
		},
		classifier.WithLogger(a.log),
	)

	a.registry, err = capability.Load(a.cfg.Capabilities.Path, capability.KnownIntents(lex.Intents()))
	if err != nil {
		return nil, err
	}
	return lex, nil
}

// #endregion classifier

// #region audit

func (a *app) buildSink(ctx context.Context) (audit.Sink, error) {
	ac := a.cfg.Audit
	switch ac.Sink {
	case "redis":
		return audit.NewRedisSink(ctx, audit.RedisConfig{
			Addr:     ac.Redis.Addr,
			Password: ac.Redis.Password,
			DB:       ac.Redis.DB,
			Stream:   ac.Redis.Stream,
		})
	case "memory":
		return audit.NewMemorySink(), nil
	default:
		return audit.OpenSQLite(ac.Path)
	}
}

func (a *app) buildAudit(ctx context.Context) (*audit.Log, error) {
	sink, err := a.buildSink(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit sink %s: %w", a.cfg.Audit.Sink, err)
	}
	fallback, closer, err := logging.NewFallback(a.cfg.Audit.FallbackPath)
	if err != nil {
		sink.Close()
		return nil, err
	}
	a.onClose(closer)

	l, err := audit.New(ctx, sink, audit.Config{WriteTimeout: a.cfg.Audit.WriteTimeout},
		audit.WithLogger(a.log),
		audit.WithFallback(fallback),
		audit.WithFallbackHook(func(string) { metrics.AuditFallbacks.Inc() }),
	)
	if err != nil {
		sink.Close()
		return nil, err
	}
	a.onClose(l)
	return l, nil
}

// #endregion audit

// #region pipeline

func (a *app) buildSpeech() error {
	var sp speech.Speaker = speech.NewConsoleSpeaker(os.Stdout)
	if bin := a.cfg.Speech.Command; bin != "" {
		cs, err := speech.NewCommandSpeaker(bin, a.cfg.Speech.Args...)
		if err != nil {
			return err
		}
		sp = speech.Tee{sp, cs}
	}
	a.speaker = sp
	a.listener = speech.NewLineListener(os.Stdin)
	return nil
}

func (a *app) buildConfirmer() gate.Confirmer {
	if a.cfg.Confirmation.Provider == "voice" {
		return gate.NewVoiceConfirmer(a.speaker, a.listener)
	}
	return gate.NewManualConfirmer(os.Stdout, a.listener)
}

func (a *app) buildDispatcher(r dispatch.Runner) (*dispatch.Dispatcher, error) {
	dc := a.cfg.Dispatch
	bc := dispatch.DefaultBuiltinConfig()
	if len(dc.Apps) > 0 {
		bc.Apps = dc.Apps
	}
	if dc.Opener != "" {
		bc.Opener = dc.Opener
	}
	if dc.Player != "" {
		bc.Player = dc.Player
	}
	if dc.SearchURL != "" {
		bc.SearchURL = dc.SearchURL
	}
	if dc.VideoURL != "" {
		bc.VideoURL = dc.VideoURL
	}
	bc.Browser = dc.Browser
	d, err := dispatch.New(dispatch.Builtins(r, bc), dispatch.Config{Timeout: dc.Timeout}, dispatch.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	for _, i := range a.registry.Intents() {
		desc, err := a.registry.Lookup(i)
		if err != nil {
			return nil, err
		}
		if !d.Has(desc.HandlerID) {
			return nil, fmt.Errorf("capability %s names handler %q, which is not implemented", i, desc.HandlerID)
		}
	}
	return d, nil
}

// buildPipeline wires every component for the interactive loop.
func (a *app) buildPipeline(ctx context.Context) error {
	if _, err := a.buildClassifier(ctx); err != nil {
		return err
	}
	if err := a.buildSpeech(); err != nil {
		return err
	}
	d, err := a.buildDispatcher(dispatch.ExecRunner{})
	if err != nil {
		return err
	}
	log, err := a.buildAudit(ctx)
	if err != nil {
		return err
	}
	g := gate.NewGate(gate.GateConfig{Timeout: a.cfg.Confirmation.Timeout}, a.buildConfirmer(), gate.WithLogger(a.log))

	a.pipeline, err = pipeline.New(pipeline.Deps{
		Classifier: a.arbiter,
		Registry:   a.registry,
		Gate:       g,
		Dispatcher: d,
		Audit:      log,
	}, pipeline.WithLogger(a.log))
	if err != nil {
		return err
	}

	a.log.Info().
		Str("policy", a.registry.Policy()).
		Int("capabilities", a.registry.Len()).
		Str("audit_sink", a.cfg.Audit.Sink).
		Str("confirmation", a.cfg.Confirmation.Provider).
		Msg("assistant ready")
	return nil
}

// #endregion pipeline
