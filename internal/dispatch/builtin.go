package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/mayur256/ai-assistant/internal/capability"
)

// #region apps
// DefaultApps maps spoken application names to executables.
func DefaultApps() map[string]string {
	return map[string]string{
		"firefox":  "firefox",
		"browser":  "firefox",
		"chrome":   "google-chrome",
		"code":     "code",
		"vscode":   "code",
		"terminal": "gnome-terminal",
	}
}

// #endregion apps

// #region builtin-config
// BuiltinConfig parameterizes the built-in handlers.
type BuiltinConfig struct {
	Apps      map[string]string // alias -> executable
	Opener    string            // URL opener, e.g. xdg-open
	Player    string            // media controller, e.g. playerctl
	SearchURL string            // query is appended escaped
	VideoURL  string            // YouTube search URL, query appended escaped
	Browser   []string          // argv tried before Opener for video links; empty skips it
	Now       func() time.Time
	Hostname  func() (string, error)
}

// DefaultBuiltinConfig targets a Linux desktop.
func DefaultBuiltinConfig() BuiltinConfig {
	return BuiltinConfig{
		Apps:      DefaultApps(),
		Opener:    "xdg-open",
		Player:    "playerctl",
		SearchURL: "https://www.google.com/search?q=",
		VideoURL:  "https://www.youtube.com/results?search_query=",
		Browser:   []string{"brave-browser", "--new-window"},
		Now:       time.Now,
		Hostname:  os.Hostname,
	}
}

// #endregion builtin-config

// #region builtins
// Builtins returns the standard handler table keyed by handler ID.
func Builtins(r Runner, cfg BuiltinConfig) map[string]Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Hostname == nil {
		cfg.Hostname = os.Hostname
	}
	b := builtins{run: r, cfg: cfg}
	return map[string]Handler{
		"app.open":    Func{Names: []string{"app_name"}, Fn: b.openApp},
		"app.close":   Func{Names: []string{"app_name"}, Fn: b.closeApp},
		"web.search":  Func{Names: []string{"query"}, Fn: b.searchWeb},
		"media.play":  Func{Fn: b.media("play", "Playing music.")},
		"media.stop":  Func{Fn: b.media("pause", "Music paused.")},
		"clock.time":  Func{Fn: b.clockTime},
		"clock.date":  Func{Fn: b.clockDate},
		"system.info": Func{Fn: b.systemInfo},

		"video.play":   Func{Names: []string{"query"}, Fn: b.video("Playing %s on YouTube.")},
		"video.search": Func{Names: []string{"query"}, Fn: b.video("Searching YouTube for %s.")},
	}
}

type builtins struct {
	run Runner
	cfg BuiltinConfig
}

func (b builtins) executable(args capability.Args) (string, string, error) {
	name, ok := args.Get("app_name")
	if !ok || name == "" {
		return "", "", errors.New("no application named")
	}
	exe, ok := b.cfg.Apps[strings.ToLower(name)]
	if !ok {
		return name, "", fmt.Errorf("%s is not an allowed application", name)
	}
	return name, exe, nil
}

func (b builtins) openApp(_ context.Context, args capability.Args) (string, error) {
	name, exe, err := b.executable(args)
	if err != nil {
		return "", err
	}
	if err := b.run.Start(exe); err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	return "Opening " + name + ".", nil
}

func (b builtins) closeApp(ctx context.Context, args capability.Args) (string, error) {
	name, exe, err := b.executable(args)
	if err != nil {
		return "", err
	}
	if _, err := b.run.Run(ctx, "pkill", "-x", exe); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return "Closed " + name + ".", nil
}

func (b builtins) searchWeb(_ context.Context, args capability.Args) (string, error) {
	q, ok := args.Get("query")
	if !ok || strings.TrimSpace(q) == "" {
		return "", errors.New("no search query")
	}
	if err := b.run.Start(b.cfg.Opener, b.cfg.SearchURL+url.QueryEscape(q)); err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	return "Searching for " + q + ".", nil
}

// video opens a YouTube results page for the query. Playback is left to
// the page, so both video handlers differ only in what they say.
func (b builtins) video(done string) func(context.Context, capability.Args) (string, error) {
	return func(_ context.Context, args capability.Args) (string, error) {
		q, ok := args.Get("query")
		if !ok || strings.TrimSpace(q) == "" {
			return "", errors.New("no video query")
		}
		if err := b.openLink(b.cfg.VideoURL + url.QueryEscape(q)); err != nil {
			return "", fmt.Errorf("youtube: %w", err)
		}
		return fmt.Sprintf(done, q), nil
	}
}

// openLink tries the configured browser, then falls back to the opener.
func (b builtins) openLink(link string) error {
	if len(b.cfg.Browser) == 0 {
		return b.run.Start(b.cfg.Opener, link)
	}
	argv := append(append([]string(nil), b.cfg.Browser[1:]...), link)
	berr := b.run.Start(b.cfg.Browser[0], argv...)
	if berr == nil {
		return nil
	}
	if err := b.run.Start(b.cfg.Opener, link); err != nil {
		return errors.Join(berr, err)
	}
	return nil
}

func (b builtins) media(verb, done string) func(context.Context, capability.Args) (string, error) {
	return func(ctx context.Context, _ capability.Args) (string, error) {
		if _, err := b.run.Run(ctx, b.cfg.Player, verb); err != nil {
			return "", fmt.Errorf("media %s: %w", verb, err)
		}
		return done, nil
	}
}

func (b builtins) clockTime(context.Context, capability.Args) (string, error) {
	return "It's " + b.cfg.Now().Format("3:04 PM") + ".", nil
}

func (b builtins) clockDate(context.Context, capability.Args) (string, error) {
	return "Today is " + b.cfg.Now().Format("Monday, January 2, 2006") + ".", nil
}

func (b builtins) systemInfo(context.Context, capability.Args) (string, error) {
	host, err := b.cfg.Hostname()
	if err != nil {
		host = "unknown host"
	}
	return fmt.Sprintf("Running %s on %s with %d CPUs, host %s.", runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), host), nil
}

// #endregion builtins

// #region exec-runner
// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Start detaches the child; a goroutine reaps it on exit.
func (ExecRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// #endregion exec-runner
