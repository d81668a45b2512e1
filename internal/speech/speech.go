package speech

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by a Listener whose input has ended.
var ErrClosed = errors.New("listener closed")

// #region console
// ConsoleSpeaker writes each utterance as a line.
type ConsoleSpeaker struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSpeaker returns a Speaker writing to out.
func NewConsoleSpeaker(out io.Writer) *ConsoleSpeaker {
	return &ConsoleSpeaker{out: out}
}

func (s *ConsoleSpeaker) Say(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "assistant: %s\n", text)
	return err
}

// LineListener reads newline-terminated transcripts from a reader on a
// single goroutine and hands them out one per Listen call. Each line is
// stamped with the time it was read.
type LineListener struct {
	lines chan heard
	done  chan struct{}
	err   error
}

type heard struct {
	text string
	at   time.Time
}

// NewLineListener starts reading r. The reader goroutine exits at EOF.
func NewLineListener(r io.Reader) *LineListener {
	l := &LineListener{lines: make(chan heard, 16), done: make(chan struct{})}
	go func() {
		defer close(l.done)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			l.lines <- heard{text: strings.TrimSpace(sc.Text()), at: time.Now()}
		}
		l.err = sc.Err()
		close(l.lines)
	}()
	return l
}

// Listen blocks for the next line or until ctx is done.
func (l *LineListener) Listen(ctx context.Context) (string, error) {
	return l.ListenAfter(ctx, time.Time{})
}

// ListenAfter is Listen, except lines read before since are dropped.
func (l *LineListener) ListenAfter(ctx context.Context, since time.Time) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case h, ok := <-l.lines:
			if !ok {
				<-l.done
				if l.err != nil {
					return "", l.err
				}
				return "", ErrClosed
			}
			if h.at.Before(since) {
				continue
			}
			return h.text, nil
		}
	}
}

// Pending reports how many lines are buffered and not yet listened for.
func (l *LineListener) Pending() int { return len(l.lines) }

// #endregion console

// #region command
// CommandSpeaker runs an external TTS binary with the text as the last
// argument, e.g. espeak or say. The text is never passed through a shell.
type CommandSpeaker struct {
	bin  string
	args []string
}

// NewCommandSpeaker returns a Speaker invoking bin args... text.
func NewCommandSpeaker(bin string, args ...string) (*CommandSpeaker, error) {
	if strings.TrimSpace(bin) == "" {
		return nil, errors.New("speech command is empty")
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("find speech command %s: %w", bin, err)
	}
	return &CommandSpeaker{bin: path, args: append([]string(nil), args...)}, nil
}

func (s *CommandSpeaker) Say(ctx context.Context, text string) error {
	argv := append(append([]string(nil), s.args...), text)
	if out, err := exec.CommandContext(ctx, s.bin, argv...).CombinedOutput(); err != nil {
		return fmt.Errorf("speak: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Tee fans one utterance out to several speakers, returning the first error.
type Tee []Speaker

func (t Tee) Say(ctx context.Context, text string) error {
	var first error
	for _, s := range t {
		if err := s.Say(ctx, text); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// #endregion command

// #region greeting
// Greeting picks a salutation for the hour of now.
func Greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h >= 5 && h < 12:
		return "Good morning. How can I help?"
	case h >= 12 && h < 17:
		return "Good afternoon. How can I help?"
	case h >= 17 && h < 22:
		return "Good evening. How can I help?"
	default:
		return "Hello. How can I help?"
	}
}

// Farewell is spoken on shutdown.
func Farewell(now time.Time) string {
	if h := now.Hour(); h >= 20 || h < 5 {
		return "Good night."
	}
	return "Goodbye."
}

// #endregion greeting
