package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleSpeaker(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSpeaker(&buf)
	if err := s.Say(context.Background(), "opening firefox"); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "assistant: opening firefox\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestLineListener(t *testing.T) {
	l := NewLineListener(strings.NewReader("  yes \nno\n"))
	ctx := context.Background()

	got, err := l.Listen(ctx)
	if err != nil || got != "yes" {
		t.Fatalf("first line = %q, %v", got, err)
	}
	got, err = l.Listen(ctx)
	if err != nil || got != "no" {
		t.Fatalf("second line = %q, %v", got, err)
	}
	if _, err := l.Listen(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestLineListenerHonoursContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	l := NewLineListener(r)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Listen(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestLineListenerDropsLinesBeforeSince(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	l := NewLineListener(r)

	_, err := io.WriteString(w, "typed ahead\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return l.Pending() == 1 }, time.Second, time.Millisecond)

	since := time.Now()
	go func() { _, _ = io.WriteString(w, "yes\n") }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := l.ListenAfter(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, "yes", got)
	assert.Zero(t, l.Pending())
}

func TestListenAfterFallsBackToListen(t *testing.T) {
	got, err := ListenAfter(context.Background(), plainListener("hi"), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "hi", got, "listeners without timestamps cannot filter")
}

type plainListener string

func (p plainListener) Listen(context.Context) (string, error) { return string(p), nil }

func TestGreeting(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2026, 1, 1, h, 0, 0, 0, time.UTC) }
	tests := []struct {
		hour int
		want string
	}{
		{7, "Good morning"},
		{13, "Good afternoon"},
		{19, "Good evening"},
		{2, "Hello"},
	}
	for _, tt := range tests {
		if got := Greeting(at(tt.hour)); !strings.HasPrefix(got, tt.want) {
			t.Errorf("Greeting(%d) = %q, want prefix %q", tt.hour, got, tt.want)
		}
	}
	if Farewell(at(23)) != "Good night." || Farewell(at(10)) != "Goodbye." {
		t.Error("unexpected farewell")
	}
}

func TestCommandSpeakerRejectsEmpty(t *testing.T) {
	if _, err := NewCommandSpeaker(" "); err == nil {
		t.Fatal("expected error for empty command")
	}
}
