package gate

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mayur256/ai-assistant/internal/speech"
)

// #region vocabulary
var (
	affirmative = []string{"yes", "yeah", "yep", "yup", "sure", "ok", "okay", "confirm", "confirmed", "affirmative", "go ahead", "do it", "please do"}
	negative    = []string{"no", "nope", "nah", "cancel", "stop", "don't", "do not", "negative", "abort", "never mind", "nevermind"}
)

// ParseReply classifies a spoken reply. Negative cues win over affirmative
// ones so "yes, no wait" denies. Anything else returns ErrUnrecognized.
func ParseReply(reply string) (bool, error) {
	words := strings.Fields(strings.ToLower(strings.Trim(reply, " \t.,!?")))
	text := " " + strings.Join(words, " ") + " "
	text = strings.NewReplacer(",", " ", ".", " ", "!", " ").Replace(text)
	if containsAny(text, negative) {
		return false, nil
	}
	if containsAny(text, affirmative) {
		return true, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnrecognized, reply)
}

func containsAny(padded string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(padded, " "+c+" ") {
			return true
		}
	}
	return false
}

// #endregion vocabulary

// #region voice
// VoiceConfirmer speaks the prompt and listens for a single reply. Anything
// heard before the prompt started is not an answer to it.
type VoiceConfirmer struct {
	speaker  speech.Speaker
	listener speech.Listener
}

// NewVoiceConfirmer returns a confirmer over the given speech collaborators.
func NewVoiceConfirmer(s speech.Speaker, l speech.Listener) *VoiceConfirmer {
	return &VoiceConfirmer{speaker: s, listener: l}
}

func (v *VoiceConfirmer) Confirm(ctx context.Context, req Request) (bool, error) {
	asked := time.Now()
	if err := v.speaker.Say(ctx, req.Prompt); err != nil {
		return false, fmt.Errorf("speak prompt: %w", err)
	}
	reply, err := speech.ListenAfter(ctx, v.listener, asked)
	if err != nil {
		return false, fmt.Errorf("listen for reply: %w", err)
	}
	return ParseReply(reply)
}

// #endregion voice

// #region manual
// ManualConfirmer prints the prompt and reads one line. Only "y" and "yes"
// approve. Lines typed ahead of the prompt are dropped, never taken as the
// answer.
type ManualConfirmer struct {
	out   io.Writer
	lines speech.Listener
}

// NewManualConfirmer returns a keyboard confirmer. lines is usually the
// same listener that feeds transcripts to the run loop.
func NewManualConfirmer(out io.Writer, lines speech.Listener) *ManualConfirmer {
	return &ManualConfirmer{out: out, lines: lines}
}

func (m *ManualConfirmer) Confirm(ctx context.Context, req Request) (bool, error) {
	asked := time.Now()
	if _, err := fmt.Fprintf(m.out, "%s [y/N]: ", req.Prompt); err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}
	line, err := speech.ListenAfter(ctx, m.lines, asked)
	if err != nil {
		return false, fmt.Errorf("read reply: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// #endregion manual
