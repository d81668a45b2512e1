package classifier

// #region imports
import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mayur256/ai-assistant/internal/intent"
)

// #endregion

// #region lexicon-types

// CueGroup is a set of synonyms, or a slot that must be extractable.
// A group contributes one unit of credit toward its intent's confidence.
type CueGroup struct {
	Words []string `yaml:"words,omitempty"`
	Slot  string   `yaml:"slot,omitempty"`
}

// SlotRule extracts one slot: the text after the first trigger, minus fillers.
type SlotRule struct {
	Name  string   `yaml:"name"`
	After []string `yaml:"after"`
	Skip  []string `yaml:"skip,omitempty"`
	Trim  []string `yaml:"trim,omitempty"`
}

// Entry is the classification vocabulary for one intent.
type Entry struct {
	Intent  intent.Intent `yaml:"intent"`
	Cues    []CueGroup    `yaml:"cues"`
	Phrases []string      `yaml:"phrases"`
	Slot    *SlotRule     `yaml:"slot,omitempty"`
}

// Lexicon is the ordered set of entries. Order is the tie-break order.
type Lexicon struct {
	entries []Entry
	index   map[intent.Intent]int
}

// #endregion

// #region default-lexicon

func appSlot(verbs ...string) *SlotRule {
	return &SlotRule{
		Name:  "app_name",
		After: verbs,
		Skip:  []string{"the", "a", "an", "my", "up"},
		Trim:  []string{"please", "app", "application", "program", "window", "for me", "now"},
	}
}

var defaultEntries = []Entry{
	{
		Intent: intent.OpenApp,
		Cues: []CueGroup{
			{Words: []string{"open", "launch", "start", "run"}},
			{Slot: "app_name"},
		},
		Phrases: []string{"open firefox", "launch chrome", "start the browser", "run terminal", "open code editor"},
		Slot:    appSlot("open", "launch", "start", "run"),
	},
	{
		Intent: intent.CloseApp,
		Cues: []CueGroup{
			{Words: []string{"close", "quit", "exit", "kill"}},
			{Slot: "app_name"},
		},
		Phrases: []string{"close firefox", "quit chrome", "exit the terminal", "kill spotify"},
		Slot:    appSlot("close", "quit", "exit", "kill"),
	},
	{
		Intent: intent.SearchYoutube,
		Cues: []CueGroup{
			{Words: []string{"search", "find", "look up"}},
			{Words: []string{"youtube", "video", "videos", "vlogs"}},
			{Slot: "query"},
		},
		Phrases: []string{
			"search youtube for python tutorials",
			"search for cooking videos on youtube",
			"look up travel vlogs on youtube",
			"find videos about machine learning",
		},
		Slot: &SlotRule{
			Name:  "query",
			After: []string{"search", "find", "look up"},
			Skip:  []string{"youtube for", "on youtube for", "youtube", "for", "videos about", "videos of", "videos on", "up"},
			Trim:  []string{"on youtube", "in youtube", "youtube", "please", "for me"},
		},
	},
	{
		Intent: intent.PlayYoutube,
		Cues: []CueGroup{
			{Words: []string{"play", "watch", "stream", "put on"}},
			{Words: []string{"youtube", "video", "videos"}},
			{Slot: "query"},
		},
		Phrases: []string{
			"play despacito on youtube",
			"watch gangnam style on youtube",
			"youtube play never gonna give you up",
			"play a video",
			"stream a video on youtube",
		},
		Slot: &SlotRule{
			Name:  "query",
			After: []string{"play", "watch", "stream", "put on"},
			Skip:  []string{"the", "a", "an", "me"},
			Trim:  []string{"on youtube", "from youtube", "in youtube", "youtube", "please", "for me", "now"},
		},
	},
	{
		Intent: intent.SearchWeb,
		Cues: []CueGroup{
			{Words: []string{"search", "google", "look up", "find"}},
			{Slot: "query"},
		},
		Phrases: []string{"search for python tutorials", "google how to tie a tie", "look up golang docs", "find recipes online"},
		Slot: &SlotRule{
			Name:  "query",
			After: []string{"search", "google", "look up", "find"},
			Skip:  []string{"for", "the web for", "the internet for", "online for", "up"},
			Trim:  []string{"please", "online", "on the web", "on google", "for me"},
		},
	},
	{
		Intent: intent.PlayMusic,
		Cues: []CueGroup{
			{Words: []string{"play", "resume", "unpause"}},
			{Words: []string{"music", "song", "songs", "track", "playlist", "something"}},
		},
		Phrases: []string{"play music", "play some songs", "resume the music", "play my playlist"},
	},
	{
		Intent: intent.StopMusic,
		Cues: []CueGroup{
			{Words: []string{"stop", "pause", "halt"}},
			{Words: []string{"music", "song", "playback", "track", "playing"}},
		},
		Phrases: []string{"stop the music", "pause the song", "halt playback", "stop playing"},
	},
	{
		Intent: intent.GetTime,
		Cues: []CueGroup{
			{Words: []string{"time", "clock"}},
			{Words: []string{"what", "what's", "whats", "tell", "current"}},
		},
		Phrases: []string{"what time is it", "what's the time", "tell me the time", "current time"},
	},
	{
		Intent: intent.GetDate,
		Cues: []CueGroup{
			{Words: []string{"date", "day", "today", "today's"}},
			{Words: []string{"what", "what's", "whats", "tell", "current", "which"}},
		},
		Phrases: []string{"what is the date", "what day is it", "what's today's date", "tell me the date"},
	},
	{
		Intent: intent.SystemInfo,
		Cues: []CueGroup{
			{Words: []string{"system", "computer", "machine"}},
			{Words: []string{"info", "information", "status", "specs", "stats", "details"}},
		},
		Phrases: []string{"system information", "show system status", "computer specs", "machine details"},
	},
}

// DefaultLexicon returns the built-in vocabulary in declaration order.
func DefaultLexicon() *Lexicon {
	lex, err := NewLexicon(defaultEntries)
	if err != nil {
		panic(fmt.Sprintf("default lexicon: %v", err))
	}
	return lex
}

// #endregion

// #region constructor

// NewLexicon validates entries and builds an immutable lexicon.
func NewLexicon(entries []Entry) (*Lexicon, error) {
	lex := &Lexicon{index: make(map[intent.Intent]int, len(entries))}
	for i, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, fmt.Errorf("lexicon entry %d: %w", i, err)
		}
		if _, dup := lex.index[e.Intent]; dup {
			return nil, fmt.Errorf("lexicon entry %d: duplicate intent %s", i, e.Intent)
		}
		lex.index[e.Intent] = len(lex.entries)
		lex.entries = append(lex.entries, cloneEntry(e))
	}
	return lex, nil
}

func validateEntry(e Entry) error {
	if e.Intent == "" || e.Intent == intent.Unknown {
		return fmt.Errorf("invalid intent %q", e.Intent)
	}
	if strings.ToUpper(string(e.Intent)) != string(e.Intent) {
		return fmt.Errorf("intent %q must be upper case", e.Intent)
	}
	if len(e.Cues) == 0 {
		return fmt.Errorf("%s: no cue groups", e.Intent)
	}
	for j, c := range e.Cues {
		if (len(c.Words) == 0) == (c.Slot == "") {
			return fmt.Errorf("%s: cue group %d needs exactly one of words or slot", e.Intent, j)
		}
		if c.Slot != "" && (e.Slot == nil || e.Slot.Name != c.Slot) {
			return fmt.Errorf("%s: cue group %d references undeclared slot %q", e.Intent, j, c.Slot)
		}
	}
	if n := len(e.Phrases); n < 3 || n > 5 {
		return fmt.Errorf("%s: need 3-5 canonical phrases, got %d", e.Intent, n)
	}
	if e.Slot != nil && (e.Slot.Name == "" || len(e.Slot.After) == 0) {
		return fmt.Errorf("%s: slot rule needs a name and trigger words", e.Intent)
	}
	return nil
}

func cloneEntry(e Entry) Entry {
	out := Entry{Intent: e.Intent}
	for _, c := range e.Cues {
		out.Cues = append(out.Cues, CueGroup{Words: lowerAll(c.Words), Slot: c.Slot})
	}
	out.Phrases = append([]string(nil), e.Phrases...)
	if e.Slot != nil {
		out.Slot = &SlotRule{
			Name:  e.Slot.Name,
			After: lowerAll(e.Slot.After),
			Skip:  lowerAll(e.Slot.Skip),
			Trim:  lowerAll(e.Slot.Trim),
		}
	}
	return out
}

func lowerAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// #endregion

// #region load

type lexiconFile struct {
	Intents []Entry `yaml:"intents"`
}

// LoadLexicon reads extra or replacement entries from a YAML file and merges
// them over the built-ins. Replaced intents keep their position; new intents
// are appended in file order.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}

	merged := make([]Entry, len(defaultEntries))
	copy(merged, defaultEntries)
	pos := make(map[intent.Intent]int, len(merged))
	for i, e := range merged {
		pos[e.Intent] = i
	}
	seen := make(map[intent.Intent]bool, len(f.Intents))
	for _, e := range f.Intents {
		if seen[e.Intent] {
			return nil, fmt.Errorf("lexicon %s: duplicate intent %s", path, e.Intent)
		}
		seen[e.Intent] = true
		if i, ok := pos[e.Intent]; ok {
			merged[i] = e
			continue
		}
		merged = append(merged, e)
	}
	return NewLexicon(merged)
}

// #endregion

// #region accessors

// Intents returns the declared intents in tie-break order.
func (l *Lexicon) Intents() []intent.Intent {
	out := make([]intent.Intent, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Intent
	}
	return out
}

// Has reports whether the lexicon declares i.
func (l *Lexicon) Has(i intent.Intent) bool {
	_, ok := l.index[i]
	return ok
}

// Phrases returns the canonical phrases for i.
func (l *Lexicon) Phrases(i intent.Intent) []string {
	idx, ok := l.index[i]
	if !ok {
		return nil
	}
	return append([]string(nil), l.entries[idx].Phrases...)
}

func (l *Lexicon) entry(i intent.Intent) (Entry, bool) {
	idx, ok := l.index[i]
	if !ok {
		return Entry{}, false
	}
	return l.entries[idx], true
}

// #endregion
