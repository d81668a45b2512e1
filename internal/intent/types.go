package intent

import "sort"

// #region intent
// Intent is a closed category of user request.
type Intent string

const (
	OpenApp       Intent = "OPEN_APP"
	CloseApp      Intent = "CLOSE_APP"
	SearchYoutube Intent = "SEARCH_YOUTUBE"
	PlayYoutube   Intent = "PLAY_YOUTUBE"
	SearchWeb     Intent = "SEARCH_WEB"
	PlayMusic     Intent = "PLAY_MUSIC"
	StopMusic     Intent = "STOP_MUSIC"
	GetTime       Intent = "GET_TIME"
	GetDate       Intent = "GET_DATE"
	SystemInfo    Intent = "SYSTEM_INFO"
	Unknown       Intent = "UNKNOWN"
)

// declared is the fixed tie-break order. Earlier entries win ties, so the
// YouTube intents sit ahead of SEARCH_WEB and PLAY_MUSIC, which also match
// "search youtube for x" and "play music on youtube".
var declared = []Intent{
	OpenApp,
	CloseApp,
	SearchYoutube,
	PlayYoutube,
	SearchWeb,
	PlayMusic,
	StopMusic,
	GetTime,
	GetDate,
	SystemInfo,
}

// Declared returns the built-in intents in declaration order, excluding UNKNOWN.
func Declared() []Intent {
	out := make([]Intent, len(declared))
	copy(out, declared)
	return out
}

// IsBuiltin reports whether i is one of the compiled-in intents.
func IsBuiltin(i Intent) bool {
	for _, d := range declared {
		if d == i {
			return true
		}
	}
	return false
}

// #endregion intent

// #region source
// Source records which matcher produced a result.
type Source string

const (
	SourceRule     Source = "rule"
	SourceSemantic Source = "semantic"
	SourceNone     Source = "none"
)

// #endregion source

// #region result
// Result is the classifier output for one utterance. Treat it as read-only.
type Result struct {
	Intent     Intent            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Slots      map[string]string `json:"slots"`
	RawText    string            `json:"raw_text"`
	Source     Source            `json:"source"`
}

// NewResult builds a Result, clamping confidence to [0,1] and copying slots.
func NewResult(i Intent, confidence float64, slots map[string]string, raw string, src Source) Result {
	if confidence < 0 || confidence != confidence {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Result{
		Intent:     i,
		Confidence: confidence,
		Slots:      CopySlots(slots),
		RawText:    raw,
		Source:     src,
	}
}

// UnknownResult is the fail-closed classification.
func UnknownResult(raw string) Result {
	return NewResult(Unknown, 0, nil, raw, SourceNone)
}

// CopySlots returns an independent copy of s. A nil map becomes empty.
func CopySlots(s map[string]string) map[string]string {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SlotNames returns the slot keys in sorted order.
func (r Result) SlotNames() []string {
	names := make([]string, 0, len(r.Slots))
	for k := range r.Slots {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// #endregion result
