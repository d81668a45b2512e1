package classifier

// #region imports
import (
	"strings"

	"github.com/mayur256/ai-assistant/internal/intent"
)

// #endregion

// #region normalize

// clauseBreaks turns clause punctuation into spaces. Other inner punctuation
// is kept so slot values like "-rf" or "c++" survive.
var clauseBreaks = strings.NewReplacer(",", " ", ";", " ", ":", " ")

// Normalize lowercases, trims, collapses whitespace and strips clause and
// trailing sentence punctuation.
func Normalize(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	lower = strings.Join(strings.Fields(clauseBreaks.Replace(lower)), " ")
	return strings.TrimRight(lower, "?.!, ")
}

// #endregion

// #region extract

// ExtractSlots runs the intent's slot rule over normalized text.
// Intents without a slot rule, or text without a trigger, yield no slots.
func (l *Lexicon) ExtractSlots(i intent.Intent, normalized string) map[string]string {
	slots := map[string]string{}
	e, ok := l.entry(i)
	if !ok || e.Slot == nil {
		return slots
	}
	if v := extractAfter(strings.Fields(normalized), e.Slot); v != "" {
		slots[e.Slot.Name] = v
	}
	return slots
}

func extractAfter(words []string, rule *SlotRule) string {
	for i := range words {
		for _, trig := range rule.After {
			tw := strings.Fields(trig)
			if hasPrefixWords(words[i:], tw) {
				rest := words[i+len(tw):]
				rest = stripHead(rest, rule.Skip)
				rest = stripTail(rest, rule.Trim)
				return strings.Join(rest, " ")
			}
		}
	}
	return ""
}

func hasPrefixWords(words, prefix []string) bool {
	if len(prefix) == 0 || len(prefix) > len(words) {
		return false
	}
	for i := range prefix {
		if words[i] != prefix[i] {
			return false
		}
	}
	return true
}

func hasSuffixWords(words, suffix []string) bool {
	if len(suffix) == 0 || len(suffix) > len(words) {
		return false
	}
	off := len(words) - len(suffix)
	for i := range suffix {
		if words[off+i] != suffix[i] {
			return false
		}
	}
	return true
}

// stripHead repeatedly drops leading filler phrases.
func stripHead(words []string, fillers []string) []string {
	for changed := true; changed && len(words) > 0; {
		changed = false
		for _, f := range fillers {
			fw := strings.Fields(f)
			if hasPrefixWords(words, fw) {
				words = words[len(fw):]
				changed = true
				break
			}
		}
	}
	return words
}

// stripTail repeatedly drops trailing filler phrases.
func stripTail(words []string, fillers []string) []string {
	for changed := true; changed && len(words) > 0; {
		changed = false
		for _, f := range fillers {
			fw := strings.Fields(f)
			if hasSuffixWords(words, fw) {
				words = words[:len(words)-len(fw)]
				changed = true
				break
			}
		}
	}
	return words
}

// #endregion
