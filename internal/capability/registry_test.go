package capability

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayur256/ai-assistant/internal/intent"
)

func loadDefault(t *testing.T) *Registry {
	t.Helper()
	reg, err := Load("")
	require.NoError(t, err)
	return reg
}

func TestLoadDefaultTable(t *testing.T) {
	reg := loadDefault(t)

	assert.Equal(t, 10, reg.Len())
	assert.Equal(t, "1.0.0", reg.Version())
	assert.Len(t, reg.Fingerprint(), 64)
	assert.True(t, strings.HasPrefix(reg.Policy(), "1.0.0@"))

	open, err := reg.Lookup(intent.OpenApp)
	require.NoError(t, err)
	assert.Equal(t, RiskLow, open.Risk)
	assert.Equal(t, "app.open", open.HandlerID)
	assert.False(t, open.NeedsConfirmation())

	closeApp, err := reg.Lookup(intent.CloseApp)
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, closeApp.Risk)
	assert.True(t, closeApp.RequiresConfirmation)
	assert.True(t, closeApp.NeedsConfirmation())

	for _, in := range []intent.Intent{intent.PlayYoutube, intent.SearchYoutube} {
		d, err := reg.Lookup(in)
		require.NoError(t, err, in)
		assert.Equal(t, RiskMedium, d.Risk, in)
		assert.False(t, d.NeedsConfirmation(), in)
		assert.True(t, d.AllowedParams["query"].Required, in)
	}
}

func TestLookupUnknownAndUnregistered(t *testing.T) {
	reg := loadDefault(t)

	_, err := reg.Lookup(intent.Unknown)
	assert.True(t, errors.Is(err, ErrNotRegistered))

	_, err = reg.Lookup("LAUNCH_MISSILES")
	assert.True(t, errors.Is(err, ErrNotRegistered))
}

func TestLookupReturnsCopy(t *testing.T) {
	reg := loadDefault(t)
	d, err := reg.Lookup(intent.OpenApp)
	require.NoError(t, err)

	p := d.AllowedParams["app_name"]
	p.Values[0] = "rm -rf /"
	d.AllowedParams["app_name"] = p
	d.AllowedParams["extra"] = ParamRule{Rule: "true"}

	again, err := reg.Lookup(intent.OpenApp)
	require.NoError(t, err)
	assert.NotContains(t, again.AllowedParams["app_name"].Values, "rm -rf /")
	assert.NotContains(t, again.AllowedParams, "extra")
}

func TestValidateSlots(t *testing.T) {
	reg := loadDefault(t)
	open, _ := reg.Lookup(intent.OpenApp)
	search, _ := reg.Lookup(intent.SearchWeb)
	tm, _ := reg.Lookup(intent.GetTime)
	video, _ := reg.Lookup(intent.PlayYoutube)

	tests := []struct {
		name       string
		desc       Descriptor
		slots      map[string]string
		wantReason string
	}{
		{"allowed-app", open, map[string]string{"app_name": "firefox"}, ""},
		{"hostile-app", open, map[string]string{"app_name": "rm -rf /"}, "value not in allowed set"},
		{"missing-app", open, map[string]string{}, "required slot missing"},
		{"undeclared-slot", open, map[string]string{"app_name": "firefox", "flags": "--kiosk"}, "slot not permitted"},
		{"query", search, map[string]string{"query": "python docs"}, ""},
		{"query-shell", search, map[string]string{"query": "; rm -rf /"}, "value not in allowed set"},
		{"query-too-long", search, map[string]string{"query": strings.Repeat("a", 121)}, "rule rejected value"},
		{"video-query", video, map[string]string{"query": "never gonna give you up"}, ""},
		{"video-query-shell", video, map[string]string{"query": "$(reboot)"}, "value not in allowed set"},
		{"video-query-too-long", video, map[string]string{"query": strings.Repeat("b", 121)}, "rule rejected value"},
		{"video-missing-query", video, map[string]string{}, "required slot missing"},
		{"no-slots-needed", tm, map[string]string{}, ""},
		{"no-slots-allowed", tm, map[string]string{"zone": "utc"}, "slot not permitted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.ValidateSlots(tt.desc, tt.slots)
			if tt.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			var se *SlotError
			require.True(t, errors.As(err, &se), "want *SlotError, got %v", err)
			assert.Equal(t, tt.wantReason, se.Reason)
		})
	}
}

func TestValidateSlotsIgnoresForgedDescriptor(t *testing.T) {
	reg := loadDefault(t)
	forged := Descriptor{
		Intent:        intent.OpenApp,
		Risk:          RiskLow,
		HandlerID:     "app.open",
		AllowedParams: map[string]ParamRule{"app_name": {Values: []string{"rm -rf /"}}},
	}
	err := reg.ValidateSlots(forged, map[string]string{"app_name": "rm -rf /"})
	var se *SlotError
	assert.True(t, errors.As(err, &se))

	forged.Intent = "SELF_DESTRUCT"
	err = reg.ValidateSlots(forged, nil)
	assert.True(t, errors.Is(err, ErrNotRegistered))
}

func TestAuthorize(t *testing.T) {
	reg := loadDefault(t)

	auth, err := reg.Authorize(intent.NewResult(intent.CloseApp, 1, map[string]string{"app_name": "firefox"}, "close firefox", intent.SourceRule))
	require.NoError(t, err)
	assert.True(t, auth.Valid())
	assert.Equal(t, intent.CloseApp, auth.Intent())
	assert.Equal(t, "app.close", auth.HandlerID())
	assert.Equal(t, Args{{Name: "app_name", Value: "firefox"}}, auth.Args())
	assert.Equal(t, "close firefox", auth.Describe())
	assert.Equal(t, reg.Policy(), auth.Policy())

	_, err = reg.Authorize(intent.UnknownResult("hello there"))
	assert.True(t, errors.Is(err, ErrNotRegistered))

	_, err = reg.Authorize(intent.NewResult(intent.OpenApp, 1, map[string]string{"app_name": "rm -rf /"}, "", intent.SourceRule))
	var se *SlotError
	assert.True(t, errors.As(err, &se))

	var zero Authorization
	assert.False(t, zero.Valid())
}

func TestDescribeFallsBackToIntentName(t *testing.T) {
	doc := `
version: "1.0.0"
capabilities:
  OPEN_APP:
    risk: LOW
    handler_id: app.open
    allowed_params:
      app_name: {required: true, values: [firefox]}
`
	reg, err := Parse([]byte(doc), "inline")
	require.NoError(t, err)
	auth, err := reg.Authorize(intent.NewResult(intent.OpenApp, 1, map[string]string{"app_name": "firefox"}, "", intent.SourceRule))
	require.NoError(t, err)
	assert.Equal(t, "open app firefox", auth.Describe())
}

func TestParseRejectsMalformedTables(t *testing.T) {
	const head = "version: \"1.0.0\"\ncapabilities:\n"
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"duplicate-intent", head + "  GET_TIME: {risk: LOW, handler_id: clock.time}\n  GET_TIME: {risk: LOW, handler_id: clock.time}\n"},
		{"duplicate-param", head + "  OPEN_APP:\n    risk: LOW\n    handler_id: app.open\n    allowed_params:\n      app_name: {values: [a]}\n      app_name: {values: [b]}\n"},
		{"bad-risk", head + "  GET_TIME: {risk: SPICY, handler_id: clock.time}\n"},
		{"missing-handler", head + "  GET_TIME: {risk: LOW}\n"},
		{"extra-field", head + "  GET_TIME: {risk: LOW, handler_id: clock.time, shell: \"date\"}\n"},
		{"lower-case-intent", head + "  get_time: {risk: LOW, handler_id: clock.time}\n"},
		{"unknown-intent", head + "  LAUNCH_MISSILES: {risk: CRITICAL, handler_id: silo.launch}\n"},
		{"unknown-registered", head + "  UNKNOWN: {risk: LOW, handler_id: noop}\n"},
		{"empty-param", head + "  OPEN_APP:\n    risk: LOW\n    handler_id: app.open\n    allowed_params:\n      app_name: {required: true}\n"},
		{"bad-pattern", head + "  SEARCH_WEB:\n    risk: LOW\n    handler_id: web.search\n    allowed_params:\n      query: {patterns: ['[unclosed']}\n"},
		{"bad-rule", head + "  SEARCH_WEB:\n    risk: LOW\n    handler_id: web.search\n    allowed_params:\n      query: {rule: 'size(value) <'}\n"},
		{"non-bool-rule", head + "  SEARCH_WEB:\n    risk: LOW\n    handler_id: web.search\n    allowed_params:\n      query: {rule: 'size(value)'}\n"},
		{"unsupported-version", "version: \"2.0.0\"\ncapabilities:\n  GET_TIME: {risk: LOW, handler_id: clock.time}\n"},
		{"not-semver", "version: \"latest\"\ncapabilities:\n  GET_TIME: {risk: LOW, handler_id: clock.time}\n"},
		{"no-capabilities", "version: \"1.0.0\"\ncapabilities: {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), tt.name)
			assert.Error(t, err)
		})
	}
}

func TestParseKnownIntentsOption(t *testing.T) {
	doc := "version: \"1.1.0\"\ncapabilities:\n  GET_WEATHER: {risk: LOW, handler_id: weather.get}\n"

	_, err := Parse([]byte(doc), "inline")
	assert.Error(t, err, "custom intents need an explicit vocabulary")

	reg, err := Parse([]byte(doc), "inline", KnownIntents([]intent.Intent{"GET_WEATHER"}))
	require.NoError(t, err)
	assert.Equal(t, []intent.Intent{"GET_WEATHER"}, reg.Intents())
}

func TestFingerprintIsStableAndSensitive(t *testing.T) {
	a, err := Parse(DefaultTable(), "a")
	require.NoError(t, err)
	b, err := Parse(DefaultTable(), "b")
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	changed := strings.Replace(string(DefaultTable()), "risk: MEDIUM", "risk: HIGH", 1)
	c, err := Parse([]byte(changed), "c")
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.yaml")
	require.NoError(t, os.WriteFile(path, DefaultTable(), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, reg.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRiskTier(t *testing.T) {
	r, err := ParseRiskTier(" high ")
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, r)
	_, err = ParseRiskTier("extreme")
	assert.Error(t, err)
	assert.Greater(t, RiskCritical.Rank(), RiskHigh.Rank())
	assert.Greater(t, RiskHigh.Rank(), RiskMedium.Rank())
}
