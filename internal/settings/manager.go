package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"overlaybackend/internal/news"
)

// Scope names a settings section.
type Scope string

const (
	ScopeOverlay   Scope = "overlay"
	ScopeMonologue Scope = "monologue"
	ScopeAll       Scope = "all"
)

var ErrUnknownScope = errors.New("settings: unknown scope")

// ParseScope validates a raw scope; empty means all.
func ParseScope(raw string) (Scope, error) {
	switch scope := Scope(strings.ToLower(strings.TrimSpace(raw))); scope {
	case "":
		return ScopeAll, nil
	case ScopeOverlay, ScopeMonologue, ScopeAll:
		return scope, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScope, raw)
}

// ValidationError reports a rejected settings mutation. State is never
// modified when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "settings: " + e.Message
	}
	return fmt.Sprintf("settings: invalid %s: %s", e.Field, e.Message)
}

// Patch is a partial update of one or both sections. A JSON null removes the
// key, falling back to its default; required overlay keys cannot be removed.
type Patch struct {
	Overlay   map[string]json.RawMessage `json:"settings"`
	Monologue map[string]json.RawMessage `json:"monologue_settings"`
}

// Manager holds the current overlay and monologue settings.
type Manager struct {
	mu            sync.RWMutex
	current       Snapshot
	defaults      Snapshot
	validate      *validator.Validate
	overlayKeys   map[string]struct{}
	monologueKeys map[string]struct{}
}

// NewManager initializes settings to defaults, which must themselves be valid.
func NewManager(defaults Snapshot) (*Manager, error) {
	m := &Manager{validate: newValidator()}
	if err := m.check(defaults); err != nil {
		return nil, fmt.Errorf("invalid default settings: %w", err)
	}
	m.defaults = cloneSnapshot(defaults)
	m.current = cloneSnapshot(defaults)

	var err error
	if m.overlayKeys, err = jsonKeys(defaults.Overlay); err != nil {
		return nil, err
	}
	if m.monologueKeys, err = jsonKeys(defaults.Monologue); err != nil {
		return nil, err
	}
	return m, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Snapshot returns a copy of the current settings.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSnapshot(m.current)
}

// Overlay returns a copy of the base overlay settings.
func (m *Manager) Overlay() Overlay {
	return m.Snapshot().Overlay
}

// Monologue returns the current monologue settings.
func (m *Manager) Monologue() Monologue {
	return m.Snapshot().Monologue
}

// Get returns the section named by scope: Overlay, Monologue or Snapshot.
func (m *Manager) Get(scope Scope) (any, error) {
	snap := m.Snapshot()
	switch scope {
	case ScopeOverlay:
		return snap.Overlay, nil
	case ScopeMonologue:
		return snap.Monologue, nil
	case ScopeAll:
		return snap, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
}

// Effective resolves the overlay settings for mode: base settings with the
// mode's preset applied on top. Stored settings are not modified.
func (m *Manager) Effective(mode news.Mode) Overlay {
	base := m.Overlay()
	if preset, ok := base.ModeSettings[mode]; ok {
		preset.Apply(&base)
	}
	base.ContentMode = mode
	return base
}

// Update shallow-merges patch into the current settings. Both sections are
// validated before either is committed.
func (m *Manager) Update(patch Patch) error {
	if patch.Overlay == nil && patch.Monologue == nil {
		return &ValidationError{Message: "no settings provided"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneSnapshot(m.current)
	if patch.Overlay != nil {
		merged, err := m.mergeOverlay(next.Overlay, patch.Overlay)
		if err != nil {
			return err
		}
		next.Overlay = merged
	}
	if patch.Monologue != nil {
		merged, err := m.mergeMonologue(next.Monologue, patch.Monologue)
		if err != nil {
			return err
		}
		next.Monologue = merged
	}

	m.current = next
	return nil
}

// UpdateField sets a single key of the overlay or monologue section.
func (m *Manager) UpdateField(scope Scope, key string, value json.RawMessage) error {
	if len(bytes.TrimSpace(value)) == 0 {
		return &ValidationError{Field: key, Message: "value is required"}
	}
	switch scope {
	case ScopeOverlay:
		if _, ok := m.overlayKeys[key]; !ok {
			return &ValidationError{Field: key, Message: "unknown overlay setting"}
		}
		return m.Update(Patch{Overlay: map[string]json.RawMessage{key: value}})
	case ScopeMonologue:
		if _, ok := m.monologueKeys[key]; !ok {
			return &ValidationError{Field: key, Message: "unknown monologue setting"}
		}
		return m.Update(Patch{Monologue: map[string]json.RawMessage{key: value}})
	}
	return fmt.Errorf("%w: %q", ErrUnknownScope, scope)
}

// Reset restores the defaults for scope.
func (m *Manager) Reset(scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch scope {
	case ScopeOverlay:
		m.current.Overlay = m.defaults.Overlay.Clone()
	case ScopeMonologue:
		m.current.Monologue = m.defaults.Monologue
	case ScopeAll:
		m.current = cloneSnapshot(m.defaults)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
	return nil
}

func (m *Manager) mergeOverlay(current Overlay, partial map[string]json.RawMessage) (Overlay, error) {
	merged, err := mergeKeys(current, partial, m.overlayKeys)
	if err != nil {
		return Overlay{}, err
	}
	for _, key := range requiredOverlayKeys {
		if _, ok := merged[key]; !ok {
			return Overlay{}, &ValidationError{Field: key, Message: "required field is missing"}
		}
	}

	out := m.defaults.Overlay.Clone()
	if _, ok := merged["mode_settings"]; ok {
		out.ModeSettings = nil
	}
	if err := decodeStrict(merged, &out); err != nil {
		return Overlay{}, err
	}
	if err := m.checkOverlay(out); err != nil {
		return Overlay{}, err
	}
	return out, nil
}

func (m *Manager) mergeMonologue(current Monologue, partial map[string]json.RawMessage) (Monologue, error) {
	merged, err := mergeKeys(current, partial, m.monologueKeys)
	if err != nil {
		return Monologue{}, err
	}
	out := m.defaults.Monologue
	if err := decodeStrict(merged, &out); err != nil {
		return Monologue{}, err
	}
	if err := m.structErr(m.validate.Struct(out)); err != nil {
		return Monologue{}, err
	}
	return out, nil
}

func (m *Manager) check(s Snapshot) error {
	if err := m.checkOverlay(s.Overlay); err != nil {
		return err
	}
	return m.structErr(m.validate.Struct(s.Monologue))
}

func (m *Manager) checkOverlay(o Overlay) error {
	if err := m.structErr(m.validate.Struct(o)); err != nil {
		return err
	}
	modes := make([]string, 0, len(o.ModeSettings))
	for mode := range o.ModeSettings {
		modes = append(modes, string(mode))
	}
	sort.Strings(modes)
	for _, raw := range modes {
		mode := news.Mode(raw)
		if !mode.Valid() {
			return &ValidationError{Field: "mode_settings", Message: fmt.Sprintf("unknown content mode %q", raw)}
		}
		if err := m.validate.Struct(o.ModeSettings[mode]); err != nil {
			verr := m.structErr(err)
			var ve *ValidationError
			if errors.As(verr, &ve) {
				ve.Field = "mode_settings." + raw + "." + ve.Field
			}
			return verr
		}
	}
	return nil
}

func (m *Manager) structErr(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("failed %q validation", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q validation (%s)", fe.Tag(), fe.Param())
		}
		return &ValidationError{Field: fe.Field(), Message: msg}
	}
	return &ValidationError{Message: err.Error()}
}

// mergeKeys flattens current into its JSON keys and applies partial on top.
func mergeKeys(current any, partial map[string]json.RawMessage, known map[string]struct{}) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("settings: encode current: %w", err)
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("settings: decode current: %w", err)
	}

	for key, value := range partial {
		if _, ok := known[key]; !ok {
			return nil, &ValidationError{Field: key, Message: "unknown setting"}
		}
		if isNull(value) {
			delete(merged, key)
			continue
		}
		merged[key] = value
	}
	return merged, nil
}

func decodeStrict(fields map[string]json.RawMessage, dst any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ValidationError{Field: typeErr.Field, Message: "expected " + typeErr.Type.String()}
		}
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

func isNull(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func jsonKeys(v any) (map[string]struct{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(fields))
	for key := range fields {
		keys[key] = struct{}{}
	}
	return keys, nil
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Overlay = s.Overlay.Clone()
	return s
}
