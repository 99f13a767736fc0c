// Package engine owns the automation state: profile, macro store,
// custom mappings, settings, allowlist, training queue and the debug
// log. State is loaded once from the persistence collaborator at
// construction and mutated only through Engine methods, so tests can
// run parallel instances and nothing hides in package globals.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"formflow/backend/internal/debuglog"
	"formflow/backend/internal/dom"
	"formflow/backend/internal/filler"
	"formflow/backend/internal/matcher"
	"formflow/backend/internal/models"
	"formflow/backend/internal/player"
	"formflow/backend/internal/store"
	"formflow/backend/internal/trainer"
)

var (
	ErrMacroNotFound = errors.New("macro not found")
	ErrEmptyName     = errors.New("macro name must not be empty")
)

type Engine struct {
	mu    sync.RWMutex
	store store.Store

	profile   models.Profile
	macros    map[string]models.MacroData
	mappings  matcher.Mappings
	whitelist []string
	settings  models.Settings

	queue *trainer.Queue
	debug *debuglog.Log
}

// Options tune engine construction. Settings act as the defaults when
// the store has never saved any; zero values fall back to the built-in
// defaults either way.
type Options struct {
	Settings         models.Settings
	DebugLogCapacity int
}

// New loads all durable state through the store boundary and returns
// a ready engine. This is the only read from storage; afterwards the
// in-memory caches are authoritative.
func New(ctx context.Context, st store.Store, opts Options) (*Engine, error) {
	data, err := st.GetInitialData(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial data: %w", err)
	}
	if data.Macros == nil {
		data.Macros = make(map[string]models.MacroData)
	}
	if data.Mappings == nil {
		data.Mappings = matcher.Mappings{}
	}
	if data.Profile == nil {
		data.Profile = models.Profile{}
	}
	if data.Settings == (models.Settings{}) {
		data.Settings = opts.Settings
	}
	if data.Settings.MouseMoveIntervalMs <= 0 {
		data.Settings.MouseMoveIntervalMs = models.DefaultSettings().MouseMoveIntervalMs
	}
	if data.Settings.SimilarityThreshold <= 0 {
		data.Settings.SimilarityThreshold = models.DefaultSettings().SimilarityThreshold
	}
	return &Engine{
		store:     st,
		profile:   data.Profile,
		macros:    data.Macros,
		mappings:  data.Mappings,
		whitelist: data.Whitelist,
		settings:  data.Settings,
		queue:     trainer.NewQueue(),
		debug:     debuglog.New(opts.DebugLogCapacity),
	}, nil
}

// persist writes one blob through the store. Failure is logged and
// surfaced; the in-memory state the caller already applied stays.
func (e *Engine) persist(ctx context.Context, key string, value interface{}) error {
	if err := e.store.Save(ctx, key, value); err != nil {
		e.debug.Add(debuglog.PersistenceFailure, key, err.Error())
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

// Debug returns the recoverable-failure log.
func (e *Engine) Debug() *debuglog.Log { return e.debug }

// Queue returns the session training queue.
func (e *Engine) Queue() *trainer.Queue { return e.queue }

// -- profile ---------------------------------------------------------

func (e *Engine) Profile() models.Profile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(models.Profile, len(e.profile))
	for k, v := range e.profile {
		out[k] = v
	}
	return out
}

// SetProfileJSON replaces the profile from user-edited JSON. Malformed
// input rejects the whole operation; the prior profile is untouched.
func (e *Engine) SetProfileJSON(ctx context.Context, raw []byte) error {
	var profile models.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		e.debug.Add(debuglog.MalformedInput, store.KeyProfile, err.Error())
		return fmt.Errorf("invalid profile JSON: %w", err)
	}
	e.mu.Lock()
	e.profile = profile
	e.mu.Unlock()
	return e.persist(ctx, store.KeyProfile, profile)
}

// -- settings / allowlist -------------------------------------------

func (e *Engine) Settings() models.Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

func (e *Engine) UpdateSettings(ctx context.Context, s models.Settings) error {
	if s.MouseMoveIntervalMs <= 0 {
		s.MouseMoveIntervalMs = models.DefaultSettings().MouseMoveIntervalMs
	}
	if s.SimilarityThreshold <= 0 {
		s.SimilarityThreshold = models.DefaultSettings().SimilarityThreshold
	}
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
	return e.persist(ctx, store.KeySettings, s)
}

func (e *Engine) Whitelist() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.whitelist...)
}

func (e *Engine) SetWhitelist(ctx context.Context, list []string) error {
	e.mu.Lock()
	e.whitelist = append([]string(nil), list...)
	e.mu.Unlock()
	return e.persist(ctx, store.KeyWhitelist, list)
}

// IsAllowed reports whether a hostname is on the allowlist (exact
// match or subdomain of an entry). The allowlist only decides whether
// the engine's UI surface starts minimized; automation itself is
// never gated on it.
func (e *Engine) IsAllowed(hostname string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, entry := range e.whitelist {
		if hostname == entry || hasDomainSuffix(hostname, entry) {
			return true
		}
	}
	return false
}

func hasDomainSuffix(hostname, domain string) bool {
	return len(hostname) > len(domain)+1 &&
		hostname[len(hostname)-len(domain):] == domain &&
		hostname[len(hostname)-len(domain)-1] == '.'
}

// -- macros ----------------------------------------------------------

func (e *Engine) Macros() map[string]models.MacroData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]models.MacroData, len(e.macros))
	for k, v := range e.macros {
		out[k] = v
	}
	return out
}

func (e *Engine) Macro(name string) (models.MacroData, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.macros[name]
	return m, ok
}

// SaveMacro stores a macro under its name; last write wins on a name
// conflict.
func (e *Engine) SaveMacro(ctx context.Context, m models.MacroData) error {
	if m.Name == "" {
		return ErrEmptyName
	}
	e.mu.Lock()
	e.macros[m.Name] = m
	snapshot := e.macrosLocked()
	e.mu.Unlock()
	return e.persist(ctx, store.KeyMacros, snapshot)
}

func (e *Engine) DeleteMacro(ctx context.Context, name string) error {
	e.mu.Lock()
	if _, ok := e.macros[name]; !ok {
		e.mu.Unlock()
		return ErrMacroNotFound
	}
	delete(e.macros, name)
	snapshot := e.macrosLocked()
	e.mu.Unlock()
	return e.persist(ctx, store.KeyMacros, snapshot)
}

func (e *Engine) macrosLocked() map[string]models.MacroData {
	out := make(map[string]models.MacroData, len(e.macros))
	for k, v := range e.macros {
		out[k] = v
	}
	return out
}

// ExportMacros serializes the macro set as the interchange JSON.
func (e *Engine) ExportMacros() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return json.MarshalIndent(e.macros, "", "  ")
}

// ImportMacros replaces the macro set from an interchange file.
// Malformed JSON fails the whole import and applies nothing.
func (e *Engine) ImportMacros(ctx context.Context, raw []byte) (int, error) {
	var macros map[string]models.MacroData
	if err := json.Unmarshal(raw, &macros); err != nil {
		e.debug.Add(debuglog.MalformedInput, store.KeyMacros, err.Error())
		return 0, fmt.Errorf("invalid macro file: %w", err)
	}
	for name, m := range macros {
		if m.Name == "" {
			m.Name = name
			macros[name] = m
		}
	}
	e.mu.Lock()
	e.macros = macros
	snapshot := e.macrosLocked()
	e.mu.Unlock()
	return len(macros), e.persist(ctx, store.KeyMacros, snapshot)
}

// -- mappings --------------------------------------------------------

func (e *Engine) Mappings() matcher.Mappings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mappingsLocked()
}

func (e *Engine) mappingsLocked() matcher.Mappings {
	return e.mappings.Clone()
}

// CommitMapping applies a training correction under the engine lock
// and persists the mapping set. An empty key deletes the mapping; the
// ignore sentinel marks the field as never auto-filled.
func (e *Engine) CommitMapping(ctx context.Context, fieldID, site, key string, global bool) error {
	e.mu.Lock()
	t := trainer.New(e.queue, e.mappings, nil, nil)
	_ = t.Commit(fieldID, site, key, global)
	snapshot := e.mappingsLocked()
	e.mu.Unlock()
	return e.persist(ctx, store.KeyMappings, snapshot)
}

// -- operations ------------------------------------------------------

// Fill runs one form-fill pass over the page, feeding the training
// queue when learning mode is on.
func (e *Engine) Fill(page dom.Page) int {
	e.mu.RLock()
	profile := make(models.Profile, len(e.profile))
	for k, v := range e.profile {
		profile[k] = v
	}
	f := &filler.Filler{
		Page:      page,
		Profile:   profile,
		Mappings:  e.mappingsLocked(),
		Context:   page.Hostname(),
		Threshold: e.settings.SimilarityThreshold,
		Learning:  e.settings.LearningMode,
		Queue:     e.queue,
	}
	e.mu.RUnlock()
	return f.Fill()
}

// Trainer returns a trainer session over the page. The trainer works
// on its own mapping copy; a commit hands the updated set back to the
// engine under the lock and persists it, so corrections stick whether
// they arrive through the trainer or through CommitMapping.
func (e *Engine) Trainer(page dom.Page) *trainer.Trainer {
	fill := func() (int, error) { return e.Fill(page), nil }
	persist := func(m matcher.Mappings) error {
		snapshot := m.Clone()
		e.mu.Lock()
		e.mappings = snapshot
		e.mu.Unlock()
		return e.persist(context.Background(), store.KeyMappings, snapshot)
	}
	return trainer.New(e.queue, e.Mappings(), fill, persist)
}

// PlayerOptions derives run options from the current settings.
func (e *Engine) PlayerOptions() player.Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return player.Options{CoordinateFallback: e.settings.CoordinateFallback}
}

// RecorderOptions derives capture options from the current settings.
func (e *Engine) RecorderOptions() (recordMouseMoves bool, mouseMoveIntervalMs int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings.RecordMouseMoves, e.settings.MouseMoveIntervalMs
}
