package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"formflow/backend/internal/locator"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

type User struct {
	BaseModel
	Username string `json:"username" gorm:"uniqueIndex;size:100;not null"`
	Email    string `json:"email" gorm:"uniqueIndex;size:100;not null"`
	Password string `json:"-" gorm:"size:255;not null"`
	Status   int    `json:"status" gorm:"default:1"` // 1:active, 0:inactive
}

// CapturedEvent is one recorded user interaction. The ordered sequence
// of captured events is the macro; insertion order is playback order.
type CapturedEvent struct {
	Type      string          `json:"type"`
	Locator   locator.Locator `json:"locator"`
	IndexPath []int           `json:"index_path,omitempty"`
	Value     string          `json:"value,omitempty"`
	Checked   bool            `json:"checked,omitempty"`
	Timestamp int64           `json:"timestamp"` // wall clock, milliseconds
	Key       string          `json:"key,omitempty"`
	Code      string          `json:"code,omitempty"`
	Button    int             `json:"button,omitempty"`
	ClientX   float64         `json:"client_x,omitempty"`
	ClientY   float64         `json:"client_y,omitempty"`
	Modifiers Modifiers       `json:"modifiers"`
}

// Modifiers mirrors the modifier-key state of the source event.
type Modifiers struct {
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
	Alt   bool `json:"alt"`
	Meta  bool `json:"meta"`
}

// MacroData is the in-memory and import/export form of a macro.
type MacroData struct {
	Name     string          `json:"name"`
	StartURL string          `json:"start_url,omitempty"`
	Events   []CapturedEvent `json:"events"`
}

// Macro is the persisted form; events are serialized JSON.
type Macro struct {
	BaseModel
	Name     string `json:"name" gorm:"uniqueIndex;size:200;not null"`
	StartURL string `json:"start_url" gorm:"size:500"`
	Events   string `json:"events" gorm:"type:longtext"`
	UserID   uint   `json:"user_id"`
}

func (m *Macro) GetEvents() ([]CapturedEvent, error) {
	var events []CapturedEvent
	if m.Events == "" {
		return events, nil
	}
	err := json.Unmarshal([]byte(m.Events), &events)
	return events, err
}

func (m *Macro) SetEvents(events []CapturedEvent) error {
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}
	m.Events = string(data)
	return nil
}

// Data converts the persisted row into its in-memory form.
func (m *Macro) Data() (MacroData, error) {
	events, err := m.GetEvents()
	if err != nil {
		return MacroData{}, err
	}
	return MacroData{Name: m.Name, StartURL: m.StartURL, Events: events}, nil
}

// Schedule triggers a macro run at a given date/time with an optional
// recurrence (none, daily, weekly, monthly).
type Schedule struct {
	BaseModel
	MacroID    uint   `json:"macro_id" gorm:"not null"`
	Macro      Macro  `json:"macro" gorm:"foreignKey:MacroID"`
	Date       string `json:"date" gorm:"size:20;not null"` // 2006-01-02
	Time       string `json:"time" gorm:"size:10;not null"` // 15:04
	Recurrence string `json:"recurrence" gorm:"size:20;default:none"`
	Status     int    `json:"status" gorm:"default:1"`
	UserID     uint   `json:"user_id"`
}

// Run statuses.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// MacroRun is one playback of a macro, scheduled or on demand.
type MacroRun struct {
	BaseModel
	RunID     string     `json:"run_id" gorm:"uniqueIndex;size:40;not null"`
	MacroName string     `json:"macro_name" gorm:"size:200;not null"`
	Status    string     `json:"status" gorm:"size:20;default:pending"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Duration  int        `json:"duration"` // milliseconds
	Total     int        `json:"total"`
	Replayed  int        `json:"replayed"`
	Skipped   int        `json:"skipped"`
	Error     string     `json:"error" gorm:"type:text"`
	UserID    uint       `json:"user_id"`
}

// KVEntry is one durable key -> JSON blob (profile, mappings,
// settings, whitelist). All reads happen once at engine init; writes
// go through the store boundary.
type KVEntry struct {
	BaseModel
	Key   string `json:"key" gorm:"uniqueIndex;size:100;not null"`
	Value string `json:"value" gorm:"type:longtext"`
}

// ProfileValue is a profile scalar: a string or an array of strings
// for multi-select fields. Booleans and numbers in user-edited JSON
// are coerced to their string form.
type ProfileValue struct {
	String string
	List   []string
	IsList bool
}

func (v ProfileValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		return json.Marshal(v.List)
	}
	return json.Marshal(v.String)
}

func (v *ProfileValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = ProfileValue{String: s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = ProfileValue{List: list, IsList: true}
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = ProfileValue{String: fmt.Sprintf("%v", b)}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = ProfileValue{String: n.String()}
		return nil
	}
	return fmt.Errorf("profile value must be a string, array, bool or number")
}

// Profile is the user's key -> value data used to fill form fields.
type Profile map[string]ProfileValue

// Settings are the engine toggles surfaced to the user.
type Settings struct {
	LearningMode        bool    `json:"learning_mode"`
	CoordinateFallback  bool    `json:"coordinate_fallback"`
	RecordMouseMoves    bool    `json:"record_mouse_moves"`
	MouseMoveIntervalMs int     `json:"mouse_move_interval_ms"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

// DefaultSettings returns the engine defaults applied when no stored
// settings exist.
func DefaultSettings() Settings {
	return Settings{
		MouseMoveIntervalMs: 200,
		SimilarityThreshold: 0.5,
	}
}

// SkippedField is a session-scoped training candidate: a field the
// matcher could not confidently resolve during a learning-mode fill.
// It references the field by identifier and locator snapshot, never by
// a live element, so it survives DOM mutations and serializes cleanly.
type SkippedField struct {
	FieldID string          `json:"field_id"`
	Locator locator.Locator `json:"locator"`
	Context string          `json:"context"`
	Label   string          `json:"label"`
	Guess   string          `json:"guess,omitempty"`
	Score   float64         `json:"score"`
}
