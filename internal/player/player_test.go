package player

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formflow/backend/internal/debuglog"
	"formflow/backend/internal/dom"
	"formflow/backend/internal/locator"
	"formflow/backend/internal/models"
)

const playPage = `<html><body>
	<form id="f">
		<input id="email" name="email">
		<input id="news" name="news" type="checkbox">
	</form>
</body></html>`

func playTestPage(t *testing.T) *dom.MemPage {
	t.Helper()
	page, err := dom.NewMemPage(playPage, "example.com")
	require.NoError(t, err)
	return page
}

func idLoc(id string) locator.Locator {
	return locator.Locator{Kind: locator.KindID, Value: id}
}

func TestClampDelay(t *testing.T) {
	assert.Equal(t, MinDelay, ClampDelay(0, 10))
	assert.Equal(t, 500*time.Millisecond, ClampDelay(1000, 1500))
	assert.Equal(t, MaxDelay, ClampDelay(0, 60000))
	assert.Equal(t, MinDelay, ClampDelay(100, 50), "out-of-order timestamps clamp to the floor")
}

func TestTickReplaysInput(t *testing.T) {
	page := playTestPage(t)
	macro := models.MacroData{Name: "m", Events: []models.CapturedEvent{
		{Type: "input", Locator: idLoc("email"), Value: "a@b.c", Timestamp: 0},
	}}
	run := NewRun(page, macro, Options{}, nil)

	next := run.Tick(time.Now())
	assert.True(t, next.Done)

	assert.Equal(t, "a@b.c", page.Query("#email").Value())

	// Value application dispatches input, change and blur.
	types := make([]string, 0)
	for _, d := range page.Trace() {
		types = append(types, d.Ev.Type)
	}
	assert.Equal(t, []string{"input", "change", "blur"}, types)

	stats := run.Stats()
	assert.Equal(t, Stats{Total: 1, Replayed: 1}, stats)
}

func TestTickWaitBetweenEvents(t *testing.T) {
	page := playTestPage(t)
	macro := models.MacroData{Events: []models.CapturedEvent{
		{Type: "click", Locator: idLoc("email"), Timestamp: 1000},
		{Type: "click", Locator: idLoc("email"), Timestamp: 1200},
	}}
	run := NewRun(page, macro, Options{}, nil)

	next := run.Tick(time.Now())
	assert.False(t, next.Done)
	assert.Equal(t, 200*time.Millisecond, next.Wait)

	next = run.Tick(time.Now())
	assert.True(t, next.Done)
}

func TestMissSkipsAndContinues(t *testing.T) {
	page := playTestPage(t)
	faults := debuglog.New(0)
	macro := models.MacroData{Events: []models.CapturedEvent{
		{Type: "click", Locator: idLoc("gone"), Timestamp: 0},
		{Type: "input", Locator: idLoc("email"), Value: "kept", Timestamp: 100},
	}}
	run := NewRun(page, macro, Options{}, faults)

	for {
		if run.Tick(time.Now()).Done {
			break
		}
	}

	assert.Equal(t, Stats{Total: 2, Replayed: 1, Skipped: 1}, run.Stats())
	assert.Equal(t, "kept", page.Query("#email").Value())

	entries := faults.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, debuglog.LocatorMiss, entries[0].Kind)
	assert.Equal(t, "#gone", entries[0].Target)
}

func TestCheckboxReplay(t *testing.T) {
	page := playTestPage(t)
	macro := models.MacroData{Events: []models.CapturedEvent{
		{Type: "change", Locator: idLoc("news"), Checked: true, Timestamp: 0},
	}}
	run := NewRun(page, macro, Options{}, nil)
	run.Tick(time.Now())

	assert.True(t, page.Query("#news").Checked())
}

func TestSubmitFallsBackToFirstForm(t *testing.T) {
	page := playTestPage(t)
	macro := models.MacroData{Events: []models.CapturedEvent{
		{Type: "submit", Locator: idLoc("vanished"), Timestamp: 0},
	}}
	run := NewRun(page, macro, Options{}, nil)
	run.Tick(time.Now())

	require.Len(t, page.Submitted(), 1)
	assert.Equal(t, Stats{Total: 1, Replayed: 1}, run.Stats())
}

func TestCoordinateFallbackResolution(t *testing.T) {
	page := playTestPage(t)
	el := page.Query("#email")
	page.SetRect(el, dom.Rect{X: 0, Y: 0, W: 100, H: 30})

	macro := models.MacroData{Events: []models.CapturedEvent{
		{Type: "input", Locator: idLoc("regenerated"), Value: "v", ClientX: 20, ClientY: 10, Timestamp: 0},
	}}

	// Disabled: the stale locator is a miss.
	run := NewRun(page, macro, Options{}, nil)
	run.Tick(time.Now())
	assert.Equal(t, 1, run.Stats().Skipped)

	// Enabled: the hit test recovers the element.
	page.ClearTrace()
	run = NewRun(page, macro, Options{CoordinateFallback: true}, nil)
	run.Tick(time.Now())
	assert.Equal(t, 1, run.Stats().Replayed)
	assert.Equal(t, "v", page.Query("#email").Value())
}

func TestKeyEventReplay(t *testing.T) {
	page := playTestPage(t)
	macro := models.MacroData{Events: []models.CapturedEvent{
		{Type: "keydown", Locator: idLoc("email"), Key: "A", Code: "KeyA",
			Modifiers: models.Modifiers{Shift: true}, Timestamp: 0},
	}}
	run := NewRun(page, macro, Options{}, nil)
	run.Tick(time.Now())

	trace := page.Trace()
	require.Len(t, trace, 1)
	assert.Equal(t, "keydown", trace[0].Ev.Type)
	assert.Equal(t, "A", trace[0].Ev.Key)
	assert.True(t, trace[0].Ev.Modifiers.Shift)
}

func TestFocusEvents(t *testing.T) {
	page := playTestPage(t)
	macro := models.MacroData{Events: []models.CapturedEvent{
		{Type: "focusin", Locator: idLoc("email"), Timestamp: 0},
	}}
	run := NewRun(page, macro, Options{}, nil)
	run.Tick(time.Now())

	assert.Equal(t, page.Query("#email"), page.Focused())
}

func TestPlayDrivesToCompletion(t *testing.T) {
	page := playTestPage(t)
	macro := models.MacroData{Events: []models.CapturedEvent{
		{Type: "click", Locator: idLoc("email"), Timestamp: 0},
		{Type: "click", Locator: idLoc("email"), Timestamp: 10},
	}}
	run := NewRun(page, macro, Options{}, nil)

	stats := Play(context.Background(), run)
	assert.Equal(t, Stats{Total: 2, Replayed: 2}, stats)
}

func TestPlayHonorsCancellation(t *testing.T) {
	page := playTestPage(t)
	events := make([]models.CapturedEvent, 0, 10)
	for i := 0; i < 10; i++ {
		events = append(events, models.CapturedEvent{
			Type: "click", Locator: idLoc("email"), Timestamp: int64(i * 5000),
		})
	}
	run := NewRun(page, models.MacroData{Events: events}, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	stats := Play(ctx, run)
	assert.Less(t, stats.Replayed, 10, "cancellation must stop playback early")
}
