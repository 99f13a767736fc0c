package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formflow/backend/internal/debuglog"
	"formflow/backend/internal/dom"
	"formflow/backend/internal/matcher"
	"formflow/backend/internal/models"
	"formflow/backend/internal/store"
)

func newEngine(t *testing.T) (*Engine, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	eng, err := New(context.Background(), st, Options{})
	require.NoError(t, err)
	return eng, st
}

func TestNewAppliesDefaults(t *testing.T) {
	eng, _ := newEngine(t)

	assert.NotNil(t, eng.Profile())
	assert.Empty(t, eng.Macros())
	assert.Empty(t, eng.Whitelist())

	s := eng.Settings()
	assert.Equal(t, models.DefaultSettings().MouseMoveIntervalMs, s.MouseMoveIntervalMs)
	assert.Equal(t, models.DefaultSettings().SimilarityThreshold, s.SimilarityThreshold)
	assert.False(t, s.LearningMode)
}

func TestSaveMacroRoundTrip(t *testing.T) {
	eng, st := newEngine(t)
	ctx := context.Background()

	m := models.MacroData{
		Name:     "checkout",
		StartURL: "https://shop.example.com/cart",
		Events:   []models.CapturedEvent{{Type: "click", Timestamp: 1}},
	}
	require.NoError(t, eng.SaveMacro(ctx, m))

	got, ok := eng.Macro("checkout")
	require.True(t, ok)
	assert.Equal(t, "https://shop.example.com/cart", got.StartURL)

	// A fresh engine over the same store sees the macro.
	eng2, err := New(ctx, st, Options{})
	require.NoError(t, err)
	got, ok = eng2.Macro("checkout")
	require.True(t, ok)
	assert.Len(t, got.Events, 1)
}

func TestSaveMacroRejectsEmptyName(t *testing.T) {
	eng, _ := newEngine(t)
	err := eng.SaveMacro(context.Background(), models.MacroData{})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestDeleteMacro(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.SaveMacro(ctx, models.MacroData{Name: "a"}))

	require.NoError(t, eng.DeleteMacro(ctx, "a"))
	_, ok := eng.Macro("a")
	assert.False(t, ok)

	assert.ErrorIs(t, eng.DeleteMacro(ctx, "a"), ErrMacroNotFound)
}

func TestExportImportRoundTrip(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.SaveMacro(ctx, models.MacroData{Name: "a", StartURL: "https://a.example"}))
	require.NoError(t, eng.SaveMacro(ctx, models.MacroData{Name: "b"}))

	blob, err := eng.ExportMacros()
	require.NoError(t, err)

	other, _ := newEngine(t)
	n, err := other.ImportMacros(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, ok := other.Macro("a")
	require.True(t, ok)
	assert.Equal(t, "https://a.example", got.StartURL)
}

func TestImportReplacesMacroSet(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.SaveMacro(ctx, models.MacroData{Name: "old"}))

	n, err := eng.ImportMacros(ctx, []byte(`{"new": {"name": "new", "events": []}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := eng.Macro("old")
	assert.False(t, ok, "import replaces the whole set")
	_, ok = eng.Macro("new")
	assert.True(t, ok)
}

func TestImportMalformedAppliesNothing(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.SaveMacro(ctx, models.MacroData{Name: "keep"}))

	_, err := eng.ImportMacros(ctx, []byte(`{"broken`))
	require.Error(t, err)
	_, ok := eng.Macro("keep")
	assert.True(t, ok)

	entries := eng.Debug().Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, debuglog.MalformedInput, entries[len(entries)-1].Kind)
}

func TestSetProfileJSONRejectsMalformed(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.SetProfileJSON(ctx, []byte(`{"firstName": "John"}`)))

	err := eng.SetProfileJSON(ctx, []byte(`{"firstName": `))
	require.Error(t, err)
	assert.Equal(t, "John", eng.Profile()["firstName"].String, "prior profile untouched")

	entries := eng.Debug().Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, debuglog.MalformedInput, entries[len(entries)-1].Kind)
}

func TestProfileAcceptsListsAndNumbers(t *testing.T) {
	eng, _ := newEngine(t)
	raw := []byte(`{"age": 42, "languages": ["en", "fr"]}`)
	require.NoError(t, eng.SetProfileJSON(context.Background(), raw))

	p := eng.Profile()
	assert.Equal(t, "42", p["age"].String)
	assert.Equal(t, []string{"en", "fr"}, p["languages"].List)
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	eng, st := newEngine(t)
	st.FailWith(errors.New("disk full"))

	err := eng.SaveMacro(context.Background(), models.MacroData{Name: "a"})
	require.Error(t, err)

	_, ok := eng.Macro("a")
	assert.True(t, ok, "memory stays authoritative past a persistence failure")

	entries := eng.Debug().Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, debuglog.PersistenceFailure, entries[len(entries)-1].Kind)
	assert.Equal(t, store.KeyMacros, entries[len(entries)-1].Target)
}

func TestIsAllowed(t *testing.T) {
	eng, _ := newEngine(t)
	require.NoError(t, eng.SetWhitelist(context.Background(), []string{"example.com"}))

	assert.True(t, eng.IsAllowed("example.com"))
	assert.True(t, eng.IsAllowed("shop.example.com"))
	assert.False(t, eng.IsAllowed("notexample.com"))
	assert.False(t, eng.IsAllowed("example.org"))
	assert.False(t, eng.IsAllowed(""))
}

func TestCommitMappingRescopes(t *testing.T) {
	eng, st := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.CommitMapping(ctx, "flurb", "example.com", "firstName", true))
	assert.Equal(t, "firstName", eng.Mappings()[matcher.GlobalContext]["flurb"])

	require.NoError(t, eng.CommitMapping(ctx, "flurb", "example.com", "lastName", false))
	m := eng.Mappings()
	assert.Equal(t, "lastName", m["example.com"]["flurb"])
	_, ok := m[matcher.GlobalContext]
	assert.False(t, ok)

	assert.NotNil(t, st.Raw(store.KeyMappings))
}

func TestUpdateSettingsClampsToDefaults(t *testing.T) {
	eng, _ := newEngine(t)
	require.NoError(t, eng.UpdateSettings(context.Background(), models.Settings{LearningMode: true}))

	s := eng.Settings()
	assert.True(t, s.LearningMode)
	assert.Equal(t, models.DefaultSettings().MouseMoveIntervalMs, s.MouseMoveIntervalMs)
	assert.Equal(t, models.DefaultSettings().SimilarityThreshold, s.SimilarityThreshold)
}

func TestFillUsesProfileAndFeedsQueue(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.SetProfileJSON(ctx, []byte(`{"firstName": "John"}`)))
	require.NoError(t, eng.UpdateSettings(ctx, models.Settings{LearningMode: true}))

	page, err := dom.NewMemPage(`<html><body><form>
		<input name="firstName" type="text">
		<input name="flurb" type="text">
	</form></body></html>`, "example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, eng.Fill(page))
	assert.Equal(t, "John", page.Query(`input[name="firstName"]`).Value())

	items := eng.Queue().Items()
	require.Len(t, items, 1)
	assert.Equal(t, "flurb", items[0].FieldID)
}

func TestTrainerSessionCommitSticks(t *testing.T) {
	eng, st := newEngine(t)
	eng.Queue().Add(models.SkippedField{FieldID: "flurb"})

	page, err := dom.NewMemPage(`<html><body></body></html>`, "example.com")
	require.NoError(t, err)

	tr := eng.Trainer(page)
	require.NoError(t, tr.Commit("flurb", "example.com", "firstName", false))

	assert.Equal(t, "firstName", eng.Mappings()["example.com"]["flurb"])
	assert.Zero(t, eng.Queue().Len())
	assert.NotNil(t, st.Raw(store.KeyMappings), "trainer commits are persisted")
}

func TestTrainerCommitThroughEngine(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()
	eng.Queue().Add(models.SkippedField{FieldID: "flurb"})

	require.NoError(t, eng.CommitMapping(ctx, "flurb", "example.com", "firstName", false))
	assert.Zero(t, eng.Queue().Len())
}
