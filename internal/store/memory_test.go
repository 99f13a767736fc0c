package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formflow/backend/internal/matcher"
	"formflow/backend/internal/models"
)

func TestMemStoreSaveAndReload(t *testing.T) {
	st := NewMemStore()
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, KeyProfile, models.Profile{"firstName": {String: "John"}}))
	require.NoError(t, st.Save(ctx, KeyWhitelist, []string{"example.com"}))
	require.NoError(t, st.Save(ctx, KeyMappings, matcher.Mappings{"global": {"flurb": "firstName"}}))

	data, err := st.GetInitialData(ctx)
	require.NoError(t, err)
	assert.Equal(t, "John", data.Profile["firstName"].String)
	assert.Equal(t, []string{"example.com"}, data.Whitelist)
	assert.Equal(t, "firstName", data.Mappings["global"]["flurb"])
}

func TestMemStoreEmptyDefaults(t *testing.T) {
	st := NewMemStore()
	data, err := st.GetInitialData(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, data.Profile)
	assert.NotNil(t, data.Macros)
	assert.NotNil(t, data.Mappings)
	assert.Zero(t, data.Settings, "absent settings stay zero so the engine applies defaults")
}

func TestMemStoreFailWith(t *testing.T) {
	st := NewMemStore()
	ctx := context.Background()
	boom := errors.New("disk full")

	st.FailWith(boom)
	assert.ErrorIs(t, st.Save(ctx, KeySettings, models.DefaultSettings()), boom)
	assert.Nil(t, st.Raw(KeySettings))

	st.FailWith(nil)
	require.NoError(t, st.Save(ctx, KeySettings, models.DefaultSettings()))
	assert.NotNil(t, st.Raw(KeySettings))
}

func TestMemStoreHonorsContext(t *testing.T) {
	st := NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, st.Save(ctx, KeyProfile, models.Profile{}))
	_, err := st.GetInitialData(ctx)
	assert.Error(t, err)
}
