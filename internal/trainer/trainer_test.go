package trainer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formflow/backend/internal/matcher"
	"formflow/backend/internal/models"
)

func TestQueueDedupe(t *testing.T) {
	q := NewQueue()
	assert.True(t, q.Add(models.SkippedField{FieldID: "flurb"}))
	assert.False(t, q.Add(models.SkippedField{FieldID: "flurb"}))
	assert.False(t, q.Add(models.SkippedField{}))
	assert.Equal(t, 1, q.Len())

	q.Remove("flurb")
	assert.Zero(t, q.Len())
	assert.True(t, q.Add(models.SkippedField{FieldID: "flurb"}), "removal frees the identifier again")
}

func TestQueueItemsIsACopy(t *testing.T) {
	q := NewQueue()
	q.Add(models.SkippedField{FieldID: "a"})
	items := q.Items()
	items[0].FieldID = "mutated"
	assert.Equal(t, "a", q.Items()[0].FieldID)
}

func TestQueueClear(t *testing.T) {
	q := NewQueue()
	q.Add(models.SkippedField{FieldID: "a"})
	q.Add(models.SkippedField{FieldID: "b"})
	q.Clear()
	assert.Zero(t, q.Len())
}

func TestRunForcesFillWhenEmpty(t *testing.T) {
	q := NewQueue()
	fills := 0
	tr := New(q, matcher.Mappings{}, func() (int, error) {
		fills++
		q.Add(models.SkippedField{FieldID: "flurb", Guess: "firstName"})
		return 0, nil
	}, nil)

	items, err := tr.Run()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, fills)

	// A populated queue is returned as-is.
	_, err = tr.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, fills)
}

func TestRunPropagatesFillError(t *testing.T) {
	tr := New(NewQueue(), matcher.Mappings{}, func() (int, error) {
		return 0, errors.New("page gone")
	}, nil)
	_, err := tr.Run()
	assert.Error(t, err)
}

func TestCommitWritesMappingAndDequeues(t *testing.T) {
	q := NewQueue()
	q.Add(models.SkippedField{FieldID: "flurb"})
	mappings := matcher.Mappings{}
	var persisted matcher.Mappings
	tr := New(q, mappings, nil, func(m matcher.Mappings) error {
		persisted = m
		return nil
	})

	require.NoError(t, tr.Commit("flurb", "example.com", "firstName", false))
	assert.Equal(t, "firstName", mappings["example.com"]["flurb"])
	assert.Zero(t, q.Len())
	assert.NotNil(t, persisted)
}

func TestCommitRescopesBetweenGlobalAndSite(t *testing.T) {
	mappings := matcher.Mappings{matcher.GlobalContext: {"flurb": "firstName"}}
	tr := New(NewQueue(), mappings, nil, nil)

	require.NoError(t, tr.Commit("flurb", "example.com", "lastName", false))
	assert.Equal(t, "lastName", mappings["example.com"]["flurb"])
	_, ok := mappings[matcher.GlobalContext]
	assert.False(t, ok, "emptied global bucket is dropped")

	require.NoError(t, tr.Commit("flurb", "example.com", "firstName", true))
	assert.Equal(t, "firstName", mappings[matcher.GlobalContext]["flurb"])
	_, ok = mappings["example.com"]
	assert.False(t, ok)
}

func TestCommitEmptyKeyDeletes(t *testing.T) {
	mappings := matcher.Mappings{"example.com": {"flurb": "firstName"}}
	tr := New(NewQueue(), mappings, nil, nil)
	require.NoError(t, tr.Commit("flurb", "example.com", "", false))
	assert.Empty(t, mappings)
}

func TestCommitDequeuesEvenWhenPersistFails(t *testing.T) {
	q := NewQueue()
	q.Add(models.SkippedField{FieldID: "flurb"})
	mappings := matcher.Mappings{}
	tr := New(q, mappings, nil, func(matcher.Mappings) error {
		return errors.New("disk full")
	})

	err := tr.Commit("flurb", "example.com", "firstName", false)
	assert.Error(t, err)
	assert.Zero(t, q.Len(), "the in-memory correction stands")
	assert.Equal(t, "firstName", mappings["example.com"]["flurb"])
}
