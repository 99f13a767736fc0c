package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store used by tests and by serverless
// setups that do not want a database. FailWith makes every following
// Save fail, for exercising persistence-failure handling.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string]json.RawMessage
	fail  error
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string]json.RawMessage)}
}

// FailWith forces subsequent saves to return err; nil restores
// normal behavior.
func (s *MemStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *MemStore) Save(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", key, err)
	}
	s.blobs[key] = data
	return nil
}

// Raw returns the stored blob for a key, nil when absent.
func (s *MemStore) Raw(key string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blobs[key]
}

func (s *MemStore) GetInitialData(ctx context.Context) (InitialData, error) {
	if err := ctx.Err(); err != nil {
		return InitialData{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data := EmptyInitialData()
	for key, blob := range s.blobs {
		var err error
		switch key {
		case KeyProfile:
			err = json.Unmarshal(blob, &data.Profile)
		case KeyMacros:
			err = json.Unmarshal(blob, &data.Macros)
		case KeyMappings:
			err = json.Unmarshal(blob, &data.Mappings)
		case KeyWhitelist:
			err = json.Unmarshal(blob, &data.Whitelist)
		case KeySettings:
			err = json.Unmarshal(blob, &data.Settings)
		}
		if err != nil {
			return data, fmt.Errorf("stored %s is malformed: %w", key, err)
		}
	}
	return data, nil
}
