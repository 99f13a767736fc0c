package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"formflow/backend/internal/models"
)

// GormStore keeps macros as relational rows (events serialized to
// JSON) and everything else as KVEntry blobs.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", key, err)
	}
	if key == KeyMacros {
		return s.saveMacros(ctx, data)
	}

	db := s.db.WithContext(ctx)
	var entry models.KVEntry
	err = db.Where("`key` = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entry = models.KVEntry{Key: key, Value: string(data)}
		if err := db.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to store %s: %w", key, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", key, err)
	}
	entry.Value = string(data)
	if err := db.Save(&entry).Error; err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// saveMacros replaces the macro table contents with the given set
// atomically, so a failed write never leaves a half-applied macro
// store behind.
func (s *GormStore) saveMacros(ctx context.Context, data []byte) error {
	var macros map[string]models.MacroData
	if err := json.Unmarshal(data, &macros); err != nil {
		return fmt.Errorf("macros blob is not a macro set: %w", err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		names := make([]string, 0, len(macros))
		for name, m := range macros {
			names = append(names, name)
			row := models.Macro{Name: name, StartURL: m.StartURL}
			if err := row.SetEvents(m.Events); err != nil {
				return err
			}
			var existing models.Macro
			err := tx.Where("name = ?", name).First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			existing.StartURL = row.StartURL
			existing.Events = row.Events
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
		}
		if len(names) == 0 {
			return tx.Where("1 = 1").Delete(&models.Macro{}).Error
		}
		return tx.Where("name NOT IN ?", names).Delete(&models.Macro{}).Error
	})
}

func (s *GormStore) GetInitialData(ctx context.Context) (InitialData, error) {
	data := EmptyInitialData()
	db := s.db.WithContext(ctx)

	var rows []models.Macro
	if err := db.Find(&rows).Error; err != nil {
		return data, fmt.Errorf("failed to load macros: %w", err)
	}
	for i := range rows {
		md, err := rows[i].Data()
		if err != nil {
			return data, fmt.Errorf("macro %q has malformed events: %w", rows[i].Name, err)
		}
		data.Macros[md.Name] = md
	}

	var entries []models.KVEntry
	if err := db.Find(&entries).Error; err != nil {
		return data, fmt.Errorf("failed to load settings: %w", err)
	}
	for _, e := range entries {
		var err error
		switch e.Key {
		case KeyProfile:
			err = json.Unmarshal([]byte(e.Value), &data.Profile)
		case KeyMappings:
			err = json.Unmarshal([]byte(e.Value), &data.Mappings)
		case KeyWhitelist:
			err = json.Unmarshal([]byte(e.Value), &data.Whitelist)
		case KeySettings:
			err = json.Unmarshal([]byte(e.Value), &data.Settings)
		}
		if err != nil {
			return data, fmt.Errorf("stored %s is malformed: %w", e.Key, err)
		}
	}
	return data, nil
}
