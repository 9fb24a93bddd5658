package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nsabot/updatescanner/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SettingsRepository stores named settings. Unset names fall back to the configured defaults.
type SettingsRepository struct {
	collection *mongo.Collection
	defaults   map[string]interface{}
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *MongoDB, defaults map[string]interface{}) *SettingsRepository {
	if defaults == nil {
		defaults = map[string]interface{}{}
	}
	return &SettingsRepository{
		collection: db.GetCollection(CollectionSettings),
		defaults:   defaults,
	}
}

// LoadSetting returns the stored value of name, its default, or nil when neither exists
func (r *SettingsRepository) LoadSetting(ctx context.Context, name string) (interface{}, error) {
	setting, err := r.GetSetting(ctx, name)
	if err != nil {
		return nil, err
	}
	return setting.Value, nil
}

// GetSetting returns the setting document, synthesizing one from the defaults when nothing is stored
func (r *SettingsRepository) GetSetting(ctx context.Context, name string) (*model.Setting, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var setting model.Setting
	err := r.collection.FindOne(ctxTimeout, bson.M{"_id": name}).Decode(&setting)
	if err != nil {
		// Nothing stored, fall back to the configured default
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &model.Setting{Name: name, Value: r.defaults[name]}, nil
		}
		return nil, fmt.Errorf("failed to load setting %s: %w", name, err)
	}

	return &setting, nil
}

// SaveSetting stores value under name
func (r *SettingsRepository) SaveSetting(ctx context.Context, name string, value interface{}) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	setting := model.Setting{
		Name:      name,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}

	// Upsert keyed by setting name
	_, err := r.collection.ReplaceOne(ctxTimeout, bson.M{"_id": name}, setting, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", name, err)
	}

	return nil
}
