package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/nsabot/updatescanner/internal/autoscan"
	"github.com/nsabot/updatescanner/internal/evaluator"
	"github.com/nsabot/updatescanner/internal/model"
)

var settingName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]{0,63}$`)

// SettingsRepository stores named settings
type SettingsRepository interface {
	GetSetting(ctx context.Context, name string) (*model.Setting, error)
	SaveSetting(ctx context.Context, name string, value interface{}) error
}

// Rearmer re-creates the autoscan alarm after a setting it depends on changed
type Rearmer interface {
	Initialize(ctx context.Context) error
}

// SettingsService reads and writes settings
type SettingsService struct {
	repo      SettingsRepository
	scheduler Rearmer
}

// NewSettingsService creates a new settings service. scheduler may be nil when autoscan is disabled.
func NewSettingsService(repo SettingsRepository, scheduler Rearmer) *SettingsService {
	return &SettingsService{
		repo:      repo,
		scheduler: scheduler,
	}
}

// Get returns the stored or default value of a setting
func (s *SettingsService) Get(ctx context.Context, name string) (*model.Setting, error) {
	if !settingName.MatchString(name) {
		return nil, fmt.Errorf("%w: invalid setting name %q", ErrValidation, name)
	}
	return s.repo.GetSetting(ctx, name)
}

// Put stores a setting. Changing the debug setting re-arms the autoscan alarm. If re-arming
// fails the previous value is restored, so the stored setting matches the armed timing.
func (s *SettingsService) Put(ctx context.Context, name string, value interface{}) error {
	if !settingName.MatchString(name) {
		return fmt.Errorf("%w: invalid setting name %q", ErrValidation, name)
	}

	rearm := name == autoscan.DebugSetting && s.scheduler != nil
	var previous interface{}

	if name == autoscan.DebugSetting {
		if _, err := evaluator.ParseBool(value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrValidation, name, err)
		}
	}
	if rearm {
		current, err := s.repo.GetSetting(ctx, name)
		if err != nil {
			return err
		}
		previous = current.Value
	}

	if err := s.repo.SaveSetting(ctx, name, value); err != nil {
		return err
	}
	slog.Info("Setting saved", "setting", name)

	if !rearm {
		return nil
	}

	if err := s.scheduler.Initialize(ctx); err != nil {
		// Put back the value the armed alarm still runs on
		if restoreErr := s.repo.SaveSetting(context.WithoutCancel(ctx), name, previous); restoreErr != nil {
			slog.Error("Failed to restore setting after re-arm failure",
				"setting", name,
				"error", restoreErr,
			)
		}
		return fmt.Errorf("failed to re-arm autoscan: %w", err)
	}
	return nil
}
