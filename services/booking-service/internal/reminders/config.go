package reminders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

const MaxOffsetHours = 168

// InvalidConfigError lists every problem found in a submitted reminder config.
type InvalidConfigError struct {
	Reasons []string
}

func (e *InvalidConfigError) Error() string {
	return "invalid reminder config: " + strings.Join(e.Reasons, "; ")
}

// NormalizeConfig validates offsets to (0, 168] hours, removes duplicates and sorts them
// descending, and canonicalizes channels.
func NormalizeConfig(cfg model.ReminderConfig) (model.ReminderConfig, error) {
	var reasons []string

	seen := map[int]bool{}
	offsets := make([]int, 0, len(cfg.OffsetsHours))
	for _, h := range cfg.OffsetsHours {
		if h <= 0 || h > MaxOffsetHours {
			reasons = append(reasons, fmt.Sprintf("offset %dh outside (0, %d]", h, MaxOffsetHours))
			continue
		}
		if !seen[h] {
			seen[h] = true
			offsets = append(offsets, h)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(offsets)))

	seenCh := map[model.Channel]bool{}
	channels := make([]model.Channel, 0, len(cfg.Channels))
	for _, c := range cfg.Channels {
		ch, err := model.ParseChannel(string(c))
		if err != nil {
			reasons = append(reasons, err.Error())
			continue
		}
		if !seenCh[ch] {
			seenCh[ch] = true
			channels = append(channels, ch)
		}
	}

	if cfg.Enabled && len(offsets) == 0 && len(reasons) == 0 {
		reasons = append(reasons, "at least one offset is required when reminders are enabled")
	}
	if cfg.Enabled && len(channels) == 0 && len(reasons) == 0 {
		reasons = append(reasons, "at least one channel is required when reminders are enabled")
	}
	if len(reasons) > 0 {
		return model.ReminderConfig{}, &InvalidConfigError{Reasons: reasons}
	}

	cfg.OffsetsHours = offsets
	cfg.Channels = channels
	cfg.Template = strings.TrimSpace(cfg.Template)
	return cfg, nil
}

// LoadConfig returns the stored config or the default one.
func LoadConfig(ctx context.Context, r storage.Reader, professionalID string) (model.ReminderConfig, error) {
	cfg, err := r.GetReminderConfig(ctx, professionalID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.DefaultReminderConfig(professionalID), nil
	}
	if err != nil {
		return model.ReminderConfig{}, err
	}
	return cfg, nil
}

type ConfigService struct {
	store      storage.Store
	dispatcher *Dispatcher
}

func NewConfigService(store storage.Store, dispatcher *Dispatcher) *ConfigService {
	return &ConfigService{store: store, dispatcher: dispatcher}
}

func (s *ConfigService) GetReminderConfig(ctx context.Context, professionalID string) (model.ReminderConfig, error) {
	return LoadConfig(ctx, s.store, professionalID)
}

// SetReminderConfig replaces the professional's config. Jobs already scheduled are kept;
// the new config applies to the next booking or reschedule.
func (s *ConfigService) SetReminderConfig(ctx context.Context, professionalID string, cfg model.ReminderConfig) (model.ReminderConfig, error) {
	cfg.ProfessionalID = professionalID
	cfg, err := NormalizeConfig(cfg)
	if err != nil {
		return model.ReminderConfig{}, err
	}
	if err := s.store.InTx(ctx, func(tx storage.Tx) error {
		return tx.PutReminderConfig(ctx, cfg)
	}); err != nil {
		return model.ReminderConfig{}, err
	}
	return cfg, nil
}

// ProcessPending runs one dispatcher pass.
func (s *ConfigService) ProcessPending(ctx context.Context) (int, error) {
	if s.dispatcher == nil {
		return 0, errors.New("reminder dispatcher not configured")
	}
	return s.dispatcher.DispatchDue(ctx)
}
