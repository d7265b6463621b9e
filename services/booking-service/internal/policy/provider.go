package policy

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type Provider interface {
	ReschedulePolicy(ctx context.Context, professionalID string) (model.ReschedulePolicy, error)
}

type staticProvider struct {
	policy model.ReschedulePolicy
}

func NewStaticProvider(p model.ReschedulePolicy) Provider {
	return &staticProvider{policy: p}
}

func (p *staticProvider) ReschedulePolicy(_ context.Context, professionalID string) (model.ReschedulePolicy, error) {
	out := p.policy
	out.ProfessionalID = professionalID
	return out, nil
}

// PolicyReader is the read side of the store used for per-professional overrides.
type PolicyReader interface {
	GetReschedulePolicy(ctx context.Context, professionalID string) (model.ReschedulePolicy, error)
}

type storeProvider struct {
	reader   PolicyReader
	fallback Provider
}

// NewStoreProvider reads stored policies and falls back to the static default when none exists.
func NewStoreProvider(reader PolicyReader, fallback model.ReschedulePolicy) Provider {
	return &storeProvider{reader: reader, fallback: NewStaticProvider(fallback)}
}

func (p *storeProvider) ReschedulePolicy(ctx context.Context, professionalID string) (model.ReschedulePolicy, error) {
	pol, err := p.reader.GetReschedulePolicy(ctx, professionalID)
	if errors.Is(err, storage.ErrNotFound) {
		return p.fallback.ReschedulePolicy(ctx, professionalID)
	}
	if err != nil {
		return model.ReschedulePolicy{}, err
	}
	if pol.FarFutureDays <= 0 {
		pol.FarFutureDays = model.DefaultReschedulePolicy().FarFutureDays
	}
	return pol, nil
}

// BufferSource adapts a Provider to the conflict detector's buffer lookup.
type BufferSource struct {
	Provider Provider
}

func (b BufferSource) Buffer(ctx context.Context, professionalID string) (time.Duration, error) {
	pol, err := b.Provider.ReschedulePolicy(ctx, professionalID)
	if err != nil {
		return 0, err
	}
	return pol.Buffer(), nil
}
