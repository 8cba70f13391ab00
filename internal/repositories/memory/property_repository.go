package memory

import (
	"context"
	"sync"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/repositories/interfaces"
)

type propertyRepository struct {
	mu         sync.RWMutex
	properties map[string]*models.Property
}

func NewPropertyRepository(seed ...*models.Property) interfaces.PropertyRepository {
	repo := &propertyRepository{properties: make(map[string]*models.Property, len(seed))}
	for _, p := range seed {
		copied := *p
		repo.properties[p.ID] = &copied
	}
	return repo
}

func (r *propertyRepository) GetByID(ctx context.Context, id string) (*models.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.properties[id]
	if !ok {
		return nil, interfaces.ErrPropertyNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *propertyRepository) Upsert(ctx context.Context, property *models.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *property
	r.properties[property.ID] = &copied
	return nil
}

func (r *propertyRepository) BasePrice(ctx context.Context, propertyID string, date time.Time) (models.Money, error) {
	p, err := r.GetByID(ctx, propertyID)
	if err != nil {
		return models.Money{}, err
	}
	return models.NewMoney(p.BasePriceOn(date), p.Currency), nil
}
