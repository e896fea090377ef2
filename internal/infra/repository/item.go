package repository

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/totegamma/lostfound/internal/domain"
	"github.com/totegamma/lostfound/internal/infra/registry"
)

// ItemRepository routes registry operations to the store of each office.
type ItemRepository struct {
	stores map[string]*registry.Store
}

// NewItemRepository opens one registry store per office, located by pathOf.
func NewItemRepository(offices []string, pathOf func(office string) string, opts registry.Options) *ItemRepository {
	stores := make(map[string]*registry.Store, len(offices))
	for _, office := range offices {
		stores[office] = registry.Open(pathOf(office), opts)
	}
	return &ItemRepository{stores: stores}
}

func (r *ItemRepository) Offices() []string {
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *ItemRepository) store(office string) (*registry.Store, error) {
	s, ok := r.stores[office]
	if !ok {
		return nil, domain.NotFoundError{Resource: "office"}
	}
	return s, nil
}

func (r *ItemRepository) Append(ctx context.Context, office string, rec domain.Record) error {
	s, err := r.store(office)
	if err != nil {
		return err
	}
	return s.AppendOne(ctx, rec)
}

func (r *ItemRepository) List(ctx context.Context, office string) ([]domain.Record, error) {
	s, err := r.store(office)
	if err != nil {
		return nil, err
	}
	return s.ReadAll(ctx)
}

func (r *ItemRepository) Get(ctx context.Context, office, id string) (domain.Record, error) {
	s, err := r.store(office)
	if err != nil {
		return domain.Record{}, err
	}

	rec, found, err := s.Find(ctx, id)
	if err != nil {
		return domain.Record{}, err
	}
	if !found {
		return domain.Record{}, domain.NotFoundError{Resource: "item"}
	}
	return rec, nil
}

// MarkReturned sets the returned flag and reports whether it was already set.
func (r *ItemRepository) MarkReturned(ctx context.Context, office, id string) (domain.Record, bool, error) {
	s, err := r.store(office)
	if err != nil {
		return domain.Record{}, false, err
	}

	var (
		updated         domain.Record
		alreadyReturned bool
	)
	found, err := s.Update(ctx, id, func(rec *domain.Record) error {
		alreadyReturned = rec.Returned
		rec.Returned = true
		updated = *rec
		return nil
	})
	if err != nil {
		return domain.Record{}, false, errors.Wrapf(err, "mark %s returned", id)
	}
	if !found {
		return domain.Record{}, false, domain.NotFoundError{Resource: "item"}
	}
	return updated, alreadyReturned, nil
}

// Check parses the office registry strictly and returns its record count.
func (r *ItemRepository) Check(ctx context.Context, office string) (int, error) {
	s, err := r.store(office)
	if err != nil {
		return 0, err
	}
	return s.Check(ctx)
}
