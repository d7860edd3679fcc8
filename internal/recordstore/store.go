package recordstore

import (
	"context"
	"errors"

	"github.com/smallbiznis/payrelay/internal/recordstore/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
	"go.uber.org/zap"
)

// Store is a tenant's view of its record backend with logical collection names.
// A Store without a backend accepts every call and does nothing.
type Store struct {
	backend     domain.Backend
	tenantID    string
	collections tenantdomain.Collections
	log         *zap.Logger
}

// Kind reports the selected backend, or "" when persistence is disabled.
func (s *Store) Kind() tenantdomain.RecordBackend {
	if s.backend == nil {
		return ""
	}
	return s.backend.Kind()
}

func (s *Store) Get(ctx context.Context, c domain.Collection, id string) (*domain.Record, error) {
	if s.backend == nil || id == "" {
		return nil, nil
	}
	rec, err := s.backend.Get(ctx, c.Physical(s.collections), id)
	if err != nil {
		return nil, s.wrap("get", c, err)
	}
	return rec, nil
}

func (s *Store) Insert(ctx context.Context, c domain.Collection, fields map[string]any) (string, error) {
	if s.backend == nil {
		s.log.Debug("persistence disabled, insert skipped", zap.String("collection", string(c)))
		return "", nil
	}
	id, err := s.backend.Insert(ctx, c.Physical(s.collections), fields)
	if err != nil {
		return "", s.wrap("insert", c, err)
	}
	return id, nil
}

// Update merges fields into an existing record. A missing record is logged
// and treated as success; the caller has nothing to roll back.
func (s *Store) Update(ctx context.Context, c domain.Collection, id string, fields map[string]any) error {
	if s.backend == nil {
		s.log.Debug("persistence disabled, update skipped", zap.String("collection", string(c)))
		return nil
	}
	err := s.backend.Update(ctx, c.Physical(s.collections), id, fields)
	if errors.Is(err, domain.ErrRecordNotFound) {
		s.log.Warn("record not found, update skipped",
			zap.String("collection", string(c)),
			zap.String("record_id", id),
		)
		return nil
	}
	if err != nil {
		return s.wrap("update", c, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, c domain.Collection, field string, value any) ([]domain.Record, error) {
	if s.backend == nil {
		return nil, nil
	}
	records, err := s.backend.Query(ctx, c.Physical(s.collections), field, value)
	if err != nil {
		return nil, s.wrap("query", c, err)
	}
	return records, nil
}

func (s *Store) wrap(op string, c domain.Collection, err error) error {
	return &domain.PersistenceError{
		Backend:    s.backend.Kind(),
		Op:         op,
		Collection: c.Physical(s.collections),
		Err:        err,
	}
}
