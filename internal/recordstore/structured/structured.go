// Package structured stores records in a single SQL table keyed by
// (collection, id) with the document in a JSON column.
package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payrelay/internal/recordstore/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
	"github.com/smallbiznis/payrelay/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Backend struct {
	db    *gorm.DB
	genID *snowflake.Node
}

// New returns nil when conn is nil so the router treats the backend as unconfigured.
func New(conn *gorm.DB, genID *snowflake.Node) *Backend {
	if conn == nil {
		return nil
	}
	return &Backend{db: conn, genID: genID}
}

func (b *Backend) Kind() tenantdomain.RecordBackend {
	return tenantdomain.BackendStructured
}

func (b *Backend) Get(ctx context.Context, collection, id string) (*domain.Record, error) {
	var row RecordRow
	err := b.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toRecord(row)
}

func (b *Backend) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", domain.ErrInvalidRecord
	}

	id := b.genID.Generate().String()
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now, err := serverNow(tx)
		if err != nil {
			return err
		}
		data, err := json.Marshal(domain.ResolveServerTime(fields, domain.FormatServerTime(now)))
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
		}
		return tx.Create(&RecordRow{
			Collection: collection,
			ID:         id,
			Data:       datatypes.JSON(data),
			CreatedAt:  now,
			UpdatedAt:  now,
		}).Error
	})
	if db.IsDuplicateKeyErr(err) {
		return "", domain.ErrDuplicateRecord
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// Update merges fields into the stored document under a row lock. The JSON
// merge happens in Go because the JSON operators differ per dialect.
func (b *Backend) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row RecordRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collection = ? AND id = ?", collection, id).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRecordNotFound
		}
		if err != nil {
			return err
		}

		doc, err := decode(row.Data)
		if err != nil {
			return err
		}
		now, err := serverNow(tx)
		if err != nil {
			return err
		}
		for k, v := range domain.ResolveServerTime(fields, domain.FormatServerTime(now)) {
			doc[k] = v
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		return tx.Model(&RecordRow{}).
			Where("collection = ? AND id = ?", collection, id).
			Updates(map[string]any{
				"data":       datatypes.JSON(data),
				"updated_at": now,
			}).Error
	})
}

// Query filters a collection in Go; collections queried this way (users,
// orders by gateway id) stay small per tenant.
func (b *Backend) Query(ctx context.Context, collection, field string, value any) ([]domain.Record, error) {
	var rows []RecordRow
	if err := b.db.WithContext(ctx).Where("collection = ?", collection).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Record, 0)
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			continue
		}
		if domain.FieldEquals(rec.Fields[field], value) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// serverNow reads the database clock. Drivers return either time.Time or
// text for CURRENT_TIMESTAMP; scanning into a string accepts both.
func serverNow(tx *gorm.DB) (time.Time, error) {
	var raw string
	if err := tx.Raw("SELECT CURRENT_TIMESTAMP").Scan(&raw).Error; err != nil {
		return time.Time{}, fmt.Errorf("read server time: %w", err)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("read server time: unrecognised value %q", raw)
}

func toRecord(row RecordRow) (*domain.Record, error) {
	fields, err := decode(row.Data)
	if err != nil {
		return nil, err
	}
	return &domain.Record{ID: row.ID, Fields: fields}, nil
}

func decode(data datatypes.JSON) (map[string]any, error) {
	doc := map[string]any{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	return doc, nil
}

var _ domain.Backend = (*Backend)(nil)
