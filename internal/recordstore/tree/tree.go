// Package tree stores records as JSON documents in Redis, one key per
// collection/id node, mirroring a realtime-database style tree. Each
// collection keeps an id index set for queries.
package tree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/payrelay/internal/recordstore/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

const (
	defaultPrefix    = "payrelay"
	maxUpdateRetries = 10
)

type Backend struct {
	client *redis.Client
	genID  *snowflake.Node
	prefix string
}

// New returns nil when client is nil so the router treats the backend as unconfigured.
func New(client *redis.Client, genID *snowflake.Node) *Backend {
	if client == nil {
		return nil
	}
	return &Backend{client: client, genID: genID, prefix: defaultPrefix}
}

func (b *Backend) Kind() tenantdomain.RecordBackend {
	return tenantdomain.BackendTree
}

func (b *Backend) recordKey(collection, id string) string {
	return b.prefix + ":rec:" + collection + ":" + id
}

func (b *Backend) indexKey(collection string) string {
	return b.prefix + ":idx:" + collection
}

func (b *Backend) Get(ctx context.Context, collection, id string) (*domain.Record, error) {
	raw, err := b.client.Get(ctx, b.recordKey(collection, id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fields, err := decode(raw)
	if err != nil {
		return nil, err
	}
	return &domain.Record{ID: id, Fields: fields}, nil
}

func (b *Backend) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", domain.ErrInvalidRecord
	}
	resolved, err := b.resolve(ctx, fields)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}

	id := b.genID.Generate().String()
	created, err := b.client.SetNX(ctx, b.recordKey(collection, id), payload, 0).Result()
	if err != nil {
		return "", err
	}
	if !created {
		return "", domain.ErrDuplicateRecord
	}
	if err := b.client.SAdd(ctx, b.indexKey(collection), id).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// Update merges fields into the stored document. Only the record's own key is
// watched, so writers to other records in the collection never conflict.
func (b *Backend) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	key := b.recordKey(collection, id)
	resolved, err := b.resolve(ctx, fields)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return domain.ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		doc, err := decode(raw)
		if err != nil {
			return err
		}
		for k, v := range resolved {
			doc[k] = v
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err = b.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (b *Backend) Query(ctx context.Context, collection, field string, value any) ([]domain.Record, error) {
	ids, err := b.client.SMembers(ctx, b.indexKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0)
	if len(ids) == 0 {
		return out, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.recordKey(collection, id)
	}
	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		doc, err := decode(raw)
		if err != nil {
			continue
		}
		if domain.FieldEquals(doc[field], value) {
			out = append(out, domain.Record{ID: ids[i], Fields: doc})
		}
	}
	return out, nil
}

// resolve substitutes ServerTime with the Redis server clock.
func (b *Backend) resolve(ctx context.Context, fields map[string]any) (map[string]any, error) {
	if !domain.HasServerTime(fields) {
		return fields, nil
	}
	now, err := b.client.Time(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("redis time: %w", err)
	}
	return domain.ResolveServerTime(fields, domain.FormatServerTime(now)), nil
}

func decode(raw string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

var _ domain.Backend = (*Backend)(nil)
