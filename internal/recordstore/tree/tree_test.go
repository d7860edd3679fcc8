package tree

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/payrelay/internal/recordstore/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBackend(t *testing.T) (*Backend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(client, node), mr
}

func seed(t *testing.T, mr *miniredis.Miniredis, collection, id, doc string) {
	t.Helper()
	require.NoError(t, mr.Set(defaultPrefix+":rec:"+collection+":"+id, doc))
	_, err := mr.SAdd(defaultPrefix+":idx:"+collection, id)
	require.NoError(t, err)
}

func TestNewWithoutClientIsNil(t *testing.T) {
	assert.Nil(t, New(nil, nil))
}

func TestInsertGetAndServerTime(t *testing.T) {
	ctx := context.Background()
	backend, mr := setupBackend(t)
	mr.SetTime(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	id, err := backend.Insert(ctx, "payments", map[string]any{
		"paymentId": "pay_1",
		"amount":    50000,
		"createdAt": domain.ServerTime,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := backend.Get(ctx, "payments", id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "pay_1", rec.Fields["paymentId"])
	assert.EqualValues(t, 50000, rec.Fields["amount"])
	assert.Equal(t, "2026-03-01T10:00:00Z", rec.Fields["createdAt"])
}

func TestGetMissingReturnsNil(t *testing.T) {
	backend, _ := setupBackend(t)

	rec, err := backend.Get(context.Background(), "consultations", "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpdateMergesOnlyNamedFields(t *testing.T) {
	ctx := context.Background()
	backend, mr := setupBackend(t)
	seed(t, mr, "consultations", "c1", `{"patientId":"u1","doctorId":"d1","paymentStatus":"pending"}`)

	err := backend.Update(ctx, "consultations", "c1", map[string]any{
		"paymentStatus": "paid",
		"paymentId":     "pay_9",
	})
	require.NoError(t, err)

	rec, err := backend.Get(ctx, "consultations", "c1")
	require.NoError(t, err)
	assert.Equal(t, "paid", rec.Fields["paymentStatus"])
	assert.Equal(t, "pay_9", rec.Fields["paymentId"])
	assert.Equal(t, "u1", rec.Fields["patientId"])
	assert.Equal(t, "d1", rec.Fields["doctorId"])
}

func TestUpdateMissingRecord(t *testing.T) {
	backend, _ := setupBackend(t)

	err := backend.Update(context.Background(), "consultations", "missing", map[string]any{"paymentStatus": "paid"})
	assert.True(t, errors.Is(err, domain.ErrRecordNotFound))
}

func TestQueryFiltersAndSorts(t *testing.T) {
	backend, mr := setupBackend(t)
	seed(t, mr, "users", "u2", `{"role":"admin"}`)
	seed(t, mr, "users", "u1", `{"role":"admin"}`)
	seed(t, mr, "users", "u3", `{"role":"patient"}`)

	admins, err := backend.Query(context.Background(), "users", "role", "admin")
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, "u1", admins[0].ID)
	assert.Equal(t, "u2", admins[1].ID)
}

func TestBackendErrorsSurface(t *testing.T) {
	backend, mr := setupBackend(t)
	mr.Close()

	_, err := backend.Insert(context.Background(), "payments", map[string]any{"paymentId": "pay_1"})
	assert.Error(t, err)
}

func TestQuerySeesInsertedRecords(t *testing.T) {
	ctx := context.Background()
	backend, _ := setupBackend(t)

	id, err := backend.Insert(ctx, "orders", map[string]any{"externalOrderId": "order_1", "status": "created"})
	require.NoError(t, err)
	_, err = backend.Insert(ctx, "orders", map[string]any{"externalOrderId": "order_2", "status": "created"})
	require.NoError(t, err)

	found, err := backend.Query(ctx, "orders", "externalOrderId", "order_1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].ID)
}

func TestConcurrentUpdatesToDifferentRecords(t *testing.T) {
	ctx := context.Background()
	backend, _ := setupBackend(t)

	const n = 40
	ids := make([]string, n)
	for i := range ids {
		id, err := backend.Insert(ctx, "consultations", map[string]any{"paymentStatus": "pending", "seq": i})
		require.NoError(t, err)
		ids[i] = id
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = backend.Update(ctx, "consultations", id, map[string]any{"paymentStatus": "paid"})
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "update %d", i)
	}
	paid, err := backend.Query(ctx, "consultations", "paymentStatus", "paid")
	require.NoError(t, err)
	assert.Len(t, paid, n)
}

func TestConcurrentUpdatesToSameRecordKeepAllFields(t *testing.T) {
	ctx := context.Background()
	backend, _ := setupBackend(t)

	id, err := backend.Insert(ctx, "consultations", map[string]any{"patientId": "u1"})
	require.NoError(t, err)

	const writers = 4
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = backend.Update(ctx, "consultations", id, map[string]any{fmt.Sprintf("field%d", i): i})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	rec, err := backend.Get(ctx, "consultations", id)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.Fields["patientId"])
	for i := 0; i < writers; i++ {
		assert.EqualValues(t, i, rec.Fields[fmt.Sprintf("field%d", i)])
	}
}
