package structured

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/payrelay/internal/recordstore/domain"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&RecordRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func setupBackend(t *testing.T) (*Backend, *gorm.DB) {
	t.Helper()
	conn := setupTestDB(t)
	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return New(conn, node), conn
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	backend, _ := setupBackend(t)

	id, err := backend.Insert(ctx, "payments", map[string]any{
		"paymentId": "pay_1",
		"status":    "completed",
		"createdAt": domain.ServerTime,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec, err := backend.Get(ctx, "payments", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record")
	}
	if rec.Fields["paymentId"] != "pay_1" || rec.Fields["status"] != "completed" {
		t.Fatalf("unexpected fields %v", rec.Fields)
	}
	createdAt, ok := rec.Fields["createdAt"].(string)
	if !ok {
		t.Fatalf("expected createdAt to be resolved to a string, got %T", rec.Fields["createdAt"])
	}
	if _, err := time.Parse(time.RFC3339Nano, createdAt); err != nil {
		t.Fatalf("expected RFC3339 createdAt, got %q", createdAt)
	}
}

func TestGetMissingInOtherCollection(t *testing.T) {
	ctx := context.Background()
	backend, _ := setupBackend(t)

	id, err := backend.Insert(ctx, "orders", map[string]any{"externalOrderId": "order_1"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec, err := backend.Get(ctx, "payments", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected collections to be isolated")
	}
}

func TestUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	backend, conn := setupBackend(t)

	if err := conn.Create(&RecordRow{
		Collection: "consultations",
		ID:         "c1",
		Data:       []byte(`{"patientId":"u1","doctorId":"d1","notes":"keep"}`),
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := backend.Update(ctx, "consultations", "c1", map[string]any{
		"paymentStatus": "paid",
		"paidAt":        domain.ServerTime,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	rec, err := backend.Get(ctx, "consultations", "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Fields["paymentStatus"] != "paid" {
		t.Fatalf("expected paid, got %v", rec.Fields["paymentStatus"])
	}
	if rec.Fields["notes"] != "keep" || rec.Fields["patientId"] != "u1" {
		t.Fatalf("expected untouched fields to survive, got %v", rec.Fields)
	}
	if _, ok := rec.Fields["paidAt"].(string); !ok {
		t.Fatalf("expected paidAt resolved, got %T", rec.Fields["paidAt"])
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	backend, _ := setupBackend(t)

	err := backend.Update(context.Background(), "consultations", "missing", map[string]any{"paymentStatus": "paid"})
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	backend, _ := setupBackend(t)

	for _, role := range []string{"admin", "patient", "admin"} {
		if _, err := backend.Insert(ctx, "users", map[string]any{"role": role}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	admins, err := backend.Query(ctx, "users", "role", "admin")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(admins) != 2 {
		t.Fatalf("expected 2 admins, got %d", len(admins))
	}
	if admins[0].ID > admins[1].ID {
		t.Fatalf("expected results sorted by id")
	}
}

func TestNewWithoutConnIsNil(t *testing.T) {
	if New(nil, nil) != nil {
		t.Fatalf("expected nil backend without a connection")
	}
}
