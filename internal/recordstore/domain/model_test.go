package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestServerTimeMarshalsAsPlaceholder(t *testing.T) {
	b, err := json.Marshal(map[string]any{"paidAt": ServerTime})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"paidAt":{".sv":"timestamp"}}` {
		t.Fatalf("unexpected payload %s", b)
	}
}

func TestResolveServerTimeDoesNotMutateInput(t *testing.T) {
	fields := map[string]any{"paidAt": ServerTime, "paymentStatus": "paid"}

	resolved := ResolveServerTime(fields, "2026-01-02T03:04:05Z")

	if resolved["paidAt"] != "2026-01-02T03:04:05Z" || resolved["paymentStatus"] != "paid" {
		t.Fatalf("unexpected resolved fields %v", resolved)
	}
	if !IsServerTime(fields["paidAt"]) {
		t.Fatalf("expected input map untouched")
	}
	if HasServerTime(resolved) {
		t.Fatalf("expected no sentinel after resolve")
	}
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	err := &PersistenceError{Backend: "tree", Op: "update", Collection: "consultations", Err: ErrStoreUnavailable}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected errors.Is to see wrapped cause")
	}
}
