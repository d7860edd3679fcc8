package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

var (
	ErrRecordNotFound   = errors.New("record_not_found")
	ErrInvalidRecord    = errors.New("invalid_record")
	ErrDuplicateRecord  = errors.New("duplicate_record")
	ErrStoreUnavailable = errors.New("record_store_unavailable")
)

// Record is a schemaless document in a physical collection.
type Record struct {
	ID     string
	Fields map[string]any
}

// String returns the named field as a string, or "" when absent or not a string.
func (r *Record) String(field string) string {
	if r == nil {
		return ""
	}
	switch v := r.Fields[field].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Backend is a document store capable of serving every tenant collection.
type Backend interface {
	Kind() tenantdomain.RecordBackend
	Get(ctx context.Context, collection, id string) (*Record, error)
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Query(ctx context.Context, collection, field string, value any) ([]Record, error)
}

type serverTimestamp struct{}

// ServerTime marks a field whose value must be assigned by the store's clock.
// Backends replace it before writing; the custom HTTP backend forwards it as
// the {".sv":"timestamp"} placeholder.
var ServerTime any = serverTimestamp{}

func (serverTimestamp) MarshalJSON() ([]byte, error) {
	return []byte(`{".sv":"timestamp"}`), nil
}

// IsServerTime reports whether v is the ServerTime sentinel.
func IsServerTime(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// ResolveServerTime returns a copy of fields with every ServerTime sentinel
// replaced by now. Nested maps are not inspected.
func ResolveServerTime(fields map[string]any, now string) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsServerTime(v) {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

// HasServerTime reports whether any field carries the ServerTime sentinel.
func HasServerTime(fields map[string]any) bool {
	for _, v := range fields {
		if IsServerTime(v) {
			return true
		}
	}
	return false
}

// PersistenceError wraps a backend failure with the operation that hit it.
type PersistenceError struct {
	Backend    tenantdomain.RecordBackend
	Op         string
	Collection string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence_error: %s %s on %s: %v", e.Backend, e.Op, e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FieldEquals compares a decoded document value with a query value. Values
// read back from JSON lose their Go type, so comparison is on the printed form.
func FieldEquals(docValue, want any) bool {
	if docValue == nil || want == nil {
		return docValue == want
	}
	return fmt.Sprint(docValue) == fmt.Sprint(want)
}

// FormatServerTime renders a store clock reading the way every backend writes it.
func FormatServerTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FieldTenantID holds the owning tenant on every record this service writes.
const FieldTenantID = "tenantId"

// Collection is a logical collection name; tenants map it to a physical one.
type Collection string

const (
	CollectionOrders        Collection = "orders"
	CollectionConsultations Collection = "consultations"
	CollectionPayments      Collection = "payments"
	CollectionUsers         Collection = "users"
)

// Physical resolves a logical collection through the tenant mapping, falling
// back to the logical name when the mapping is blank.
func (c Collection) Physical(m tenantdomain.Collections) string {
	var name string
	switch c {
	case CollectionOrders:
		name = m.Orders
	case CollectionConsultations:
		name = m.Consultations
	case CollectionPayments:
		name = m.Payments
	case CollectionUsers:
		name = m.Users
	}
	if name == "" {
		return string(c)
	}
	return name
}
