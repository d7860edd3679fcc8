// Package customhttp forwards record operations to a tenant-provided HTTP
// document API.
package customhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/smallbiznis/payrelay/internal/recordstore/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

var errRequestFailed = errors.New("record_api_request_failed")

type Backend struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

// New returns nil when the tenant has no base URL configured.
func New(cfg tenantdomain.CustomStoreConfig, client *http.Client) *Backend {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Backend{baseURL: base, headers: cfg.Headers, client: client}
}

func (b *Backend) Kind() tenantdomain.RecordBackend {
	return tenantdomain.BackendCustom
}

func (b *Backend) Get(ctx context.Context, collection, id string) (*domain.Record, error) {
	var doc map[string]any
	status, err := b.do(ctx, http.MethodGet, b.path(collection, id), nil, &doc)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return &domain.Record{ID: id, Fields: doc}, nil
}

type insertResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (b *Backend) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", domain.ErrInvalidRecord
	}
	var resp insertResponse
	if _, err := b.do(ctx, http.MethodPost, b.path(collection, ""), fields, &resp); err != nil {
		return "", err
	}
	id := strings.TrimSpace(resp.ID)
	if id == "" {
		id = strings.TrimSpace(resp.Name)
	}
	if id == "" {
		return "", fmt.Errorf("%w: response carried no id", errRequestFailed)
	}
	return id, nil
}

func (b *Backend) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	status, err := b.do(ctx, http.MethodPatch, b.path(collection, id), fields, nil)
	if status == http.StatusNotFound {
		return domain.ErrRecordNotFound
	}
	return err
}

func (b *Backend) Query(ctx context.Context, collection, field string, value any) ([]domain.Record, error) {
	query := url.Values{}
	query.Set("field", field)
	query.Set("value", fmt.Sprint(value))

	var raw json.RawMessage
	if _, err := b.do(ctx, http.MethodGet, b.path(collection, "")+"?"+query.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	records, err := decodeList(raw)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if domain.FieldEquals(rec.Fields[field], value) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// decodeList accepts either an array of documents carrying "id" or an object keyed by id.
func decodeList(raw json.RawMessage) ([]domain.Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var docs []map[string]any
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
		}
		out := make([]domain.Record, 0, len(docs))
		for _, doc := range docs {
			id, _ := doc["id"].(string)
			out = append(out, domain.Record{ID: id, Fields: doc})
		}
		return out, nil
	}

	var byID map[string]map[string]any
	if err := json.Unmarshal(trimmed, &byID); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	out := make([]domain.Record, 0, len(byID))
	for id, doc := range byID {
		out = append(out, domain.Record{ID: id, Fields: doc})
	}
	return out, nil
}

func (b *Backend) path(collection, id string) string {
	p := b.baseURL + "/" + url.PathEscape(collection)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// do sends one request. ServerTime sentinels serialise as the server
// timestamp placeholder, so the remote store assigns the time.
func (b *Backend) do(ctx context.Context, method, target string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("%w: %s %s returned %d", errRequestFailed, method, collectionOf(target, b.baseURL), resp.StatusCode)
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, fmt.Errorf("%w: %v", errRequestFailed, err)
	}
	return resp.StatusCode, nil
}

// collectionOf strips the base URL so errors never echo credentials embedded in it.
func collectionOf(target, base string) string {
	rest := strings.TrimPrefix(target, base)
	if idx := strings.IndexAny(rest, "?"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}

var _ domain.Backend = (*Backend)(nil)
