package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	appconfig "github.com/recordstore/recordstore/internal/config"
	"github.com/recordstore/recordstore/internal/storage"
)

// ---------------------------------------------------------------------------
// New() — constructor validation (no AWS connection required)
// ---------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  appconfig.S3StorageConfig
	}{
		{"missing bucket", appconfig.S3StorageConfig{Region: "us-east-1"}},
		{"missing region", appconfig.S3StorageConfig{Bucket: "records"}},
		{"static without keys", appconfig.S3StorageConfig{Bucket: "records", Region: "us-east-1", AuthMethod: "static"}},
		{"assume_role without role", appconfig.S3StorageConfig{Bucket: "records", Region: "us-east-1", AuthMethod: "assume_role"}},
		{"unsupported auth", appconfig.S3StorageConfig{Bucket: "records", Region: "us-east-1", AuthMethod: "oidc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&tt.cfg); err == nil {
				t.Error("New() = nil error, want error")
			}
		})
	}
}

func TestNew_AssumeRole_WithExternalID(t *testing.T) {
	// AssumeRole is lazy, so construction makes no network call
	cfg := &appconfig.S3StorageConfig{
		Bucket:     "records",
		Region:     "us-east-1",
		AuthMethod: "assume_role",
		RoleARN:    "arn:aws:iam::123456789:role/test-role",
		ExternalID: "external-id-123",
	}
	_, _ = New(cfg)
}

// ---------------------------------------------------------------------------
// Mock S3-compatible HTTP server
// ---------------------------------------------------------------------------

type s3MockStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
}

// newS3TestStorage creates an S3Storage backed by a minimal path-style S3 server.
func newS3TestStorage(t *testing.T, prefix string) (*S3Storage, *s3MockStore) {
	t.Helper()

	ms := &s3MockStore{
		objects: map[string][]byte{},
		meta:    map[string]map[string]string{},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/")
		idx := strings.IndexByte(p, '/')
		if idx < 0 {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		key := p[idx+1:]

		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			meta := map[string]string{}
			for hk, hv := range r.Header {
				lk := strings.ToLower(hk)
				if strings.HasPrefix(lk, "x-amz-meta-") && len(hv) > 0 {
					meta[strings.TrimPrefix(lk, "x-amz-meta-")] = hv[0]
				}
			}
			ms.mu.Lock()
			ms.objects[key] = data
			ms.meta[key] = meta
			ms.mu.Unlock()
			w.Header().Set("ETag", `"test-etag"`)
			w.WriteHeader(http.StatusOK)

		case http.MethodGet:
			ms.mu.Lock()
			data, ok := ms.objects[key]
			ms.mu.Unlock()
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)
			w.Write(data)

		case http.MethodHead:
			ms.mu.Lock()
			data, ok := ms.objects[key]
			ms.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			w.WriteHeader(http.StatusOK)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(&appconfig.S3StorageConfig{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Prefix:          prefix,
		AuthMethod:      "static",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		Endpoint:        srv.URL,
	})
	if err != nil {
		t.Fatalf("New() for mock S3: %v", err)
	}
	return s, ms
}

func TestS3_PutGet(t *testing.T) {
	s, ms := newS3TestStorage(t, "")
	ctx := context.Background()

	data := []byte(`{"apiKeys":[]}`)
	result, err := s.Put(ctx, "database.json", data)
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if result.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", result.Size, len(data))
	}

	ms.mu.Lock()
	stored := ms.meta["database.json"]["sha256"]
	ms.mu.Unlock()
	if stored != result.Checksum {
		t.Errorf("sha256 metadata = %q, want %q", stored, result.Checksum)
	}

	got, err := s.Get(ctx, "database.json")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Get() = %q, want %q", got, data)
	}
}

func TestS3_Prefix(t *testing.T) {
	s, ms := newS3TestStorage(t, "recordstore/prod")

	if _, err := s.Put(context.Background(), "database.json", []byte("{}")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	ms.mu.Lock()
	_, ok := ms.objects["recordstore/prod/database.json"]
	ms.mu.Unlock()
	if !ok {
		t.Error("object not stored under the configured prefix")
	}
}

func TestS3_Get_NotFound(t *testing.T) {
	s, _ := newS3TestStorage(t, "")

	_, err := s.Get(context.Background(), "nonexistent.json")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestS3_Exists(t *testing.T) {
	s, _ := newS3TestStorage(t, "")
	ctx := context.Background()

	ok, err := s.Exists(ctx, "doc.json")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if ok {
		t.Error("Exists = true for nonexistent key, want false")
	}

	if _, err := s.Put(ctx, "doc.json", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ok, err = s.Exists(ctx, "doc.json")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if !ok {
		t.Error("Exists = false for existing key, want true")
	}
}
