package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-logr/logr"
)

// testStore creates a Store backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testStore(t *testing.T, handler http.Handler) (*Store, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient: &http.Client{
			Transport: &http.Transport{},
		},
	})

	return &Store{s3: client, bucket: "engine-snapshots", log: logr.Discard()}, server
}

// xmlResponse is a helper to write S3-style XML responses.
func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func writeSnapshotFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	s, err := New(Config{
		Endpoint:  "https://s3.example.com",
		Region:    "us-east-1",
		Bucket:    "engine-snapshots",
		AccessKey: "test-key",
		SecretKey: "test-secret",
	}, logr.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == nil {
		t.Fatal("expected non-nil store")
	}
	if s.bucket != "engine-snapshots" {
		t.Errorf("expected bucket engine-snapshots, got %s", s.bucket)
	}
}

func TestNew_MissingBucket(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Region: "us-east-1"}, logr.Discard())
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func TestEnsureBucket_CreatesBucket(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "PUT" {
			xmlResponse(w, 200, `<?xml version="1.0" encoding="UTF-8"?><CreateBucketResult/>`)
			return
		}
		xmlResponse(w, 404, "")
	})

	s, server := testStore(t, handler)
	defer server.Close()

	if err := s.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureBucket_AlreadyOwned(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(w, 409, `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>BucketAlreadyOwnedByYou</Code>
  <Message>Your previous request to create the named bucket succeeded and you already own it.</Message>
  <BucketName>engine-snapshots</BucketName>
</Error>`)
	})

	s, server := testStore(t, handler)
	defer server.Close()

	if err := s.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("expected nil error for already owned bucket, got: %v", err)
	}
}

func TestEnsureBucket_AccessDenied(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(w, 403, `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>AccessDenied</Code>
  <Message>Access Denied</Message>
</Error>`)
	})

	s, server := testStore(t, handler)
	defer server.Close()

	err := s.EnsureBucket(context.Background())
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if !strings.Contains(err.Error(), "failed to create bucket engine-snapshots") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestUploadSnapshot(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	puts := map[string][]byte{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "PUT" {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			puts[r.URL.Path] = body
			mu.Unlock()
			w.WriteHeader(200)
			return
		}
		w.WriteHeader(404)
	})

	s, server := testStore(t, handler)
	defer server.Close()

	dir := t.TempDir()
	writeSnapshotFile(t, dir, "persistentvolumeclaims.yaml", "kind: PersistentVolumeClaim")
	writeSnapshotFile(t, dir, "statefulsets.yaml", "kind: StatefulSet")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}

	keys, err := s.UploadSnapshot(context.Background(), "logging/loki/rev-3", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}

	mu.Lock()
	defer mu.Unlock()
	body, ok := puts["/engine-snapshots/logging/loki/rev-3/persistentvolumeclaims.yaml"]
	if !ok {
		t.Fatalf("expected PVC object upload, got paths %v", puts)
	}
	if !bytes.Equal(body, []byte("kind: PersistentVolumeClaim")) {
		t.Errorf("unexpected body %q", body)
	}
	if _, ok := puts["/engine-snapshots/logging/loki/rev-3/statefulsets.yaml"]; !ok {
		t.Error("expected statefulsets object upload")
	}
}

func TestDownloadSnapshot(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var listPrefix string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Query().Get("list-type") == "2":
			mu.Lock()
			listPrefix = r.URL.Query().Get("prefix")
			mu.Unlock()
			xmlResponse(w, 200, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>engine-snapshots</Name>
  <Prefix>logging/loki/rev-3</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>logging/loki/rev-3/persistentvolumeclaims.yaml</Key>
    <Size>27</Size>
  </Contents>
  <Contents>
    <Key>logging/loki/rev-3/statefulsets.yaml</Key>
    <Size>17</Size>
  </Contents>
</ListBucketResult>`)
		case r.Method == "GET" && strings.HasSuffix(r.URL.Path, "/persistentvolumeclaims.yaml"):
			_, _ = w.Write([]byte("kind: PersistentVolumeClaim"))
		case r.Method == "GET" && strings.HasSuffix(r.URL.Path, "/statefulsets.yaml"):
			_, _ = w.Write([]byte("kind: StatefulSet"))
		default:
			w.WriteHeader(404)
		}
	})

	s, server := testStore(t, handler)
	defer server.Close()

	dir := t.TempDir()
	files, err := s.DownloadSnapshot(context.Background(), "logging/loki/rev-3", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}

	mu.Lock()
	if listPrefix != "logging/loki/rev-3" {
		t.Errorf("expected list prefix logging/loki/rev-3, got %q", listPrefix)
	}
	mu.Unlock()

	data, err := os.ReadFile(filepath.Join(dir, "persistentvolumeclaims.yaml"))
	if err != nil {
		t.Fatalf("expected PVC file: %v", err)
	}
	if string(data) != "kind: PersistentVolumeClaim" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestDownloadSnapshot_NothingStored(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(w, 200, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>engine-snapshots</Name>
  <KeyCount>0</KeyCount>
  <IsTruncated>false</IsTruncated>
</ListBucketResult>`)
	})

	s, server := testStore(t, handler)
	defer server.Close()

	_, err := s.DownloadSnapshot(context.Background(), "logging/loki/rev-9", t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestDownloadSnapshot_ObjectVanished(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" && r.URL.Query().Get("list-type") == "2" {
			xmlResponse(w, 200, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>engine-snapshots</Name>
  <KeyCount>1</KeyCount>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>logging/loki/rev-3/persistentvolumeclaims.yaml</Key>
    <Size>27</Size>
  </Contents>
</ListBucketResult>`)
			return
		}
		xmlResponse(w, 404, `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>NoSuchKey</Code>
  <Message>The specified key does not exist.</Message>
</Error>`)
	})

	s, server := testStore(t, handler)
	defer server.Close()

	_, err := s.DownloadSnapshot(context.Background(), "logging/loki/rev-3", t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestDeleteSnapshot(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var deleted []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Query().Get("list-type") == "2":
			xmlResponse(w, 200, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>engine-snapshots</Name>
  <KeyCount>2</KeyCount>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>logging/loki/rev-3/persistentvolumeclaims.yaml</Key>
    <Size>27</Size>
  </Contents>
  <Contents>
    <Key>logging/loki/rev-3/statefulsets.yaml</Key>
    <Size>17</Size>
  </Contents>
</ListBucketResult>`)
		case r.Method == "DELETE":
			mu.Lock()
			deleted = append(deleted, r.URL.Path)
			mu.Unlock()
			w.WriteHeader(204)
		default:
			w.WriteHeader(404)
		}
	})

	s, server := testStore(t, handler)
	defer server.Close()

	if err := s.DeleteSnapshot(context.Background(), "logging/loki/rev-3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(deleted) != 2 {
		t.Fatalf("expected 2 deletes, got %v", deleted)
	}
}
