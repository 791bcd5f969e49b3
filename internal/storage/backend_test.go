package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestBackend(t *testing.T) *LocalBackend {
	t.Helper()
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	backend, err := NewLocalBackend(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("failed to create LocalBackend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend
}

// TestLocalBackend_BasicOperations tests the LocalBackend implementation
func TestLocalBackend_BasicOperations(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	t.Run("Write and Read", func(t *testing.T) {
		testPath := "charts/ex15-bench_results.png"
		testData := []byte("\x89PNG fake")

		if err := backend.Write(ctx, testPath, testData); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		data, err := backend.Read(ctx, testPath)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if string(data) != string(testData) {
			t.Errorf("Read data = %q, want %q", string(data), string(testData))
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		testPath := "results.csv"
		if err := backend.Write(ctx, testPath, []byte("first")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := backend.Write(ctx, testPath, []byte("second")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		data, err := backend.Read(ctx, testPath)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if string(data) != "second" {
			t.Errorf("Read data = %q, want %q", string(data), "second")
		}
	})

	t.Run("Exists", func(t *testing.T) {
		testPath := "exists.csv"

		exists, err := backend.Exists(ctx, testPath)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if exists {
			t.Error("Expected file to not exist")
		}

		if err := backend.Write(ctx, testPath, []byte("x")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		exists, err = backend.Exists(ctx, testPath)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if !exists {
			t.Error("Expected file to exist")
		}
	})

	t.Run("Directories are not artifacts", func(t *testing.T) {
		if err := os.MkdirAll(filepath.Join(backend.GetBasePath(), "somedir"), 0755); err != nil {
			t.Fatal(err)
		}
		exists, err := backend.Exists(ctx, "somedir")
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if exists {
			t.Error("Expected directory to not count as an artifact")
		}
	})

	t.Run("Read missing", func(t *testing.T) {
		_, err := backend.Read(ctx, "missing.csv")
		if err == nil || !strings.Contains(err.Error(), "file not found") {
			t.Errorf("Read error = %v, want file not found", err)
		}
	})

	t.Run("No temp files left behind", func(t *testing.T) {
		entries, err := os.ReadDir(backend.GetBasePath())
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".tmp") {
				t.Errorf("leftover temp file %s", e.Name())
			}
		}
	})

	t.Run("Written files are world readable", func(t *testing.T) {
		if err := backend.Write(ctx, "mode.csv", []byte("x")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		info, err := os.Stat(filepath.Join(backend.GetBasePath(), "mode.csv"))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0644 {
			t.Errorf("mode = %v, want 0644", info.Mode().Perm())
		}
	})
}

func TestLocalBackend_PathValidation(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"plain file", "results.csv", false},
		{"nested", "a/b/c.png", false},
		{"leading slash stays inside base", "/etc/results.csv", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"base itself", ".", true},
		{"parent escape", "../escape.csv", true},
		{"nested escape", "a/../../escape.csv", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := backend.Write(ctx, tt.path, []byte("x"))
			if (err != nil) != tt.wantErr {
				t.Errorf("Write(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(backend.GetBasePath()), "escape.csv")); err == nil {
		t.Error("traversal wrote outside the base directory")
	}
}

func TestLocalPath(t *testing.T) {
	backend := newTestBackend(t)

	full, ok := LocalPath(backend, "out/chart.png")
	if !ok {
		t.Fatal("expected local path for local backend")
	}
	want := filepath.Join(backend.GetBasePath(), "out", "chart.png")
	if full != want {
		t.Errorf("LocalPath = %q, want %q", full, want)
	}
	if backend.URI("out/chart.png") != want {
		t.Errorf("URI = %q, want %q", backend.URI("out/chart.png"), want)
	}

	if _, ok := LocalPath(backend, "../outside.png"); ok {
		t.Error("expected traversal to be rejected")
	}
}

func TestNew(t *testing.T) {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)

	t.Run("default is local", func(t *testing.T) {
		b, err := New(&Config{LocalPath: t.TempDir()}, logger)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if b.Type() != "local" {
			t.Errorf("Type = %q, want local", b.Type())
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := New(&Config{Backend: "ftp"}, logger)
		if err == nil || !strings.Contains(err.Error(), "unknown storage backend") {
			t.Errorf("New error = %v, want unknown storage backend", err)
		}
	})

	t.Run("s3 requires bucket", func(t *testing.T) {
		if _, err := New(&Config{Backend: "s3"}, logger); err == nil {
			t.Error("expected error for missing bucket")
		}
	})

	t.Run("azure requires container", func(t *testing.T) {
		if _, err := New(&Config{Backend: "azure"}, logger); err == nil {
			t.Error("expected error for missing container")
		}
	})

	t.Run("azure requires credentials", func(t *testing.T) {
		_, err := New(&Config{Backend: "azure", Azure: AzureBlobConfig{ContainerName: "bench"}}, logger)
		if err == nil || !strings.Contains(err.Error(), "no valid Azure authentication") {
			t.Errorf("New error = %v, want authentication error", err)
		}
	})
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.csv":     "text/csv",
		"b.png":     "image/png",
		"c.parquet": "application/vnd.apache.parquet",
		"d.bin":     "application/octet-stream",
	}
	for path, want := range tests {
		if got := contentType(path); got != want {
			t.Errorf("contentType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestNotFoundErrors(t *testing.T) {
	if isAzureNotFoundError(nil) {
		t.Error("nil is not a not-found error")
	}
	if !isAzureNotFoundError(errString("RESPONSE 404: BlobNotFound")) {
		t.Error("expected BlobNotFound to be recognised")
	}
	if !isNotFoundError(errString("api error NotFound: Not Found")) {
		t.Error("expected NotFound to be recognised")
	}
	if isNotFoundError(errString("AccessDenied")) {
		t.Error("AccessDenied is not a not-found error")
	}
}

func TestS3Backend_KeyAndURI(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		path    string
		wantKey string
		wantURI string
	}{
		{"no prefix", "", "results.csv", "results.csv", "s3://bench/results.csv"},
		{"prefix", "jsonbench", "results.csv", "jsonbench/results.csv", "s3://bench/jsonbench/results.csv"},
		{"nested path", "jsonbench", "charts/ex15.png", "jsonbench/charts/ex15.png", "s3://bench/jsonbench/charts/ex15.png"},
		{"leading slash", "jsonbench", "/results.csv", "jsonbench/results.csv", "s3://bench/jsonbench/results.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &S3Backend{bucket: "bench", prefix: tt.prefix}
			if got := b.key(tt.path); got != tt.wantKey {
				t.Errorf("key(%q) = %q, want %q", tt.path, got, tt.wantKey)
			}
			if got := b.URI(tt.path); got != tt.wantURI {
				t.Errorf("URI(%q) = %q, want %q", tt.path, got, tt.wantURI)
			}
		})
	}
}

func TestAzureBlobBackend_NameAndURI(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		path     string
		wantName string
		wantURI  string
	}{
		{"no prefix", "", "results.csv", "results.csv", "azure://bench/results.csv"},
		{"prefix", "runs/2026", "results.csv", "runs/2026/results.csv", "azure://bench/runs/2026/results.csv"},
		{"leading slash", "runs", "//charts/ex15.png", "runs/charts/ex15.png", "azure://bench/runs/charts/ex15.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &AzureBlobBackend{containerName: "bench", prefix: tt.prefix}
			if got := b.name(tt.path); got != tt.wantName {
				t.Errorf("name(%q) = %q, want %q", tt.path, got, tt.wantName)
			}
			if got := b.URI(tt.path); got != tt.wantURI {
				t.Errorf("URI(%q) = %q, want %q", tt.path, got, tt.wantURI)
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func BenchmarkLocalBackend_Write(b *testing.B) {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	backend, err := NewLocalBackend(b.TempDir(), logger)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	data := make([]byte, 64*1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := backend.Write(ctx, "bench.csv", data); err != nil {
			b.Fatal(err)
		}
	}
}
