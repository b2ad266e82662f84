package service

import (
	"context"
	"testing"

	"github.com/Yair4430/CertiGranja-2.0/config"
)

func TestNewMinioService(t *testing.T) {
	cfg := &config.MinioConfig{
		Endpoint:  "invalid-endpoint:9000",
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "test",
		UseSSL:    false,
	}

	svc, err := NewMinioService(cfg)
	// The client is lazy; connection problems surface on first use.
	if err != nil {
		t.Logf("NewMinioService returned error: %v", err)
	} else if svc == nil {
		t.Error("Expected non-nil service")
	}
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		jobID    string
		path     string
		expected string
	}{
		{"job-1", "/home/op/Downloads/lote/resultados_certificados.xlsx", "job-1/resultados_certificados.xlsx"},
		{"job-2", "CERTIFICADOS_UNIDOS.pdf", "job-2/CERTIFICADOS_UNIDOS.pdf"},
	}

	for _, tt := range tests {
		if got := ObjectName(tt.jobID, tt.path); got != tt.expected {
			t.Errorf("ObjectName(%q, %q) = %q, want %q", tt.jobID, tt.path, got, tt.expected)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"a.pdf", "application/pdf"},
		{"a.PDF", "application/pdf"},
		{"a.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"a.bin", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := ContentType(tt.path); got != tt.expected {
			t.Errorf("ContentType(%q) = %q, want %q", tt.path, got, tt.expected)
		}
	}
}

func TestMinioServiceArchiveCanceled(t *testing.T) {
	svc, err := NewMinioService(&config.MinioConfig{
		Endpoint:   "localhost:9000",
		AccessKey:  "test",
		SecretKey:  "test",
		Bucket:     "test",
		ExpireDays: 7,
	})
	if err != nil {
		t.Skip("Could not create MinIO service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Archive(ctx, "job", "missing.xlsx"); err == nil {
		t.Error("Expected archive to fail for a missing file")
	}
}
