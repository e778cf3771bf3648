package metrics

import (
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/health", "/api/health"},
		{"/metrics", "/metrics"},
		{"/openapi.json", "/openapi.json"},
		{"/docs", "/docs"},
		{"/docs/something", "/docs"},
		{"/", "/"},
		{"", "/"},
		{"/api/projects", "/api/projects"},
		{"/api/create/project", "/api/create/project"},
		{"/api/image/Clients/c1/2026-01/7/Banner1.png", "/api/image/{key}"},
		{"/api/image/a/b/c", "/api/image/{key}"},
		{"/api/client/0123456789abcdef", "/api/client/{id}"},
		{"/api/client-invoices/0123456789abcdef", "/api/client-invoices/{clientId}"},
		{"/api/clients", "/api/clients"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := NormalizePath(tt.path)
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMetricsRegistered(t *testing.T) {
	// Register metrics explicitly (registration is deliberately not in init()).
	Register()

	// Verify that calling Inc/Observe on metrics does not panic.
	HTTPRequestsTotal.WithLabelValues("GET", "/api/health", "200").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/health").Observe(0.001)
	HTTPRequestSize.WithLabelValues("POST", "/api/create/project").Observe(1024)
	ProjectOperationsTotal.WithLabelValues("create", "success").Inc()
	BlobUploadsTotal.Inc()
	BlobVersionsPurgedTotal.Add(3)
	CompensationsTotal.WithLabelValues("update").Inc()
	CleanupWarningsTotal.Inc()
}
