package metrics

import "testing"

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       string
	}{
		// Success codes
		{"200 OK", 200, StatusClass2xx},
		{"201 Created", 201, StatusClass2xx},
		{"204 No Content", 204, StatusClass2xx},
		{"299 boundary", 299, StatusClass2xx},

		// Client errors
		{"400 Bad Request", 400, StatusClass4xx},
		{"401 Unauthorized", 401, StatusClass4xx},
		{"404 Not Found", 404, StatusClass4xx},
		{"499 boundary", 499, StatusClass4xx},

		// Server errors
		{"500 Internal Server Error", 500, StatusClass5xx},
		{"502 Bad Gateway", 502, StatusClass5xx},
		{"503 Service Unavailable", 503, StatusClass5xx},

		// Edge cases
		{"302 redirect", 302, StatusClassError},
		{"100 continue", 100, StatusClassError},
		{"zero means no status line", 0, StatusClassError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyStatus(tt.statusCode)
			if got != tt.want {
				t.Errorf("ClassifyStatus(%d) = %q, want %q", tt.statusCode, got, tt.want)
			}
		})
	}
}
