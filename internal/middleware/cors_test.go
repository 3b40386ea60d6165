package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func corsRouter(origins []string) *gin.Engine {
	router := gin.New()
	router.Use(CORS(origins))
	router.GET("/api/projects/1/gradebook.xlsx", func(c *gin.Context) {
		c.Header("Content-Disposition", `attachment; filename="gradebook-project-1.xlsx"`)
		c.Status(http.StatusOK)
	})
	router.POST("/api/deliverables/grade", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantCredits string
	}{
		{"any origin when unconfigured", nil, "http://localhost:5173", http.StatusOK, "*", ""},
		{"configured origin echoed", []string{"https://econify.uni.test"}, "https://econify.uni.test", http.StatusOK, "https://econify.uni.test", "true"},
		{"unlisted origin refused", []string{"https://econify.uni.test"}, "https://evil.test", http.StatusForbidden, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/projects/1/gradebook.xlsx", nil)
			req.Header.Set("Origin", tt.origin)
			corsRouter(tt.allowed).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredits {
				t.Errorf("Allow-Credentials = %q, want %q", got, tt.wantCredits)
			}
		})
	}
}

func TestCORS_ExposesDownloadName(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/projects/1/gradebook.xlsx", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	corsRouter(nil).ServeHTTP(w, req)

	exposed := strings.ToLower(w.Header().Get("Access-Control-Expose-Headers"))
	for _, h := range []string{"content-disposition", "x-request-id"} {
		if !strings.Contains(exposed, h) {
			t.Errorf("Expose-Headers = %q, missing %s", exposed, h)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/deliverables/grade", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, X-Request-ID")
	corsRouter(nil).ServeHTTP(w, req)

	if w.Code != http.StatusNoContent && w.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", w.Code)
	}
	allowed := strings.ToLower(w.Header().Get("Access-Control-Allow-Headers"))
	for _, h := range []string{"authorization", "x-request-id"} {
		if !strings.Contains(allowed, h) {
			t.Errorf("Allow-Headers = %q, missing %s", allowed, h)
		}
	}
}
