package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndInflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/interviews/:id", func(c *gin.Context) {
		c.String(http.StatusOK, `{"id":"iv-1","title":"Backend Screen"}`)
	})
	// Accepted with no body, so the size histogram must be skipped.
	r.POST("/sessions/:id/messages", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// Baselines guard against other tests in the package touching the
	// shared registry.
	baseGet := testutil.ToFloat64(reqTotal.WithLabelValues("GET", "/interviews/:id", "200"))
	basePost := testutil.ToFloat64(reqTotal.WithLabelValues("POST", "/sessions/:id/messages", "204"))
	baseMiss := testutil.ToFloat64(reqTotal.WithLabelValues("GET", "/interviwes/iv-1", "404"))

	for _, hit := range []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/interviews/iv-1", http.StatusOK},
		{http.MethodPost, "/sessions/cand-7/messages", http.StatusNoContent},
		{http.MethodGet, "/interviwes/iv-1", http.StatusNotFound}, // typo'd path, no route
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(hit.method, hit.target, nil))
		if w.Code != hit.want {
			t.Fatalf("%s %s -> %d, want %d", hit.method, hit.target, w.Code, hit.want)
		}
	}

	// Matched requests land under the route pattern, not the concrete path
	// with its interview and attempt ids.
	if got := testutil.ToFloat64(reqTotal.WithLabelValues("GET", "/interviews/:id", "200")); got != baseGet+1 {
		t.Fatalf("GET /interviews/:id 200 = %v, want %v", got, baseGet+1)
	}
	if got := testutil.ToFloat64(reqTotal.WithLabelValues("POST", "/sessions/:id/messages", "204")); got != basePost+1 {
		t.Fatalf("POST /sessions/:id/messages 204 = %v, want %v", got, basePost+1)
	}

	// Unmatched requests fall back to the raw path.
	if got := testutil.ToFloat64(reqTotal.WithLabelValues("GET", "/interviwes/iv-1", "404")); got != baseMiss+1 {
		t.Fatalf("404 fallback = %v, want %v", got, baseMiss+1)
	}

	if inflight := testutil.ToFloat64(reqInflight); inflight != 0 {
		t.Fatalf("inflight gauge = %v after requests drained, want 0", inflight)
	}
}
