package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/contentflow/core/internal/middleware"
	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/pkg/jobs"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestHandler_ListByStatus(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, Entry{UserID: "u1", Kind: "video", RequestID: "r-1"}))
	require.NoError(t, s.Record(ctx, Entry{UserID: "u1", Kind: "video", RequestID: "r-2"}))
	o, _ := OutcomeForJob(&jobs.Job{Status: jobs.StatusCancelled})
	require.NoError(t, s.Mark(ctx, "r-1", o))

	r := gin.New()
	NewHandler(s).RegisterRoutes(r.Group("/api/v1"), func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, "u1")
		c.Next()
	})

	tests := []struct {
		query string
		code  int
		want  []string
	}{
		{"", http.StatusOK, []string{"r-1", "r-2"}},
		{"?status=cancelled", http.StatusOK, []string{"r-1"}},
		{"?status=error", http.StatusOK, []string{}},
		{"?status=queued", http.StatusOK, []string{"r-2"}},
		{"?status=stopped", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/activity"+tt.query, nil))
			require.Equal(t, tt.code, w.Code)
			if tt.want == nil {
				return
			}
			var body struct {
				Data []models.ActivityModel `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			got := []string{}
			for _, row := range body.Data {
				got = append(got, row.RequestID)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}
