package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedulehq/conference-optimizer/internal/cache"
	"github.com/schedulehq/conference-optimizer/internal/domain"
	"github.com/schedulehq/conference-optimizer/internal/engine"
	"github.com/schedulehq/conference-optimizer/internal/orchestrator"
)

func payloadFixture() SchedulePayload {
	day := func(d int) time.Time { return time.Date(2026, 1, d, 19, 0, 0, 0, time.UTC) }
	return SchedulePayload{
		ID: "wire-1", Sport: "basketball", Season: "2025-26",
		Teams: []domain.Team{
			{ID: "lex", VenueIDs: []string{"lex-arena"}, PrimaryVenueID: "lex-arena"},
			{ID: "lou", VenueIDs: []string{"lou-arena"}, PrimaryVenueID: "lou-arena"},
		},
		Venues: []domain.Venue{
			{ID: "lex-arena"},
			{ID: "lou-arena"},
		},
		Games: []domain.Game{
			{ID: "g2", Sport: "basketball", HomeID: "lou", AwayID: "lex", VenueID: "lou-arena", Date: day(10)},
			{ID: "g1", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: day(3)},
		},
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	p := payloadFixture()
	s := p.ToDomain()

	require.Len(t, s.Teams, 2)
	require.Len(t, s.Venues, 2)
	assert.Equal(t, "g1", s.Games[0].ID, "games sorted by date on ingest")
	require.NoError(t, s.Validate())

	back := FromDomain(s)
	assert.Equal(t, p.ID, back.ID)
	assert.Equal(t, []string{"lex", "lou"}, []string{back.Teams[0].ID, back.Teams[1].ID}, "teams in deterministic order")
	assert.Equal(t, []string{"lex-arena", "lou-arena"}, []string{back.Venues[0].ID, back.Venues[1].ID})
	assert.Len(t, back.Games, 2)
}

func templateRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewTemplateHandler(logrus.New())
	r.GET("/templates", h.ListTemplates)
	r.POST("/templates/:name", h.ExpandTemplate)
	return r
}

func TestListTemplates(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/templates", nil)
	templateRouter().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Templates []string `json:"templates"`
			Kinds     []string `json:"kinds"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Data.Templates, "conference_round_robin")
	assert.Len(t, resp.Data.Kinds, 15)
}

func TestExpandTemplate(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"sport": "basketball", "min_rest_days": 2})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/templates/conference_round_robin", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	templateRouter().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Constraints []map[string]any `json:"constraints"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.Constraints)
}

func TestOptimizeSurvivesUnreachableCacheWithoutConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// Cache configured but redis down and no config wired in: the run must
	// still complete and fall back to the default TTL.
	cacheSvc := cache.NewService(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
	}))
	h := NewScheduleHandler(engine.New(nil), cacheSvc, nil, nil, logrus.New())
	r := gin.New()
	r.POST("/schedules/optimize", h.Optimize)

	body, err := json.Marshal(optimizeRequest{
		Schedule: payloadFixture(),
		Options:  &orchestrator.Options{MaxIterations: 50, ParallelChains: 1},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedules/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteRunWithoutCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewScheduleHandler(engine.New(nil), nil, nil, nil, logrus.New())
	r := gin.New()
	r.DELETE("/runs/:id", h.DeleteRun)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/runs/abc", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExpandTemplateUnknownName(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"sport": "basketball"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/templates/nope", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	templateRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
