package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fleetdispatch/internal/dto"
	"fleetdispatch/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDispatchSvc captures the request the handler forwards.
type stubDispatchSvc struct {
	lastReq dto.DispatchRequest
	err     error
}

func (s *stubDispatchSvc) Run(_ context.Context, req dto.DispatchRequest) (*dto.DispatchResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &dto.DispatchResponse{}, nil
}

func (s *stubDispatchSvc) IdleUnits(_ context.Context, _ dto.IdleUnitsFilter) (map[string][]dto.IdleUnit, error) {
	return map[string][]dto.IdleUnit{}, nil
}

var _ service.DispatchService = (*stubDispatchSvc)(nil)

func dispatchRouter(svc service.DispatchService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/dispatch", NewDispatchHandler(svc).Run)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDispatchRun_MalformedDatesReachTheService(t *testing.T) {
	svc := &stubDispatchSvc{}
	r := dispatchRouter(svc)

	// Garbage date filters coerce to defaults downstream; the handler must
	// never reject them at binding time.
	w := postJSON(t, r, "/v1/dispatch",
		`{"departure_date":"31-12-2026","cutoff_date":"whenever","commit":false}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "31-12-2026", svc.lastReq.DepartureDate)
	assert.Equal(t, "whenever", svc.lastReq.CutoffDate)
}

func TestDispatchRun_CommitStatusAndConflict(t *testing.T) {
	svc := &stubDispatchSvc{}
	r := dispatchRouter(svc)

	w := postJSON(t, r, "/v1/dispatch", `{"commit":true}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	svc.err = service.ErrCommitInProgress
	w = postJSON(t, r, "/v1/dispatch", `{"commit":true}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDispatchRun_OutOfRangeOverridesRejected(t *testing.T) {
	svc := &stubDispatchSvc{}
	r := dispatchRouter(svc)

	// Numeric knobs keep their validation: headroom above 1 is a client bug,
	// not something to coerce.
	w := postJSON(t, r, "/v1/dispatch", `{"capacityHeadroom":2.5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
