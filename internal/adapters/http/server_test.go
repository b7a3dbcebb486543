package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroforge/aeroforge/pkg/domain"
)

type fakeEngine struct {
	state *domain.SessionState
	err   error
}

func (f *fakeEngine) Run(context.Context, string) (*domain.SessionState, error) {
	return f.state, f.err
}

func postRun(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateRunSuccess(t *testing.T) {
	engine := &fakeEngine{state: &domain.SessionState{
		RunID:        "run-1",
		CurrentStage: domain.StageDone,
	}}
	handler := NewHandler(engine, nil)

	rec := postRun(t, handler, `{"request": "turbine blade alloy"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.State)
	assert.Equal(t, "run-1", resp.State.RunID)
	assert.Empty(t, resp.Error)
}

func TestCreateRunInvalidInputIs400(t *testing.T) {
	engine := &fakeEngine{err: fmt.Errorf("%w: request must not be empty", domain.ErrInvalidInput)}
	handler := NewHandler(engine, nil)

	rec := postRun(t, handler, `{"request": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRunFailureStillReturnsState(t *testing.T) {
	engine := &fakeEngine{
		state: &domain.SessionState{RunID: "run-2", CurrentStage: domain.StageFailed, FailureReason: "refinement loop exhausted after 3 iterations"},
		err:   &domain.StageFailureError{Stage: domain.StageRefinement, Err: errors.New("exhausted")},
	}
	handler := NewHandler(engine, nil)

	rec := postRun(t, handler, `{"request": "turbine blade alloy"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.State)
	assert.Equal(t, domain.StageFailed, resp.State.CurrentStage)
	assert.NotEmpty(t, resp.Error)
}

func TestCreateRunMalformedBodyIs400(t *testing.T) {
	handler := NewHandler(&fakeEngine{}, nil)
	rec := postRun(t, handler, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	handler := NewHandler(&fakeEngine{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
