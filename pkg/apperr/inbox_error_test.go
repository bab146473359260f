package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCodeWalksNestedErrors(t *testing.T) {
	inner := MissingField("summary")
	outer := PipelineFailed(2, "msg-3", inner)
	wrapped := fmt.Errorf("run: %w", outer)

	assert.True(t, IsCode(wrapped, CodePipelineFailed))
	assert.True(t, IsCode(wrapped, CodeValidationFailed))
	assert.False(t, IsCode(wrapped, CodeStoreError))
	assert.False(t, IsCode(errors.New("plain"), CodeInternalError))
	assert.False(t, IsCode(nil, CodeInternalError))
}

func TestPipelineFailedDetails(t *testing.T) {
	err := PipelineFailed(0, "msg-1", context.DeadlineExceeded)

	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.Equal(t, 0, err.Details["index"])
	assert.Equal(t, "msg-1", err.Details["message_id"])
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "PIPELINE_FAILED")
}

func TestAsAppError(t *testing.T) {
	busy := Busy("enrichment run")
	assert.Same(t, busy, AsAppError(fmt.Errorf("wrap: %w", busy)))

	plain := errors.New("boom")
	converted := AsAppError(plain)
	assert.Equal(t, CodeInternalError, converted.Code)
	assert.ErrorIs(t, converted, plain)
	assert.Equal(t, http.StatusInternalServerError, converted.Status)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err    *AppError
		code   string
		status int
	}{
		{BadRequest("x"), CodeBadRequest, http.StatusBadRequest},
		{ValidationFailed("x"), CodeValidationFailed, http.StatusUnprocessableEntity},
		{InvalidInput("category", "x"), CodeValidationFailed, http.StatusUnprocessableEntity},
		{NotFound("draft"), CodeNotFound, http.StatusNotFound},
		{Busy("run"), CodeBusy, http.StatusConflict},
		{StoreFailed("read", "inbox.json", nil), CodeStoreError, http.StatusInternalServerError},
		{AgentFailed(errors.New("x")), CodeAgentFailed, http.StatusBadGateway},
		{ConfigError("x"), CodeConfigError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
		})
	}
}
