package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFollowsWrapChain(t *testing.T) {
	base := New(CodeOptimizerInfeasible, "no assignment satisfies the floor")
	wrapped := fmt.Errorf("plan: optimize: %w", base)

	assert.True(t, Is(wrapped, CodeOptimizerInfeasible))
	assert.False(t, Is(wrapped, CodeTimeout))
	assert.Equal(t, CodeOptimizerInfeasible, CodeOf(wrapped))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(New(CodeInvalidInput, "bad")))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(New(CodeOptimizerTimeout, "slow")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(errors.New("dial tcp: refused"), CodeDistanceUnavailable, "routing service down")
	assert.Equal(t, "[DISTANCE_PROVIDER_UNAVAILABLE] routing service down: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, err.Cause)
}
