package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Invalid("limit must be positive"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", ErrQueryTooLong), http.StatusBadRequest},
		{fmt.Errorf("search: %w", ErrStoreUnavailable), http.StatusServiceUnavailable},
		{ErrTimeout, http.StatusGatewayTimeout},
		{ErrNotFound, http.StatusNotFound},
		{New(ErrInternal, http.StatusTeapot, "odd"), http.StatusTeapot},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusCode(tt.err), tt.err.Error())
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("handler: %w", Newf(ErrInvalidInput, http.StatusBadRequest, "bad %s", "page"))
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "bad page", PublicMessage(err))
	assert.Equal(t, "invalid input: bad page", errors.Unwrap(err).Error())
}

func TestPublicMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "internal error", PublicMessage(errors.New("pq: password authentication failed")))
	assert.Equal(t, "search temporarily unavailable", PublicMessage(ErrStoreUnavailable))
}
