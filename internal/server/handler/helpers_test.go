package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError(domain.KindInvalidPrice, "bad"), http.StatusBadRequest},
		{fmt.Errorf("svc: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("svc: %w", domain.ErrConflict), http.StatusConflict},
		{domain.ErrLockHeld, http.StatusConflict},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("mirror: %w", domain.ErrExternalService), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestParseListOpts(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=9999&offset=-3", nil)
	opts := parseListOpts(r)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 0, opts.Offset)

	r = httptest.NewRequest(http.MethodGet, "/?limit=abc&offset=20", nil)
	opts = parseListOpts(r)
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 20, opts.Offset)
}
