package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/promptdeck/promptdeck/domain"
)

func statusFor(t *testing.T, err error) (int, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	writeError(c, err)
	return rec.Code, rec.Body.String()
}

func TestWriteErrorMapsTaxonomy(t *testing.T) {
	code, _ := statusFor(t, domain.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = statusFor(t, fmt.Errorf("wrapped: %w", domain.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, code)

	code, body := statusFor(t, &domain.DuplicateError{Fingerprint: "f", ExistingID: "p0"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body, "p0")

	code, _ = statusFor(t, fmt.Errorf("%w: title is required", domain.ErrInvalidInput))
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = statusFor(t, &domain.BackendError{Backend: "supabase", Op: "list", Err: errors.New("dial tcp: refused")})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.NotContains(t, body, "dial tcp", "backend internals must not leak")

	code, _ = statusFor(t, errors.New("something else"))
	assert.Equal(t, http.StatusInternalServerError, code)
}
