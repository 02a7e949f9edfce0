package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email string `json:"email" validate:"required,email"`
}

func jsonRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var dst sample
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), jsonRequest(`{"email":"a@b.com"}`), &dst))
	assert.Equal(t, "a@b.com", dst.Email)

	err := DecodeJSON(httptest.NewRecorder(), jsonRequest(`{"email":"a@b.com"}{}`), &dst)
	assert.ErrorIs(t, err, ErrTrailingData)

	err = DecodeJSON(httptest.NewRecorder(), jsonRequest(`{"nope":1}`), &dst)
	assert.Error(t, err)

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "text/plain")
	assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), r, &dst), ErrUnsupportedMediaType)
}

func TestWriteDecodeError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteDecodeError(rec, ErrUnsupportedMediaType)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = httptest.NewRecorder()
	WriteDecodeError(rec, errors.New("boom"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_json", body["code"])
	assert.Equal(t, "invalid request body", body["error"])
}

func TestWriteJSON_Headers(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]bool{"success": true})

	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestValidationDetails(t *testing.T) {
	t.Parallel()
	v := validator.New(validator.WithRequiredStructEnabled())

	details := ValidationDetails(v.Struct(sample{Email: "nope"}))
	require.Len(t, details, 1)
	assert.Equal(t, FieldError{Field: "Email", Rule: "email"}, details[0])

	details = ValidationDetails(errors.New("other"))
	require.Len(t, details, 1)
	assert.Equal(t, "invalid", details[0].Rule)
}

func TestClientMeta(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:5123"
	r.Header.Set("User-Agent", "curl/8")
	m := ClientMeta(r)
	assert.Equal(t, "10.0.0.5", m.IP)
	assert.Equal(t, "curl/8", m.UserAgent)

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "10.0.0.5", ClientMeta(r).IP)

	r.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", ClientMeta(r).IP)

	r.Header.Del("User-Agent")
	assert.Equal(t, "unknown", ClientMeta(r).UserAgent)
}
