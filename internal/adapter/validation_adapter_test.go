package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidationAdapter_MissingAPIKey(t *testing.T) {
	_, err := NewValidationAdapter(Config{Raw: map[string]interface{}{}})
	assert.Error(t, err)
}

func TestValidationAdapter_Send_ParsesActiveInDays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "person@example.com", r.URL.Query().Get("email"))
		w.Write([]byte(`{"address":"person@example.com","status":"valid","sub_status":"","active_in_days":"12"}`))
	}))
	defer server.Close()

	a, err := NewValidationAdapter(Config{Raw: map[string]interface{}{"api_key": "key", "base_url": server.URL}})
	require.NoError(t, err)
	assert.Equal(t, "validation", a.Name())

	result, err := a.Send(context.Background(), &models.Event{Email: "person@example.com"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "valid", result.ProviderData["status"])
	assert.Equal(t, 12, result.ProviderData["active_in_days"])
}

func TestValidationAdapter_Send_UpstreamErrorReturnsUnsuccessfulResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer server.Close()

	a, err := NewValidationAdapter(Config{Raw: map[string]interface{}{"api_key": "key", "base_url": server.URL}})
	require.NoError(t, err)

	result, err := a.Send(context.Background(), &models.Event{Email: "person@example.com"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusTooManyRequests, result.ResponseCode)
}
