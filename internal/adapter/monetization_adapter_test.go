package adapter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonetizationAdapter_MissingEndpoint(t *testing.T) {
	_, err := NewMonetizationAdapter(Config{Raw: map[string]interface{}{}})
	assert.Error(t, err)
}

func TestMonetizationAdapter_Send_SuccessBodyRecordsRevenue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "offer=summer-promo")
		w.Write([]byte("Success"))
	}))
	defer server.Close()

	a, err := NewMonetizationAdapter(Config{Raw: map[string]interface{}{"endpoint": server.URL}, RevenuePerLead: 25})
	require.NoError(t, err)
	assert.Equal(t, "monetization", a.Name())

	event := &models.Event{Email: "buyer@example.com", PurchaseOffer: "summer-promo", PurchaseAmount: 99.99}
	result, err := a.Send(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.Revenue)
	assert.Equal(t, 25.0, *result.Revenue)
	assert.Equal(t, "confirmed", result.RevenueStatus)
}

func TestMonetizationAdapter_Send_NonSuccessBodyDeclinesRevenue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Duplicate"))
	}))
	defer server.Close()

	a, err := NewMonetizationAdapter(Config{Raw: map[string]interface{}{"endpoint": server.URL}, RevenuePerLead: 25})
	require.NoError(t, err)

	result, err := a.Send(context.Background(), &models.Event{Email: "buyer@example.com"})
	require.NoError(t, err)
	assert.True(t, result.Success, "HTTP 200 is still a success even when revenue is declined")
	assert.Nil(t, result.Revenue)
	assert.Equal(t, "declined", result.RevenueStatus)
}
