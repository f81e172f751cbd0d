package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftlearn/academy-billing-api/pkg/config"
)

func newTestClient(baseURL string) *PaystackClient {
	return NewPaystackClient(config.GatewayConfig{
		BaseURL:   baseURL,
		SecretKey: "sk_test_secret",
		Timeout:   2 * time.Second,
	}, nil)
}

func TestPaystackVerifySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/ref-1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{"reference":"ref-1","status":"success","amount":15000000,"currency":"NGN","paid_at":"2024-04-10T09:00:00Z"}}`)
	}))
	defer server.Close()

	tx, err := newTestClient(server.URL).Verify(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.True(t, tx.Succeeded())
	assert.Equal(t, "ref-1", tx.Reference)
	assert.Equal(t, int64(15000000), tx.Amount)
	assert.Equal(t, "NGN", tx.Currency)
}

func TestPaystackVerifyDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{"reference":"ref-2","status":"failed","amount":15000000,"currency":"NGN"}}`)
	}))
	defer server.Close()

	tx, err := newTestClient(server.URL).Verify(context.Background(), "ref-2")
	require.NoError(t, err)
	assert.False(t, tx.Succeeded())
}

func TestPaystackVerifyGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"status":false,"message":"Transaction reference not found"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Verify(context.Background(), "ref-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway returned 404")
}

func TestPaystackVerifyFalseEnvelopeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":false,"message":"Invalid key"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Verify(context.Background(), "ref-3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid key")
}

func TestPaystackVerifyRequiresReference(t *testing.T) {
	_, err := newTestClient("http://unused").Verify(context.Background(), "")
	require.Error(t, err)
}
