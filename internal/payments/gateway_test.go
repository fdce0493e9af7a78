package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature(t *testing.T) {
	sig := Sign("s3cret", "order_A", "pay_B")
	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature("s3cret", "order_A", "pay_B", sig))

	assert.False(t, VerifySignature("other", "order_A", "pay_B", sig))
	assert.False(t, VerifySignature("s3cret", "order_A", "pay_C", sig))
	assert.False(t, VerifySignature("s3cret", "order_A", "pay_B", tamper(sig)))
	assert.False(t, VerifySignature("s3cret", "order_A", "pay_B", "not-hex"))
	assert.False(t, VerifySignature("s3cret", "order_A", "pay_B", ""))
}

func tamper(sig string) string {
	last := byte('0')
	if sig[len(sig)-1] == '0' {
		last = '1'
	}
	return sig[:len(sig)-1] + string(last)
}

func TestRazorpayCreateOrder(t *testing.T) {
	var got GatewayOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GatewayOrder{
			ID: "order_123", Entity: "order", Amount: got.Amount, Currency: got.Currency,
			Receipt: got.Receipt, Status: "created",
		})
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL+"/", "rzp_test", "secret")
	out, err := c.CreateOrder(context.Background(), GatewayOrderRequest{Amount: 58882, Currency: "INR", Receipt: "booking_x"})
	require.NoError(t, err)
	assert.Equal(t, "order_123", out.ID)
	assert.EqualValues(t, 58882, got.Amount)
	assert.Equal(t, "booking_x", out.Receipt)
}

func TestRazorpayErrorsAreUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"description":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewRazorpayClient(srv.URL, "k", "s")
	_, err := c.CreateOrder(context.Background(), GatewayOrderRequest{Amount: 100, Currency: "INR"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, "payment gateway rejected the order", apperr.Message(err))
}
