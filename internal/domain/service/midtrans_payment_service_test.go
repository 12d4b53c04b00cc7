package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMidtransCapture(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/charge", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "server-key", user)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status_code":"200","transaction_status":"capture","order_id":"order-1"}`))
	}))
	defer srv.Close()

	gw := NewMidtransPaymentGatewayWithURL("server-key", srv.URL)
	res, err := gw.Capture(context.Background(), CaptureRequest{
		OrderID: "order-1",
		BuyerID: "buyer-1",
		Amount:  decimal.RequireFromString("200"),
		Method:  "credit_card",
	})
	require.NoError(t, err)
	assert.Equal(t, "order-1", res.Reference)

	details := got["transaction_details"].(map[string]interface{})
	assert.Equal(t, 200.0, details["gross_amount"])
}

func TestMidtransCaptureDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status_code":"202","transaction_status":"deny","status_message":"denied by bank"}`))
	}))
	defer srv.Close()

	gw := NewMidtransPaymentGatewayWithURL("k", srv.URL)
	_, err := gw.Capture(context.Background(), CaptureRequest{OrderID: "o", Amount: decimal.NewFromInt(1), Method: "credit_card"})
	assert.Error(t, err)
}

func TestMidtransRefundHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/order-7/refund", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := NewMidtransPaymentGatewayWithURL("k", srv.URL)
	err := gw.Refund(context.Background(), "order-7", decimal.NewFromInt(5), "cancelled")
	assert.Error(t, err)
}

func TestSimulatedGatewayRefundBounds(t *testing.T) {
	gw := NewSimulatedPaymentGateway()
	res, err := gw.Capture(context.Background(), CaptureRequest{OrderID: "o1", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)

	assert.Error(t, gw.Refund(context.Background(), res.Reference, decimal.NewFromInt(11), "too much"))
	assert.NoError(t, gw.Refund(context.Background(), res.Reference, decimal.NewFromInt(10), "cancel"))
	assert.Error(t, gw.Refund(context.Background(), "missing", decimal.NewFromInt(1), "x"))
}
