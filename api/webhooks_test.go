package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/service/webhook"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockWebhookIngress struct {
	mock.Mock
}

func (m *MockWebhookIngress) Handle(ctx context.Context, body []byte) webhook.Result {
	args := m.Called(ctx, body)
	return args.Get(0).(webhook.Result)
}

func TestWebhookHandler_AlwaysAcknowledges(t *testing.T) {
	tests := []struct {
		name   string
		result webhook.Result
	}{
		{"applied", webhook.Result{Outcome: webhook.OutcomeApplied, BookingID: "BK1"}},
		{"duplicate", webhook.Result{Outcome: webhook.OutcomeDuplicate}},
		{"failed", webhook.Result{Outcome: webhook.OutcomeFailed, Err: domain.ErrConcurrencyConflict}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingress := &MockWebhookIngress{}
			handler := NewWebhookHandler(ingress)
			body := []byte(`{"event":"ticket.issued","order_id":"ORD-1"}`)
			c, w := newTestContext("POST", "/webhooks/supplier", body)
			ingress.On("Handle", c.Request.Context(), body).Return(tt.result)

			handler.supplier(c)

			assert.Equal(t, http.StatusOK, w.Code)
			var response map[string]string
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, string(tt.result.Outcome), response["status"])
		})
	}
}

func TestRouter_WebhookRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ingress := &MockWebhookIngress{}
	ingress.On("Handle", mock.Anything, mock.Anything).Return(webhook.Result{Outcome: webhook.OutcomeInvalid})

	router := NewRouter(zap.NewNop(), []string{"https://shop.example.com"}, Handlers{Webhooks: NewWebhookHandler(ingress)})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhooks/supplier", strings.NewReader(`garbage`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	ingress.AssertNumberOfCalls(t, "Handle", 1)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
