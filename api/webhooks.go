package api

import (
	"context"
	"io"
	"net/http"

	"github.com/Domenick1991/flightdesk/internal/service/webhook"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type WebhookIngress interface {
	Handle(ctx context.Context, body []byte) webhook.Result
}

type WebhookHandler struct {
	ingress WebhookIngress
}

func NewWebhookHandler(ingress WebhookIngress) *WebhookHandler {
	return &WebhookHandler{ingress: ingress}
}

func (h *WebhookHandler) Register(router *gin.RouterGroup) {
	router.POST("/supplier", h.supplier)
}

// supplier always answers 200 so the supplier does not redeliver; the
// issuance monitor reconciles anything that failed here.
func (h *WebhookHandler) supplier(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusOK, gin.H{"status": webhook.OutcomeInvalid})
		return
	}
	res := h.ingress.Handle(c.Request.Context(), body)
	if res.Err != nil {
		_ = c.Error(res.Err)
	}
	c.JSON(http.StatusOK, gin.H{"status": res.Outcome})
}
