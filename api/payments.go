package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/flightdesk/internal/payment"
	"github.com/Domenick1991/flightdesk/internal/service/booking"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SignatureVerifier interface {
	Verify(c payment.Callback) error
}

type PaymentHandler struct {
	service  booking.BookingUseCase
	verifier SignatureVerifier
	log      *zap.Logger
}

func NewPaymentHandler(service booking.BookingUseCase, verifier SignatureVerifier, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, verifier: verifier, log: log.With(zap.String("handler", "payments"))}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/callback", h.callback)
}

func (h *PaymentHandler) callback(c *gin.Context) {
	var cb payment.Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.verifier.Verify(cb); err != nil {
		h.log.Warn("payment callback rejected", zap.String("order_ref", cb.OrderRef), zap.Error(err))
		status := http.StatusUnauthorized
		if !errors.Is(err, payment.ErrBadSignature) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, errorResponse{Error: "invalid signature"})
		return
	}
	if !cb.Succeeded() {
		h.log.Info("unsuccessful payment ignored", zap.String("order_ref", cb.OrderRef), zap.String("status", cb.Status))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	b, err := h.service.ConfirmPayment(c.Request.Context(), booking.PaymentInput{
		BookingID:     cb.OrderRef,
		TransactionID: cb.TransactionID,
		Amount:        cb.Amount.InexactFloat64(),
		Currency:      cb.Currency,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}
