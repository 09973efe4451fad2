package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrBadSignature = errors.New("payment signature mismatch")

// Callback is the body the payment provider posts after a charge.
type Callback struct {
	OrderRef      string          `json:"order_ref" binding:"required"`
	TransactionID string          `json:"transaction_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	Signature     string          `json:"signature" binding:"required"`
}

// Succeeded reports whether the provider marks the charge as captured.
func (c Callback) Succeeded() bool {
	switch strings.ToLower(c.Status) {
	case "success", "succeeded", "paid", "captured":
		return true
	}
	return false
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns hex(HMAC-SHA256(secret, amount + ":" + order_ref + ":" + transaction_id))
// with the amount rendered with two decimals.
func (v *Verifier) Sign(amount decimal.Decimal, orderRef, transactionID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(amount.StringFixed(2) + ":" + orderRef + ":" + transactionID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) Verify(c Callback) error {
	if len(v.secret) == 0 {
		return errors.New("payment secret is not configured")
	}
	got, err := hex.DecodeString(strings.TrimSpace(c.Signature))
	if err != nil {
		return ErrBadSignature
	}
	want, _ := hex.DecodeString(v.Sign(c.Amount, c.OrderRef, c.TransactionID))
	if !hmac.Equal(got, want) {
		return ErrBadSignature
	}
	return nil
}
