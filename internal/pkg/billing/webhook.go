package billing

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Gateway webhook event types the engine acts on.
const (
	EventPaymentCaptured   = "payment.captured"
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentFailed     = "payment.failed"
)

// IsPaymentEvent reports whether the engine processes this event type.
// Everything else is acknowledged and ignored.
func IsPaymentEvent(eventType string) bool {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case EventPaymentCaptured, EventPaymentAuthorized, EventPaymentFailed:
		return true
	default:
		return false
	}
}

// ParsePaymentEvent extracts the normalized payment event from a raw gateway
// webhook body. A missing user note is not a parse error; the engine
// acknowledges such events without acting on them.
func ParsePaymentEvent(payload []byte) (*PaymentEvent, error) {
	type rawPayload struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID       string            `json:"id"`
					OrderID  string            `json:"order_id"`
					Amount   int64             `json:"amount"`
					Currency string            `json:"currency"`
					Notes    map[string]string `json:"notes"`
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}

	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	entity := raw.Payload.Payment.Entity
	if strings.TrimSpace(entity.ID) == "" {
		return nil, errors.New("webhook payload missing payment id")
	}
	if strings.TrimSpace(entity.OrderID) == "" {
		return nil, errors.New("webhook payload missing order id")
	}

	out := &PaymentEvent{
		Event:     strings.ToLower(strings.TrimSpace(raw.Event)),
		PaymentID: strings.TrimSpace(entity.ID),
		OrderID:   strings.TrimSpace(entity.OrderID),
		Amount:    entity.Amount,
		Currency:  strings.ToUpper(strings.TrimSpace(entity.Currency)),
	}

	if v, ok := entity.Notes["user_id"]; ok {
		if id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32); err == nil && id > 0 {
			out.UserID = uint(id)
		}
	}
	if v, ok := entity.Notes["plan_id"]; ok {
		if id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32); err == nil && id > 0 {
			planID := uint(id)
			out.PlanID = &planID
		}
	}

	return out, nil
}
