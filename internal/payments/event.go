package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event types delivered by the gateway. Only completed checkouts grant
// credits; everything else is acknowledged and ignored.
const (
	EventCheckoutCompleted = "checkout.completed"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

// Event is a decoded webhook delivery.
type Event struct {
	Type          string `json:"type"`
	TransactionID string `json:"transactionId"`
	AccountID     string `json:"accountId"`
	Credits       int64  `json:"creditsGranted"`
}

// GrantsCredits reports whether the event carries a credit grant.
func (event Event) GrantsCredits() bool {
	return event.Type == EventCheckoutCompleted
}

// ParseEvent decodes a webhook payload. For credit-granting events the
// transaction id, account id, and a positive credit count are required.
func ParseEvent(payload []byte) (Event, error) {
	var event Event
	decoder := json.NewDecoder(strings.NewReader(string(payload)))
	if err := decoder.Decode(&event); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(event.Type) == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	if !event.GrantsCredits() {
		return event, nil
	}
	if strings.TrimSpace(event.TransactionID) == "" {
		return Event{}, fmt.Errorf("%w: missing transaction id", ErrMalformedEvent)
	}
	if strings.TrimSpace(event.AccountID) == "" {
		return Event{}, fmt.Errorf("%w: missing account id", ErrMalformedEvent)
	}
	if event.Credits <= 0 {
		return Event{}, fmt.Errorf("%w: credits must be positive", ErrMalformedEvent)
	}
	return event, nil
}
