package service

import (
	"encoding/json"
	"fmt"
)

// Payment intent kinds. The intent is fixed at invoice-creation time and
// decoded exhaustively at settlement, so a confirmed invoice can only ever
// apply the effect it was created for.
const (
	IntentNewSubscription = "new_subscription"
	IntentRenewal         = "renewal"
	IntentTrafficReset    = "traffic_reset"
	IntentTrafficAdd      = "traffic_add"
)

// PaymentIntent describes the effect a paid invoice applies. Kind selects
// which field group is meaningful; Validate enforces that.
type PaymentIntent struct {
	Kind string `json:"kind"`

	// new_subscription
	ServerID     string `json:"server_id,omitempty"`
	DurationDays int    `json:"duration_days,omitempty"`
	TrafficGB    int    `json:"traffic_gb,omitempty"`

	// renewal, traffic_reset, traffic_add
	SubscriptionID string `json:"subscription_id,omitempty"`

	// renewal
	ExtraDays int `json:"extra_days,omitempty"`

	// traffic_add
	DeltaGB int `json:"delta_gb,omitempty"`
}

// Validate checks the field group required by the intent's kind.
func (i PaymentIntent) Validate() error {
	switch i.Kind {
	case IntentNewSubscription:
		if i.ServerID == "" || i.DurationDays <= 0 {
			return fmt.Errorf("new_subscription intent requires server_id and positive duration_days")
		}
	case IntentRenewal:
		if i.SubscriptionID == "" || i.ExtraDays <= 0 {
			return fmt.Errorf("renewal intent requires subscription_id and positive extra_days")
		}
	case IntentTrafficReset:
		if i.SubscriptionID == "" {
			return fmt.Errorf("traffic_reset intent requires subscription_id")
		}
	case IntentTrafficAdd:
		if i.SubscriptionID == "" || i.DeltaGB == 0 {
			return fmt.Errorf("traffic_add intent requires subscription_id and nonzero delta_gb")
		}
	default:
		return fmt.Errorf("unknown payment intent kind %q", i.Kind)
	}
	return nil
}

// EncodeIntent serialises an intent for storage on the pending payment row.
func EncodeIntent(i PaymentIntent) (string, error) {
	if err := i.Validate(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(i)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeIntent parses and validates a stored intent payload.
func DecodeIntent(payload string) (PaymentIntent, error) {
	var i PaymentIntent
	if err := json.Unmarshal([]byte(payload), &i); err != nil {
		return PaymentIntent{}, fmt.Errorf("decode payment intent: %w", err)
	}
	if err := i.Validate(); err != nil {
		return PaymentIntent{}, err
	}
	return i, nil
}
