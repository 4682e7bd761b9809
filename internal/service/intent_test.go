package service

import (
	"strings"
	"testing"
)

func TestIntentRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		intent PaymentIntent
	}{
		{"new subscription", PaymentIntent{Kind: IntentNewSubscription, ServerID: "de-1", DurationDays: 30, TrafficGB: 100}},
		{"renewal", PaymentIntent{Kind: IntentRenewal, SubscriptionID: "abc-123", ExtraDays: 90}},
		{"traffic reset", PaymentIntent{Kind: IntentTrafficReset, SubscriptionID: "abc-123"}},
		{"traffic add", PaymentIntent{Kind: IntentTrafficAdd, SubscriptionID: "abc-123", DeltaGB: 100}},
		{"traffic remove", PaymentIntent{Kind: IntentTrafficAdd, SubscriptionID: "abc-123", DeltaGB: -50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := EncodeIntent(tt.intent)
			if err != nil {
				t.Fatalf("EncodeIntent() error = %v", err)
			}
			got, err := DecodeIntent(payload)
			if err != nil {
				t.Fatalf("DecodeIntent() error = %v", err)
			}
			if got != tt.intent {
				t.Errorf("round trip = %+v, want %+v", got, tt.intent)
			}
		})
	}
}

func TestIntentValidation(t *testing.T) {
	tests := []struct {
		name   string
		intent PaymentIntent
	}{
		{"unknown kind", PaymentIntent{Kind: "refund"}},
		{"empty kind", PaymentIntent{}},
		{"new subscription without server", PaymentIntent{Kind: IntentNewSubscription, DurationDays: 30}},
		{"new subscription without duration", PaymentIntent{Kind: IntentNewSubscription, ServerID: "de-1"}},
		{"renewal without subscription", PaymentIntent{Kind: IntentRenewal, ExtraDays: 30}},
		{"renewal with zero days", PaymentIntent{Kind: IntentRenewal, SubscriptionID: "abc"}},
		{"traffic add with zero delta", PaymentIntent{Kind: IntentTrafficAdd, SubscriptionID: "abc"}},
		{"traffic reset without subscription", PaymentIntent{Kind: IntentTrafficReset}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeIntent(tt.intent); err == nil {
				t.Errorf("EncodeIntent(%+v) succeeded, want error", tt.intent)
			}
		})
	}
}

func TestDecodeIntentRejectsMalformedPayload(t *testing.T) {
	for _, payload := range []string{"", "not json", `{"kind":"refund"}`, `{}`} {
		if _, err := DecodeIntent(payload); err == nil {
			t.Errorf("DecodeIntent(%q) succeeded, want error", payload)
		}
	}
}

func TestEncodedPayloadStaysSmall(t *testing.T) {
	payload, err := EncodeIntent(PaymentIntent{
		Kind: IntentNewSubscription, ServerID: strings.Repeat("x", 64), DurationDays: 365, TrafficGB: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(payload) > 512 {
		t.Errorf("payload length = %d, want well under the gateway's 4096 cap", len(payload))
	}
}
