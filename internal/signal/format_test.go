package signal

import (
	"strings"
	"testing"
)

func TestAcceptRoundTrip(t *testing.T) {
	raw := "Analysis follows.\n" + validBlock
	msg, ok := Accept(raw, "EUR/USD", "1h")
	if !ok {
		t.Fatal("expected block to be accepted")
	}
	if !strings.HasPrefix(msg, Header("EUR/USD", "1h")) {
		t.Fatalf("missing header: %q", msg)
	}
	for _, label := range []string{"*Action:*", "*Entry:*", "*Take Profit:*", "*Stop Loss:*", "*Confidence:* 72", "*Notes:*"} {
		if !strings.Contains(msg, label) {
			t.Errorf("expected %q in %q", label, msg)
		}
	}
	if strings.Contains(msg, "Analysis follows") {
		t.Fatal("preamble must not be delivered")
	}
}

func TestAcceptRejectsMissingConfidence(t *testing.T) {
	raw := strings.Replace(validBlock, "Confidence: 72\n", "", 1)
	if _, ok := Accept(raw, "EUR/USD", "1h"); ok {
		t.Fatal("expected rejection")
	}
}

func TestFormatNormalizesExistingEmphasis(t *testing.T) {
	msg := Format("**Action:** BUY\n__Take  Profit__: 1", "BTC/USDT", "15m")
	if !strings.Contains(msg, "*Action:* BUY") || !strings.Contains(msg, "*Take Profit:* 1") {
		t.Fatalf("unexpected formatting %q", msg)
	}
	if strings.Contains(msg, "**") {
		t.Fatalf("double emphasis left in %q", msg)
	}
}
