package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTimeframeToSeconds(t *testing.T) {
	cases := map[string]int{
		"15m":  900,
		"":     3600,
		"2d":   172800,
		"1h":   3600,
		"4H":   14400,
		"30s":  30,
		"1w":   604800,
		"abc":  3600,
		"1mn":  2592000,
		"3MN":  7776000,
		"1y":   3600,
		"0h":   3600,
		" 5m ": 300,

		"99999999999999w": 3600,
	}
	for in, want := range cases {
		if got := TimeframeToSeconds(in); got != want {
			t.Errorf("TimeframeToSeconds(%q) = %d, want %d", in, got, want)
		}
	}
	if TimeframeTTL("15m") != 15*time.Minute {
		t.Fatalf("unexpected ttl: %s", TimeframeTTL("15m"))
	}
}

func TestValidTimeframe(t *testing.T) {
	for _, tf := range []string{"1m", "4h", "1mn", "9999d"} {
		if !ValidTimeframe(tf) {
			t.Errorf("expected %q to be valid", tf)
		}
	}
	for _, tf := range []string{"", "1y", "mn", "10000d", "99999999999999w"} {
		if ValidTimeframe(tf) {
			t.Errorf("expected %q to be rejected", tf)
		}
	}
}

func TestParseJobType(t *testing.T) {
	for _, jt := range JobTypes {
		got, err := ParseJobType(string(jt))
		if err != nil || got != jt {
			t.Fatalf("expected %s to parse, got %s err=%v", jt, got, err)
		}
	}
	if _, err := ParseJobType("summarize"); !errors.Is(err, ErrUnsupportedJob) {
		t.Fatalf("expected unsupported job error, got %v", err)
	}
}

func TestPayloadRoundTripKeepsVariant(t *testing.T) {
	payloads := []JobPayload{
		TradePayload{ChatID: 1, Text: "EUR/USD 1h"},
		PhotoPayload{ChatID: 2, FileURL: "https://example.test/chart.jpg"},
		AdminServicePayload{ChatID: 3, Service: "stats"},
		UserServicePayload{ChatID: 4, Service: "help"},
		BroadcastPayload{ChatIDs: []int64{5, 6}, Service: "market-hours"},
	}
	for _, p := range payloads {
		jt, raw, err := EncodePayload(p)
		if err != nil {
			t.Fatalf("encode %T: %v", p, err)
		}
		got, err := DecodePayload(jt, raw)
		if err != nil {
			t.Fatalf("decode %s: %v", jt, err)
		}
		if got.JobType() != p.JobType() || fmt.Sprint(got) != fmt.Sprint(p) {
			t.Fatalf("payload mismatch: got %+v want %+v", got, p)
		}
	}
}

func TestDecodePayloadRejectsUnknownType(t *testing.T) {
	if _, err := DecodePayload("summarize", []byte(`{}`)); !errors.Is(err, ErrUnsupportedJob) {
		t.Fatalf("expected unsupported job error, got %v", err)
	}
}

func TestPayloadChatID(t *testing.T) {
	if id, ok := PayloadChatID(TradePayload{ChatID: 9}); !ok || id != 9 {
		t.Fatalf("expected chat 9, got %d %v", id, ok)
	}
	if _, ok := PayloadChatID(BroadcastPayload{ChatIDs: []int64{1}}); ok {
		t.Fatal("broadcast payload has no single originating chat")
	}
}

func TestRetryableClassification(t *testing.T) {
	if Retryable(InvalidInput("bad")) {
		t.Fatal("invalid input must not be retryable")
	}
	if Retryable(Transient(fmt.Errorf("wrapped: %w", ErrSignalRejected))) {
		t.Fatal("semantic failure must not be retryable even when marked transient")
	}
	if !Retryable(fmt.Errorf("fetch: %w", Transient(errors.New("timeout")))) {
		t.Fatal("wrapped transient error should be retryable")
	}
	if Retryable(errors.New("boom")) {
		t.Fatal("unclassified errors are terminal")
	}
}

func TestNoticeFor(t *testing.T) {
	if _, ok := NoticeFor(JobTrade, ErrUnsupportedJob); ok {
		t.Fatal("unsupported jobs are not notified")
	}
	if msg, _ := NoticeFor(JobTrade, fmt.Errorf("x: %w", ErrSignalRejected)); msg != MsgSignalFailedTrade {
		t.Fatalf("unexpected message %q", msg)
	}
	if msg, _ := NoticeFor(JobAnalyzePhoto, ErrSignalRejected); msg != MsgSignalFailedPhoto {
		t.Fatalf("unexpected message %q", msg)
	}
	if msg, _ := NoticeFor(JobTrade, InvalidInput("no timeframe")); msg != MsgInvalidTrade {
		t.Fatalf("unexpected message %q", msg)
	}
	if msg, _ := NoticeFor(JobTrade, Transient(errors.New("dial tcp"))); msg != MsgServiceUnavailable {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestCandleSeriesReversed(t *testing.T) {
	s := CandleSeries{
		{Datetime: "3", Close: decimal.NewFromInt(3)},
		{Datetime: "2", Close: decimal.NewFromInt(2)},
		{Datetime: "1", Close: decimal.NewFromInt(1)},
	}
	r := s.Reversed()
	if r[0].Datetime != "1" || r[2].Datetime != "3" {
		t.Fatalf("unexpected order: %+v", r)
	}
	if s[0].Datetime != "3" {
		t.Fatal("Reversed must not mutate the receiver")
	}
	closes := r.Closes()
	if closes[0] != 1 || closes[2] != 3 {
		t.Fatalf("unexpected closes: %v", closes)
	}
}

func TestParseAction(t *testing.T) {
	if a, ok := ParseAction("no  trade"); !ok || a != ActionNoTrade {
		t.Fatalf("expected NO TRADE, got %q %v", a, ok)
	}
	if _, ok := ParseAction("HOLD"); ok {
		t.Fatal("HOLD is not a valid action")
	}
}
