package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskIP(t *testing.T) {
	cases := map[string]string{
		"192.168.1.100":                           "192.168.*.*",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334": "2001:db8:85a3:0:*:*:*:*",
		"not-an-ip":                               "***",
		"":                                        "",
	}
	for input, want := range cases {
		if got := MaskIP(input); got != want {
			t.Fatalf("MaskIP(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMaskString(t *testing.T) {
	if got := MaskString("07"); got != "***" {
		t.Fatalf("expected short values fully masked, got %q", got)
	}
	if got := MaskString("Mozilla/5.0"); got != "Mo***.0" {
		t.Fatalf("unexpected mask %q", got)
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-1" {
		t.Fatalf("expected request_id req-1, got %v", got)
	}
}
