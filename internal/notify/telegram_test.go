package notify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestDisabledNotifierIsSilent(t *testing.T) {
	tg := NewTelegram("", "", zerolog.Nop())
	if tg.Enabled() {
		t.Fatalf("expected notifier without credentials to be disabled")
	}
	if err := tg.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("disabled notifier must no-op, got %v", err)
	}

	if !NewTelegram("token", "chat", zerolog.Nop()).Enabled() {
		t.Fatalf("expected configured notifier to be enabled")
	}
}
