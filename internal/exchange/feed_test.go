package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Joe-Swanson828/prediction-bot/internal/market"
)

func TestPollFeedEmitsTicks(t *testing.T) {
	stub := NewStub(1)
	feed := NewFeed(Config{Provider: ProviderStub, PollIntervalMs: 10}, stub, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ticks := make(chan market.Tick, 16)

	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx, ticks) }()

	select {
	case tk := <-ticks:
		if tk.MarketID == "" || tk.Price <= 0 {
			t.Fatalf("malformed tick %+v", tk)
		}
	case <-ctx.Done():
		t.Fatalf("no tick before timeout")
	}

	cancel()
	if err := <-done; err != context.Canceled && err != context.DeadlineExceeded {
		t.Fatalf("expected context error, got %v", err)
	}
}
