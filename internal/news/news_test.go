package news

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestStubMatchesKeywords(t *testing.T) {
	s := NewStub()
	ctx := context.Background()

	headlines, err := s.Headlines(ctx, "BTC above 100k by Friday")
	if err != nil {
		t.Fatalf("headlines: %v", err)
	}
	if len(headlines) == 0 {
		t.Fatalf("expected canned crypto headlines")
	}

	headlines, err = s.Headlines(ctx, "something unrelated")
	if err != nil || headlines != nil {
		t.Fatalf("expected no headlines for unmatched query, got %v err=%v", headlines, err)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	log := zerolog.Nop()
	p, err := New(Config{Provider: "stub"}, nil, log)
	if err != nil {
		t.Fatalf("stub: %v", err)
	}
	if _, ok := p.(*Stub); !ok {
		t.Fatalf("expected *Stub, got %T", p)
	}

	p, err = New(Config{Provider: "newsapi", APIKey: "k"}, nil, log)
	if err != nil {
		t.Fatalf("newsapi: %v", err)
	}
	if _, ok := p.(*NewsAPI); !ok {
		t.Fatalf("expected *NewsAPI, got %T", p)
	}

	if _, err := New(Config{Provider: "bogus"}, nil, log); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
