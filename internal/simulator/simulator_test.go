package simulator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/finwise/backend/internal/db"
)

func TestApplyBuyWeightedAverage(t *testing.T) {
	p := &db.Portfolio{Cash: 10000}

	if err := applyBuy(p, "FNWX", 10, 100); err != nil {
		t.Fatalf("first buy failed: %v", err)
	}
	if err := applyBuy(p, "FNWX", 10, 200); err != nil {
		t.Fatalf("second buy failed: %v", err)
	}

	if len(p.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(p.Positions))
	}
	pos := p.Positions[0]
	if pos.Quantity != 20 {
		t.Errorf("quantity = %v, want 20", pos.Quantity)
	}
	// 10*100 + 10*200 over 20 shares.
	if pos.EntryPrice != 150 {
		t.Errorf("entry price = %v, want 150", pos.EntryPrice)
	}
	if p.Cash != 7000 {
		t.Errorf("cash = %v, want 7000", p.Cash)
	}
}

func TestApplyBuyInsufficientCash(t *testing.T) {
	p := &db.Portfolio{Cash: 100}

	err := applyBuy(p, "FNWX", 10, 100)
	if err != ErrInsufficientCash {
		t.Errorf("applyBuy() error = %v, want ErrInsufficientCash", err)
	}
	if p.Cash != 100 {
		t.Errorf("cash changed on rejected buy: %v", p.Cash)
	}
	if len(p.Positions) != 0 {
		t.Error("position opened on rejected buy")
	}
}

func TestApplySell(t *testing.T) {
	p := &db.Portfolio{
		Cash: 1000,
		Positions: []db.Position{
			{Symbol: "FNWX", Quantity: 10, EntryPrice: 100},
		},
	}

	if err := applySell(p, "FNWX", 4, 150); err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if p.Cash != 1600 {
		t.Errorf("cash = %v, want 1600", p.Cash)
	}
	if p.Positions[0].Quantity != 6 {
		t.Errorf("quantity = %v, want 6", p.Positions[0].Quantity)
	}
	// Entry price stays put on sells.
	if p.Positions[0].EntryPrice != 100 {
		t.Errorf("entry price changed on sell: %v", p.Positions[0].EntryPrice)
	}
}

func TestApplySellClosesPosition(t *testing.T) {
	p := &db.Portfolio{
		Cash: 0,
		Positions: []db.Position{
			{Symbol: "FNWX", Quantity: 5, EntryPrice: 100},
		},
	}

	if err := applySell(p, "FNWX", 5, 120); err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if len(p.Positions) != 0 {
		t.Errorf("expected position removed, got %d positions", len(p.Positions))
	}
	if p.Cash != 600 {
		t.Errorf("cash = %v, want 600", p.Cash)
	}
}

func TestApplySellInsufficientQuantity(t *testing.T) {
	p := &db.Portfolio{
		Positions: []db.Position{
			{Symbol: "FNWX", Quantity: 2, EntryPrice: 100},
		},
	}

	if err := applySell(p, "FNWX", 5, 100); err != ErrInsufficientQty {
		t.Errorf("oversell error = %v, want ErrInsufficientQty", err)
	}
	if err := applySell(p, "NOPE", 1, 100); err != ErrInsufficientQty {
		t.Errorf("unknown-position sell error = %v, want ErrInsufficientQty", err)
	}
}

func TestMarketTick(t *testing.T) {
	m := NewMarket(nil)
	ctx := context.Background()

	before := m.Snapshot(ctx)
	quotes := m.Tick(ctx)

	if len(quotes) != len(instruments) {
		t.Fatalf("expected %d quotes, got %d", len(instruments), len(quotes))
	}

	bySymbol := make(map[string]Quote, len(before))
	for _, q := range before {
		bySymbol[q.Symbol] = q
	}

	for _, q := range quotes {
		if q.Price <= 0 {
			t.Errorf("%s: price went non-positive: %v", q.Symbol, q.Price)
		}
		prev, ok := bySymbol[q.Symbol]
		if !ok {
			t.Errorf("unexpected symbol %s", q.Symbol)
			continue
		}
		drift := math.Abs(q.Price-prev.Price) / prev.Price
		// Allow rounding slack on top of the drift bound.
		if drift > maxDriftPerTick+0.001 {
			t.Errorf("%s: drift %v exceeds bound", q.Symbol, drift)
		}
	}
}

func TestMarketPrice(t *testing.T) {
	m := NewMarket(nil)

	if _, ok := m.Price("FNWX"); !ok {
		t.Error("expected FNWX to be quoted")
	}
	if _, ok := m.Price("NOPE"); ok {
		t.Error("unknown symbol should not be quoted")
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{hub: hub, send: make(chan []Quote, 1)}
	hub.register <- client

	// The hub goroutine handles events in order, so once a broadcast is
	// delivered the earlier registration has been processed.
	hub.Broadcast([]Quote{{Symbol: "FNWX", Price: 100}})
	select {
	case quotes := <-client.send:
		if len(quotes) != 1 || quotes[0].Symbol != "FNWX" {
			t.Errorf("unexpected broadcast payload: %+v", quotes)
		}
	case <-time.After(time.Second):
		t.Fatal("expected broadcast to reach the client")
	}

	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}

	hub.unregister <- client
	// Unregister closes the send channel once the client is removed.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("expected send channel to close on unregister")
	}

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() after unregister = %d, want 0", got)
	}
}

func TestHubShutdownReleasesDetachingClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ran := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(ran)
	}()

	client := &Client{hub: hub, send: make(chan []Quote, 1)}
	hub.register <- client

	cancel()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop on context cancellation")
	}

	// A client noticing its peer vanished after shutdown must not block
	// forever on the unregister channel nobody drains anymore.
	detached := make(chan struct{})
	go func() {
		client.detach()
		close(detached)
	}()
	select {
	case <-detached:
	case <-time.After(time.Second):
		t.Fatal("detach blocked after hub shutdown")
	}
}
