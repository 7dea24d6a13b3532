// Package simulator implements the practice trading environment: a mock
// market that drifts on a ticker, practice portfolios funded with play
// money, and a websocket feed of live quotes.
package simulator

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/finwise/backend/internal/cache"
)

const (
	marketCacheKey = "simulator:market"
	marketCacheTTL = 5 * time.Second

	// Per-tick drift bound as a fraction of price.
	maxDriftPerTick = 0.015
)

// Quote is a single instrument's current state.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Change    float64   `json:"change"`
	ChangePct float64   `json:"changePct"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type instrument struct {
	symbol    string
	name      string
	basePrice float64
}

// The mock universe. Prices start at base and random-walk from there.
var instruments = []instrument{
	{"FNWX", "FinWise Index Fund", 150.00},
	{"TECH", "Tech Growth ETF", 320.50},
	{"SAFE", "Stable Bond Fund", 98.75},
	{"GRN", "Green Energy Fund", 74.20},
	{"GLD", "Gold Trust", 185.30},
	{"REIT", "Real Estate Trust", 62.80},
	{"EMKT", "Emerging Markets", 44.10},
	{"CRYP", "Crypto Basket", 28.90},
}

// Market holds in-memory quotes and mutates them on each tick. Reads take
// the lock briefly and copy; the websocket hub and the REST handler never
// see a quote mid-update.
type Market struct {
	mu     sync.RWMutex
	quotes map[string]*Quote
	rng    *rand.Rand
	cache  *cache.Cache
}

func NewMarket(c *cache.Cache) *Market {
	quotes := make(map[string]*Quote, len(instruments))
	now := time.Now()
	for _, inst := range instruments {
		quotes[inst.symbol] = &Quote{
			Symbol:    inst.symbol,
			Name:      inst.name,
			Price:     inst.basePrice,
			UpdatedAt: now,
		}
	}
	return &Market{
		quotes: quotes,
		rng:    rand.New(rand.NewSource(now.UnixNano())),
		cache:  c,
	}
}

// Tick applies one random-walk step to every instrument and refreshes the
// cached snapshot.
func (m *Market) Tick(ctx context.Context) []Quote {
	m.mu.Lock()
	now := time.Now()
	for _, q := range m.quotes {
		drift := (m.rng.Float64()*2 - 1) * maxDriftPerTick
		old := q.Price
		q.Price = round2(q.Price * (1 + drift))
		if q.Price < 0.01 {
			q.Price = 0.01
		}
		q.Change = round2(q.Price - old)
		if old > 0 {
			q.ChangePct = round2((q.Price - old) / old * 100)
		}
		q.UpdatedAt = now
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.cacheSnapshot(ctx, snapshot)
	return snapshot
}

// Snapshot returns the current quotes sorted by symbol.
func (m *Market) Snapshot(ctx context.Context) []Quote {
	if m.cache != nil {
		if raw, ok := m.cache.Get(ctx, marketCacheKey); ok {
			var quotes []Quote
			if err := json.Unmarshal([]byte(raw), &quotes); err == nil {
				return quotes
			}
		}
	}

	m.mu.RLock()
	snapshot := m.snapshotLocked()
	m.mu.RUnlock()

	m.cacheSnapshot(ctx, snapshot)
	return snapshot
}

// Price returns the live price for a symbol, bypassing the cache so trades
// always execute at the current quote.
func (m *Market) Price(symbol string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotes[symbol]
	if !ok {
		return 0, false
	}
	return q.Price, true
}

func (m *Market) snapshotLocked() []Quote {
	snapshot := make([]Quote, 0, len(m.quotes))
	for _, inst := range instruments {
		if q, ok := m.quotes[inst.symbol]; ok {
			snapshot = append(snapshot, *q)
		}
	}
	return snapshot
}

func (m *Market) cacheSnapshot(ctx context.Context, quotes []Quote) {
	if m.cache == nil {
		return
	}
	raw, err := json.Marshal(quotes)
	if err != nil {
		return
	}
	_ = m.cache.Set(ctx, marketCacheKey, string(raw), marketCacheTTL)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
