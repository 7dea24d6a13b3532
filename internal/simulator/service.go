package simulator

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/db"
)

// StartingCash is the play-money balance every new portfolio begins with.
const StartingCash = 10000

var (
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrInsufficientQty  = errors.New("insufficient quantity")
)

// Sides of a trade.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Service executes practice trades. Trades for the same user are serialized
// through a per-user mutex so concurrent buys cannot both spend the same
// cash; different users trade in parallel.
type Service struct {
	portfolios *db.PortfolioRepository
	market     *Market

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewService(portfolios *db.PortfolioRepository, market *Market) *Service {
	return &Service{
		portfolios: portfolios,
		market:     market,
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Service) userLock(userID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// Portfolio returns the user's portfolio, creating it with starting cash on
// first access.
func (s *Service) Portfolio(ctx context.Context, userID uuid.UUID) (*db.Portfolio, error) {
	portfolio, err := s.portfolios.Get(ctx, userID)
	if err == nil {
		return portfolio, nil
	}
	if !errors.Is(err, db.ErrPortfolioNotFound) {
		return nil, err
	}
	return s.portfolios.Create(ctx, userID, StartingCash)
}

// View returns a portfolio without creating one, for looking at other
// users.
func (s *Service) View(ctx context.Context, userID uuid.UUID) (*db.Portfolio, error) {
	return s.portfolios.Get(ctx, userID)
}

// Trade executes a buy or sell at the current market price and returns the
// updated portfolio.
func (s *Service) Trade(ctx context.Context, userID uuid.UUID, side, symbol string, quantity float64) (*db.Portfolio, error) {
	price, ok := s.market.Price(symbol)
	if !ok {
		return nil, ErrUnknownSymbol
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	portfolio, err := s.Portfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch side {
	case SideBuy:
		err = applyBuy(portfolio, symbol, quantity, price)
	case SideSell:
		err = applySell(portfolio, symbol, quantity, price)
	default:
		return nil, errors.New("side must be buy or sell")
	}
	if err != nil {
		return nil, err
	}

	portfolio.History = append(portfolio.History, db.Trade{
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		ExecutedAt: time.Now(),
	})

	if err := s.portfolios.Save(ctx, portfolio); err != nil {
		return nil, err
	}
	return portfolio, nil
}

// Reset wipes the portfolio back to starting cash.
func (s *Service) Reset(ctx context.Context, userID uuid.UUID) (*db.Portfolio, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.Portfolio(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.portfolios.Reset(ctx, userID, StartingCash); err != nil {
		return nil, err
	}
	return s.portfolios.Get(ctx, userID)
}

// applyBuy debits cash and folds the purchase into the position at a
// weighted average entry price.
func applyBuy(p *db.Portfolio, symbol string, quantity, price float64) error {
	cost := round2(quantity * price)
	if cost > p.Cash {
		return ErrInsufficientCash
	}
	p.Cash = round2(p.Cash - cost)

	for i := range p.Positions {
		pos := &p.Positions[i]
		if pos.Symbol != symbol {
			continue
		}
		totalCost := pos.EntryPrice*pos.Quantity + price*quantity
		pos.Quantity += quantity
		pos.EntryPrice = round4(totalCost / pos.Quantity)
		return nil
	}

	p.Positions = append(p.Positions, db.Position{
		Symbol:     symbol,
		Quantity:   quantity,
		EntryPrice: price,
	})
	return nil
}

// applySell credits cash and shrinks or removes the position. The entry
// price is untouched; selling realizes gains without rewriting cost basis.
func applySell(p *db.Portfolio, symbol string, quantity, price float64) error {
	for i := range p.Positions {
		pos := &p.Positions[i]
		if pos.Symbol != symbol {
			continue
		}
		if quantity > pos.Quantity {
			return ErrInsufficientQty
		}
		pos.Quantity -= quantity
		p.Cash = round2(p.Cash + quantity*price)
		if pos.Quantity <= 1e-9 {
			p.Positions = append(p.Positions[:i], p.Positions[i+1:]...)
		}
		return nil
	}
	return ErrInsufficientQty
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
