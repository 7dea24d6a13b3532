package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrPortfolioNotFound = errors.New("portfolio not found")

// Position is one holding in a practice portfolio. EntryPrice is the
// weighted average cost across all buys of the symbol.
type Position struct {
	Symbol     string  `json:"symbol"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entryPrice"`
}

// Trade is one executed buy or sell, kept as an append-only history on the
// portfolio row.
type Trade struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	ExecutedAt time.Time `json:"executedAt"`
}

type Portfolio struct {
	UserID    uuid.UUID  `json:"-"`
	Positions []Position `json:"positions"`
	Cash      float64    `json:"cash"`
	History   []Trade    `json:"history"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type PortfolioRepository struct {
	db *DB
}

func NewPortfolioRepository(db *DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

func (r *PortfolioRepository) Get(ctx context.Context, userID uuid.UUID) (*Portfolio, error) {
	query := `
		SELECT user_id, positions, cash, history, created_at, updated_at
		FROM portfolios WHERE user_id = $1
	`
	p := &Portfolio{}
	var positions, history []byte
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &positions, &p.Cash, &history, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPortfolioNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(positions, &p.Positions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &p.History); err != nil {
		return nil, err
	}
	return p, nil
}

// Create seeds a fresh portfolio with starting cash and no positions.
func (r *PortfolioRepository) Create(ctx context.Context, userID uuid.UUID, startingCash float64) (*Portfolio, error) {
	query := `
		INSERT INTO portfolios (user_id, positions, cash, history, created_at, updated_at)
		VALUES ($1, '[]', $2, '[]', NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userID, startingCash); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

// Save persists the full portfolio state. Callers serialize trade execution
// per user, so last-write-wins here is acceptable.
func (r *PortfolioRepository) Save(ctx context.Context, p *Portfolio) error {
	positions, err := json.Marshal(p.Positions)
	if err != nil {
		return err
	}
	history, err := json.Marshal(p.History)
	if err != nil {
		return err
	}
	query := `
		UPDATE portfolios
		SET positions = $2, cash = $3, history = $4, updated_at = NOW()
		WHERE user_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, p.UserID, positions, p.Cash, history)
	if err != nil {
		return err
	}
	return expectRow(result, ErrPortfolioNotFound)
}

// Reset wipes positions and history and restores the starting cash.
func (r *PortfolioRepository) Reset(ctx context.Context, userID uuid.UUID, startingCash float64) error {
	query := `
		UPDATE portfolios
		SET positions = '[]', cash = $2, history = '[]', updated_at = NOW()
		WHERE user_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, userID, startingCash)
	if err != nil {
		return err
	}
	return expectRow(result, ErrPortfolioNotFound)
}
