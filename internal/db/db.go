package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func New(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name VARCHAR(50) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'user',
		points INTEGER NOT NULL DEFAULT 0,
		avatar_url TEXT NOT NULL DEFAULT '',
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		email_verification_token VARCHAR(64),
		email_verification_expires TIMESTAMP WITH TIME ZONE,
		password_reset_token VARCHAR(64),
		password_reset_expires TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users(LOWER(email));
	CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
	CREATE INDEX IF NOT EXISTS idx_users_verification_token ON users(email_verification_token);
	CREATE INDEX IF NOT EXISTS idx_users_reset_token ON users(password_reset_token);
	CREATE INDEX IF NOT EXISTS idx_users_points ON users(points DESC);

	CREATE TABLE IF NOT EXISTS refresh_tokens (
		user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		token_hash VARCHAR(64) NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_token_hash ON refresh_tokens(token_hash);

	CREATE TABLE IF NOT EXISTS expenses (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		amount NUMERIC(14,2) NOT NULL,
		currency VARCHAR(8) NOT NULL DEFAULT 'USD',
		category VARCHAR(50) NOT NULL,
		merchant VARCHAR(100) NOT NULL DEFAULT '',
		date TIMESTAMP WITH TIME ZONE NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_user_id ON expenses(user_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date);
	CREATE INDEX IF NOT EXISTS idx_expenses_category ON expenses(category);

	CREATE TABLE IF NOT EXISTS budgets (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		period VARCHAR(10) NOT NULL,
		allocations JSONB NOT NULL DEFAULT '[]',
		start_date TIMESTAMP WITH TIME ZONE NOT NULL,
		end_date TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_budgets_user_id ON budgets(user_id);
	CREATE INDEX IF NOT EXISTS idx_budgets_dates ON budgets(start_date, end_date);

	CREATE TABLE IF NOT EXISTS goals (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(100) NOT NULL,
		target_amount NUMERIC(14,2) NOT NULL,
		current_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		monthly_contribution NUMERIC(14,2) NOT NULL DEFAULT 0,
		deadline TIMESTAMP WITH TIME ZONE NOT NULL,
		category VARCHAR(50) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'not-started',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_goals_user_id ON goals(user_id);
	CREATE INDEX IF NOT EXISTS idx_goals_status ON goals(status);
	CREATE INDEX IF NOT EXISTS idx_goals_deadline ON goals(deadline);

	CREATE TABLE IF NOT EXISTS lessons (
		id UUID PRIMARY KEY,
		title VARCHAR(200) NOT NULL,
		slug VARCHAR(200) UNIQUE NOT NULL,
		content_markdown TEXT NOT NULL,
		duration_mins INTEGER NOT NULL,
		quiz JSONB NOT NULL DEFAULT '[]',
		tags TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_lessons_tags ON lessons USING GIN(tags);

	CREATE TABLE IF NOT EXISTS progress (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		lesson_id UUID NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
		status VARCHAR(20) NOT NULL DEFAULT 'not-started',
		score INTEGER,
		completed_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		PRIMARY KEY (user_id, lesson_id)
	);

	CREATE TABLE IF NOT EXISTS portfolios (
		user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		positions JSONB NOT NULL DEFAULT '[]',
		cash NUMERIC(14,2) NOT NULL DEFAULT 0,
		history JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS posts (
		id UUID PRIMARY KEY,
		author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(200) NOT NULL,
		body TEXT NOT NULL,
		tags TEXT[] NOT NULL DEFAULT '{}',
		likes UUID[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_posts_author_id ON posts(author_id);
	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_tags ON posts USING GIN(tags);

	CREATE TABLE IF NOT EXISTS comments (
		id UUID PRIMARY KEY,
		post_id UUID NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		body VARCHAR(1000) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);

	CREATE TABLE IF NOT EXISTS badges (
		id UUID PRIMARY KEY,
		key VARCHAR(50) UNIQUE NOT NULL,
		name VARCHAR(50) NOT NULL,
		description VARCHAR(200) NOT NULL,
		points_required INTEGER NOT NULL,
		icon VARCHAR(200) NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_badges_points_required ON badges(points_required);

	CREATE TABLE IF NOT EXISTS user_badges (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		badge_id UUID NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
		awarded_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		PRIMARY KEY (user_id, badge_id)
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
