package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	account_number TEXT NOT NULL UNIQUE,
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	balance        NUMERIC(15,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	version        BIGINT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
	id              UUID PRIMARY KEY,
	transaction_id  TEXT NOT NULL UNIQUE,
	from_account_id UUID NOT NULL REFERENCES accounts(id),
	to_account_id   UUID NOT NULL REFERENCES accounts(id),
	amount          NUMERIC(15,2) NOT NULL CHECK (amount > 0),
	status          TEXT NOT NULL,
	error_message   TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at    TIMESTAMPTZ,
	CHECK (from_account_id <> to_account_id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_from_account ON transactions (from_account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_to_account   ON transactions (to_account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_status       ON transactions (status);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at   ON transactions (created_at);

CREATE TABLE IF NOT EXISTS transfer_jobs (
	id             BIGSERIAL PRIMARY KEY,
	transaction_id TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'PENDING',
	attempts       INT NOT NULL DEFAULT 0,
	next_run_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS webhook_jobs (
	id          BIGSERIAL PRIMARY KEY,
	url         TEXT NOT NULL,
	payload     JSONB NOT NULL,
	status      TEXT NOT NULL DEFAULT 'PENDING',
	attempts    INT NOT NULL DEFAULT 0,
	next_run_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
