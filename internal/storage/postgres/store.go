package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityRebalancer/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	chain_id      BIGINT      NOT NULL,
	pool_address  TEXT        NOT NULL,
	token0        TEXT        NOT NULL,
	token1        TEXT        NOT NULL,
	fee           INTEGER     NOT NULL,
	tick_spacing  INTEGER     NOT NULL,
	last_block    BIGINT      NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, pool_address)
);

CREATE TABLE IF NOT EXISTS quotes (
	id            BIGSERIAL   PRIMARY KEY,
	chain_id      BIGINT      NOT NULL,
	operation     TEXT        NOT NULL,
	pool_address  TEXT        NOT NULL,
	owner         TEXT        NOT NULL,
	token_id      NUMERIC,
	tick_lower    INTEGER     NOT NULL,
	tick_upper    INTEGER     NOT NULL,
	source        TEXT        NOT NULL,
	zero_for_one  BOOLEAN     NOT NULL,
	amount_in     NUMERIC     NOT NULL,
	amount_out    NUMERIC     NOT NULL,
	amount0       NUMERIC     NOT NULL,
	amount1       NUMERIC     NOT NULL,
	liquidity     NUMERIC,
	amount0_min   NUMERIC     NOT NULL,
	amount1_min   NUMERIC     NOT NULL,
	price_impact  NUMERIC     NOT NULL,
	swap_data     TEXT        NOT NULL,
	candidates    INTEGER     NOT NULL,
	unavailable   TEXT[]      NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS quotes_pool_idx ON quotes (chain_id, pool_address, created_at);
`

// Store persists pools and quotes in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, token0, token1, fee, tick_spacing, last_block, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				fee = EXCLUDED.fee,
				tick_spacing = EXCLUDED.tick_spacing,
				last_block = GREATEST(pools.last_block, EXCLUDED.last_block),
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Address.Hex(),
			pool.Token0.Address.Hex(),
			pool.Token1.Address.Hex(),
			int32(pool.Fee),
			pool.TickSpacing,
			int64(pool.BlockNumber),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert pool: %w", err)
		}
	}
	return nil
}

// PutQuoteBatch inserts solved quotes.
func (s *Store) PutQuoteBatch(ctx context.Context, quotes []model.QuoteRecord) error {
	if len(quotes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, q := range quotes {
		unavailable := q.Unavailable
		if unavailable == nil {
			unavailable = []string{}
		}
		batch.Queue(`
			INSERT INTO quotes (
				chain_id, operation, pool_address, owner, token_id, tick_lower, tick_upper,
				source, zero_for_one, amount_in, amount_out, amount0, amount1, liquidity,
				amount0_min, amount1_min, price_impact, swap_data, candidates, unavailable, created_at
			) VALUES (
				$1, $2, $3, $4, NULLIF($5, '')::numeric, $6, $7,
				$8, $9, $10::numeric, $11::numeric, $12::numeric, $13::numeric, NULLIF($14, '')::numeric,
				$15::numeric, $16::numeric, $17::numeric, $18, $19, $20, $21::timestamptz
			)
		`,
			int64(q.ChainID),
			q.Operation,
			q.Pool,
			q.Owner,
			q.TokenID,
			q.TickLower,
			q.TickUpper,
			q.Source,
			q.ZeroForOne,
			q.AmountIn,
			q.AmountOut,
			q.Amount0,
			q.Amount1,
			q.Liquidity,
			q.Amount0Min,
			q.Amount1Min,
			q.PriceImpact,
			q.SwapData,
			q.Candidates,
			unavailable,
			q.CreatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range quotes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert quote: %w", err)
		}
	}
	return nil
}
