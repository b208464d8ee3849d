package pg

import (
	"context"
	"fmt"
	"time"

	"coin_rotator/internal/models"
	"coin_rotator/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Store is the durable position store: coins, the pair ratio table, the
// held-coin history and the scout/value audit logs.
type Store struct {
	db db.TxManager
}

func New(txm db.TxManager) *Store {
	return &Store{db: txm}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS coins (
		symbol  text PRIMARY KEY,
		enabled boolean NOT NULL DEFAULT true
	)`,
	`CREATE TABLE IF NOT EXISTS pairs (
		id        bigserial PRIMARY KEY,
		from_coin text NOT NULL REFERENCES coins (symbol),
		to_coin   text NOT NULL REFERENCES coins (symbol),
		ratio     double precision,
		UNIQUE (from_coin, to_coin)
	)`,
	`CREATE TABLE IF NOT EXISTS current_coin_history (
		id     bigserial PRIMARY KEY,
		symbol text NOT NULL REFERENCES coins (symbol),
		at     timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS scout_history (
		id            bigserial PRIMARY KEY,
		pair_id       bigint NOT NULL REFERENCES pairs (id),
		target_ratio  double precision NOT NULL,
		current_price double precision NOT NULL,
		other_price   double precision NOT NULL,
		at            timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS coin_value_history (
		id        bigserial PRIMARY KEY,
		symbol    text NOT NULL,
		balance   double precision NOT NULL,
		usd_price double precision,
		btc_price double precision,
		at        timestamptz NOT NULL
	)`,
}

// Migrate creates the schema. Safe to run on every start.
func (s *Store) Migrate(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Migrate: %w", err)
		}
	}()
	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctxTx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetCoins enables exactly the given symbols, disables everything else and
// creates the full ordered pair matrix for the enabled set. One transaction
// so a partial sync is never visible.
func (s *Store) SetCoins(ctx context.Context, symbols []string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.SetCoins: %w", err)
		}
	}()
	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		for _, sym := range symbols {
			_, err := tx.Exec(ctxTx,
				`INSERT INTO coins (symbol, enabled) VALUES ($1, true)
				 ON CONFLICT (symbol) DO UPDATE SET enabled = true`, sym)
			if err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctxTx,
			`UPDATE coins SET enabled = false WHERE symbol != ALL($1)`, symbols); err != nil {
			return err
		}
		for _, from := range symbols {
			for _, to := range symbols {
				if from == to {
					continue
				}
				_, err := tx.Exec(ctxTx,
					`INSERT INTO pairs (from_coin, to_coin) VALUES ($1, $2)
					 ON CONFLICT (from_coin, to_coin) DO NOTHING`, from, to)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Coins returns all known coins in insertion order.
func (s *Store) Coins(ctx context.Context) (coins []*models.Coin, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Coins: %w", err)
		}
	}()
	rows, err := s.db.Conn().Query(ctx,
		`SELECT symbol, enabled FROM coins ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &models.Coin{}
		if err := rows.Scan(&c.Symbol, &c.Enabled); err != nil {
			return nil, err
		}
		coins = append(coins, c)
	}
	return coins, rows.Err()
}

const pairSelect = `
	SELECT p.id, p.from_coin, fc.enabled, p.to_coin, tc.enabled, p.ratio
	FROM pairs p
	JOIN coins fc ON fc.symbol = p.from_coin
	JOIN coins tc ON tc.symbol = p.to_coin`

func (s *Store) scanPairs(rows pgx.Rows) ([]*models.Pair, error) {
	defer rows.Close()
	var pairs []*models.Pair
	for rows.Next() {
		p := &models.Pair{From: &models.Coin{}, To: &models.Coin{}}
		err := rows.Scan(&p.ID, &p.From.Symbol, &p.From.Enabled, &p.To.Symbol, &p.To.Enabled, &p.Ratio)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// Pairs returns every pair. Enumeration order is by pair id, which fixes
// the jump selector's tie-break.
func (s *Store) Pairs(ctx context.Context) (pairs []*models.Pair, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Pairs: %w", err)
		}
	}()
	rows, err := s.db.Conn().Query(ctx, pairSelect+` ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	return s.scanPairs(rows)
}

// PairsFrom returns all pairs jumping out of the given coin.
func (s *Store) PairsFrom(ctx context.Context, symbol string) (pairs []*models.Pair, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.PairsFrom: %w", err)
		}
	}()
	rows, err := s.db.Conn().Query(ctx,
		pairSelect+` WHERE p.from_coin = $1 ORDER BY p.id`, symbol)
	if err != nil {
		return nil, err
	}
	return s.scanPairs(rows)
}

// PairsTo returns all pairs jumping into the given coin.
func (s *Store) PairsTo(ctx context.Context, symbol string) (pairs []*models.Pair, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.PairsTo: %w", err)
		}
	}()
	rows, err := s.db.Conn().Query(ctx,
		pairSelect+` WHERE p.to_coin = $1 ORDER BY p.id`, symbol)
	if err != nil {
		return nil, err
	}
	return s.scanPairs(rows)
}

// SetPairRatio writes one pair's threshold. Ratio cells are disjoint, so
// parallel initialization writes need no shared transaction.
func (s *Store) SetPairRatio(ctx context.Context, pairID int64, ratio float64) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.SetPairRatio: %w", err)
		}
	}()
	_, err = s.db.Conn().Exec(ctx,
		`UPDATE pairs SET ratio = $2 WHERE id = $1`, pairID, ratio)
	return err
}

// UpdateRatios writes a batch of thresholds in one transaction so a jump
// commit recalibration is atomic.
func (s *Store) UpdateRatios(ctx context.Context, ratios map[int64]float64) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.UpdateRatios: %w", err)
		}
	}()
	if len(ratios) == 0 {
		return nil
	}
	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		for id, ratio := range ratios {
			if _, err := tx.Exec(ctxTx,
				`UPDATE pairs SET ratio = $2 WHERE id = $1`, id, ratio); err != nil {
				return err
			}
		}
		return nil
	})
}

// CurrentCoin returns the held coin, nil before first initialization.
func (s *Store) CurrentCoin(ctx context.Context) (coin *models.Coin, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.CurrentCoin: %w", err)
		}
	}()
	c := &models.Coin{}
	err = s.db.Conn().QueryRow(ctx,
		`SELECT c.symbol, c.enabled
		 FROM current_coin_history h
		 JOIN coins c ON c.symbol = h.symbol
		 ORDER BY h.id DESC LIMIT 1`).Scan(&c.Symbol, &c.Enabled)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SetCurrentCoin durably records the new held coin. Appends to history so
// past positions stay auditable.
func (s *Store) SetCurrentCoin(ctx context.Context, symbol string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.SetCurrentCoin: %w", err)
		}
	}()
	_, err = s.db.Conn().Exec(ctx,
		`INSERT INTO current_coin_history (symbol) VALUES ($1)`, symbol)
	return err
}

// LogScout appends one ratio-evaluation audit record.
func (s *Store) LogScout(ctx context.Context, ev *models.ScoutEvent) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.LogScout: %w", err)
		}
	}()
	_, err = s.db.Conn().Exec(ctx,
		`INSERT INTO scout_history (pair_id, target_ratio, current_price, other_price, at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ev.PairID, ev.TargetRatio, ev.CurrentPrice, ev.OtherPrice, ev.At)
	return err
}

// SaveCoinValue appends one value-tracker snapshot.
func (s *Store) SaveCoinValue(ctx context.Context, cv *models.CoinValue) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.SaveCoinValue: %w", err)
		}
	}()
	_, err = s.db.Conn().Exec(ctx,
		`INSERT INTO coin_value_history (symbol, balance, usd_price, btc_price, at)
		 VALUES ($1, $2, $3, $4, $5)`,
		cv.Symbol, cv.Balance, cv.USDPrice, cv.BTCPrice, cv.At)
	return err
}

// PruneScoutHistory drops scout records older than the retention window.
func (s *Store) PruneScoutHistory(ctx context.Context, olderThan time.Duration) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.PruneScoutHistory: %w", err)
		}
	}()
	_, err = s.db.Conn().Exec(ctx,
		`DELETE FROM scout_history WHERE at < $1`, time.Now().Add(-olderThan))
	return err
}

// PruneValueHistory drops value snapshots older than the retention window.
func (s *Store) PruneValueHistory(ctx context.Context, olderThan time.Duration) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.PruneValueHistory: %w", err)
		}
	}()
	_, err = s.db.Conn().Exec(ctx,
		`DELETE FROM coin_value_history WHERE at < $1`, time.Now().Add(-olderThan))
	return err
}
