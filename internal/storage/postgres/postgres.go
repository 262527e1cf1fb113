// Package postgres implementa os repositórios do engine sobre database/sql + lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/internal/storage"
	"github.com/radieske/match-bet-platform/pkg/models"
)

//go:embed schema.sql
var schema string

// Store agrupa leituras e o runner de transações
type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

var (
	_ storage.TxRunner = (*Store)(nil)
	_ storage.Tx       = (*pgTx)(nil)
)

// chave do advisory lock que serializa o Migrate entre serviços subindo juntos
const migrateLockKey = 7_261_001

// Migrate aplica o schema (idempotente)
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrateLockKey); err != nil {
		return fmt.Errorf("migrate lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return tx.Commit()
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// WithinTx abre uma transação READ COMMITTED; as linhas mutáveis são travadas com FOR UPDATE
func (s *Store) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// queryer é o que *sql.DB e *sql.Tx têm em comum
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, models.ErrNotFound)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ---- users ----

const userColumns = `id, username, age, gender, lat, lng, city, pref_age_min, pref_age_max,
	pref_distance, interests, bio, photos, matches_count, dates_count, bets_placed, bets_won,
	hide_from_betting, consent_bet_analysis, wallet_balance_usd, created_at, updated_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(r rowScanner) (models.UserProfile, error) {
	var (
		u              models.UserProfile
		age            sql.NullInt64
		lat, lng       sql.NullFloat64
		city           string
		ageMin, ageMax sql.NullInt64
	)
	err := r.Scan(&u.ID, &u.Username, &age, &u.Gender, &lat, &lng, &city, &ageMin, &ageMax,
		&u.Preferences.Distance, pq.Array(&u.Preferences.Interests), &u.Bio, pq.Array(&u.Photos),
		&u.History.MatchesCount, &u.History.DatesCount, &u.History.BetsPlaced, &u.History.BetsWon,
		&u.Privacy.HideFromBetting, &u.Privacy.ConsentBetAnalysis, &u.WalletBalanceUSD, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.UserProfile{}, err
	}
	u.Age = int(age.Int64)
	if lat.Valid && lng.Valid {
		u.Location = &models.Location{Lat: lat.Float64, Lng: lng.Float64, City: city}
	}
	if ageMin.Valid && ageMax.Valid {
		u.Preferences.AgeRange = &models.AgeRange{Min: int(ageMin.Int64), Max: int(ageMax.Int64)}
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.UserProfile, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return models.UserProfile{}, notFound(err, "user", id)
	}
	return u, nil
}

// UpsertUser grava o perfil (menos saldo e contadores, que só mudam via transação)
func (s *Store) UpsertUser(ctx context.Context, u models.UserProfile) error {
	var (
		age            sql.NullInt64
		lat, lng       sql.NullFloat64
		city           string
		ageMin, ageMax sql.NullInt64
	)
	if u.Age > 0 {
		age = sql.NullInt64{Int64: int64(u.Age), Valid: true}
	}
	if u.Location != nil {
		lat = sql.NullFloat64{Float64: u.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: u.Location.Lng, Valid: true}
		city = u.Location.City
	}
	if r := u.Preferences.AgeRange; r != nil {
		ageMin = sql.NullInt64{Int64: int64(r.Min), Valid: true}
		ageMax = sql.NullInt64{Int64: int64(r.Max), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, age, gender, lat, lng, city, pref_age_min, pref_age_max,
			pref_distance, interests, bio, photos, hide_from_betting, consent_bet_analysis)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			username=EXCLUDED.username, age=EXCLUDED.age, gender=EXCLUDED.gender,
			lat=EXCLUDED.lat, lng=EXCLUDED.lng, city=EXCLUDED.city,
			pref_age_min=EXCLUDED.pref_age_min, pref_age_max=EXCLUDED.pref_age_max,
			pref_distance=EXCLUDED.pref_distance, interests=EXCLUDED.interests,
			bio=EXCLUDED.bio, photos=EXCLUDED.photos,
			hide_from_betting=EXCLUDED.hide_from_betting,
			consent_bet_analysis=EXCLUDED.consent_bet_analysis,
			updated_at=now()`,
		u.ID, u.Username, age, u.Gender, lat, lng, city, ageMin, ageMax,
		u.Preferences.Distance, pqStrings(u.Preferences.Interests), u.Bio, pqStrings(u.Photos),
		u.Privacy.HideFromBetting, u.Privacy.ConsentBetAnalysis)
	return err
}

func (s *Store) FindCandidates(ctx context.Context, q models.CandidateQuery) ([]models.UserProfile, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE NOT (id = ANY($1)) AND NOT hide_from_betting
		  AND age IS NOT NULL AND bio <> '' AND cardinality(photos) > 0`
	args := []any{pq.Array(q.ExcludeIDs)}

	if q.AgeRange != nil {
		args = append(args, q.AgeRange.Min, q.AgeRange.Max)
		query += fmt.Sprintf(` AND age BETWEEN $%d AND $%d`, len(args)-1, len(args))
	}
	if b := q.Box; b != nil {
		args = append(args, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
		n := len(args)
		query += fmt.Sprintf(` AND lat BETWEEN $%d AND $%d AND lng BETWEEN $%d AND $%d`, n-3, n-2, n-1, n)
	}
	query += ` ORDER BY id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := s.db.QueryRowContext(ctx, `SELECT wallet_balance_usd FROM users WHERE id=$1`, userID).Scan(&bal)
	if err != nil {
		return decimal.Zero, notFound(err, "user", userID)
	}
	return bal, nil
}

// ---- matches e mensagens ----

const matchColumns = `id, user_a, user_b, status, bets_market_id, date_scheduled, matched_at, outcome, dates_count, created_at`

func scanMatch(r rowScanner) (models.Match, error) {
	var (
		m        models.Match
		marketID sql.NullString
		date, at sql.NullTime
	)
	if err := r.Scan(&m.ID, &m.UserA, &m.UserB, &m.Status, &marketID, &date, &at, &m.Outcome, &m.DatesCount, &m.CreatedAt); err != nil {
		return models.Match{}, err
	}
	m.BetsMarketID = marketID.String
	if date.Valid {
		m.DateScheduled = &date.Time
	}
	if at.Valid {
		m.MatchedAt = &at.Time
	}
	return m, nil
}

func collectMatches(rows *sql.Rows, err error) ([]models.Match, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetMatch(ctx context.Context, id string) (models.Match, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id=$1`, id))
	if err != nil {
		return models.Match{}, notFound(err, "match", id)
	}
	return m, nil
}

func (s *Store) MatchBetween(ctx context.Context, a, b string) (models.Match, error) {
	return matchBetween(ctx, s.db, a, b, false)
}

func matchBetween(ctx context.Context, q queryer, a, b string, forUpdate bool) (models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE (user_a=$1 AND user_b=$2) OR (user_a=$2 AND user_b=$1)`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	m, err := scanMatch(q.QueryRowContext(ctx, query, a, b))
	if err != nil {
		return models.Match{}, notFound(err, "match", a+"/"+b)
	}
	return m, nil
}

func (s *Store) ActiveMatches(ctx context.Context, userID string) ([]models.Match, error) {
	return collectMatches(s.db.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE status=$1 AND (user_a=$2 OR user_b=$2)
		ORDER BY COALESCE(matched_at, created_at) DESC`, models.MatchMatched, userID))
}

func (s *Store) SimilarMatches(ctx context.Context, q models.SimilarMatchQuery) ([]models.Match, error) {
	query := `SELECT ` + prefixed("m.", matchColumns) + ` FROM matches m
		JOIN users ua ON ua.id = m.user_a
		JOIN users ub ON ub.id = m.user_b
		WHERE m.created_at >= $1
		  AND ua.age BETWEEN $2 AND $3
		  AND ub.age BETWEEN $4 AND $5
		ORDER BY m.created_at DESC`
	args := []any{q.Since, q.AgeA - q.Tolerance, q.AgeA + q.Tolerance, q.AgeB - q.Tolerance, q.AgeB + q.Tolerance}
	if q.Limit > 0 {
		query += ` LIMIT $6`
		args = append(args, q.Limit)
	}
	return collectMatches(s.db.QueryContext(ctx, query, args...))
}

func (s *Store) InsertMessage(ctx context.Context, m models.Message) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages (id, match_id, sender_id, text, created_at) VALUES ($1,$2,$3,$4,$5)`,
		m.ID, m.MatchID, m.SenderID, m.Text, m.CreatedAt)
	return err
}

func (s *Store) SetDateScheduled(ctx context.Context, matchID string, at *time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE matches SET date_scheduled=$1 WHERE id=$2`, at, matchID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("match %s: %w", matchID, models.ErrNotFound)
	}
	return nil
}

func (s *Store) RecentMessagesBySender(ctx context.Context, userID string, since time.Time, limit int) ([]models.Message, error) {
	return s.messages(ctx, `sender_id=$1`, userID, since, limit)
}

func (s *Store) MatchMessages(ctx context.Context, matchID string, since time.Time, limit int) ([]models.Message, error) {
	return s.messages(ctx, `match_id=$1`, matchID, since, limit)
}

func (s *Store) messages(ctx context.Context, where, key string, since time.Time, limit int) ([]models.Message, error) {
	query := `SELECT id, match_id, sender_id, text, created_at FROM messages
		WHERE ` + where + ` AND created_at >= $2 ORDER BY created_at DESC`
	args := []any{key, since}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---- bets, mercados e placements ----

const betColumns = `id, market_id, bet_type, description, odds, over_under_value, outcome, custom, created_at`

func scanBet(r rowScanner) (models.Bet, error) {
	var (
		b  models.Bet
		ou sql.NullFloat64
	)
	if err := r.Scan(&b.ID, &b.MarketID, &b.BetType, &b.Description, &b.Odds, &ou, &b.Outcome, &b.Custom, &b.CreatedAt); err != nil {
		return models.Bet{}, err
	}
	if ou.Valid {
		b.OverUnderValue = &ou.Float64
	}
	return b, nil
}

func (s *Store) GetBet(ctx context.Context, id string) (models.Bet, error) {
	b, err := scanBet(s.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1`, id))
	if err != nil {
		return models.Bet{}, notFound(err, "bet", id)
	}
	return b, nil
}

func (s *Store) ListBetsByMarket(ctx context.Context, marketID string) ([]models.Bet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+betColumns+` FROM bets WHERE market_id=$1 ORDER BY created_at, id`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const marketColumns = `id, match_id, status, standard_bets, custom_bets, likes, created_at, closed_at, settled_at`

func scanMarket(r rowScanner) (models.BetsMarket, error) {
	var (
		m               models.BetsMarket
		closed, settled sql.NullTime
	)
	err := r.Scan(&m.ID, &m.MatchID, &m.Status, pq.Array(&m.StandardBets), pq.Array(&m.CustomBets),
		&m.Likes, &m.CreatedAt, &closed, &settled)
	if err != nil {
		return models.BetsMarket{}, err
	}
	if closed.Valid {
		m.ClosedAt = &closed.Time
	}
	if settled.Valid {
		m.SettledAt = &settled.Time
	}
	return m, nil
}

func (s *Store) GetMarket(ctx context.Context, id string) (models.BetsMarket, error) {
	m, err := scanMarket(s.db.QueryRowContext(ctx, `SELECT `+marketColumns+` FROM bets_markets WHERE id=$1`, id))
	if err != nil {
		return models.BetsMarket{}, notFound(err, "market", id)
	}
	return m, nil
}

func (s *Store) ExpiredOpenMarkets(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bm.id FROM bets_markets bm
		JOIN matches m ON m.id = bm.match_id
		WHERE bm.status=$1 AND m.date_scheduled < $2
		ORDER BY bm.id`, models.MarketOpen, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const placementColumns = `id, bet_id, user_id, selection, stake_usd, odds_at_placement, potential_payout_usd, status, created_at`

func scanPlacement(r rowScanner, extra ...any) (models.BetPlacement, error) {
	var p models.BetPlacement
	dest := append([]any{&p.ID, &p.BetID, &p.UserID, &p.Selection, &p.StakeUSD, &p.OddsAtPlacement,
		&p.PotentialPayoutUSD, &p.Status, &p.CreatedAt}, extra...)
	if err := r.Scan(dest...); err != nil {
		return models.BetPlacement{}, err
	}
	return p, nil
}

func collectPlacements(rows *sql.Rows, err error) ([]models.BetPlacement, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.BetPlacement
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Placements(ctx context.Context, betID string) ([]models.BetPlacement, error) {
	return collectPlacements(s.db.QueryContext(ctx, `SELECT `+placementColumns+` FROM bet_placements WHERE bet_id=$1 ORDER BY id`, betID))
}

func (s *Store) BettingHistory(ctx context.Context, userID string, limit int) ([]models.PlacementRecord, error) {
	query := `SELECT ` + prefixed("p.", placementColumns) + `, b.bet_type, b.description
		FROM bet_placements p JOIN bets b ON b.id = p.bet_id
		WHERE p.user_id=$1 ORDER BY p.created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PlacementRecord
	for rows.Next() {
		var rec models.PlacementRecord
		p, err := scanPlacement(rows, &rec.BetType, &rec.Description)
		if err != nil {
			return nil, err
		}
		rec.BetPlacement = p
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) StakeDistribution(ctx context.Context, betID string) (models.StakeDistribution, error) {
	var d models.StakeDistribution
	err := s.db.QueryRowContext(ctx, `SELECT
			COALESCE(SUM(stake_usd), 0),
			COALESCE(SUM(stake_usd) FILTER (WHERE selection='yes'), 0),
			COALESCE(SUM(stake_usd) FILTER (WHERE selection='no'), 0),
			COUNT(*)
		FROM bet_placements WHERE bet_id=$1 AND status=$2`, betID, models.PlacementActive).
		Scan(&d.TotalVolume, &d.YesStakes, &d.NoStakes, &d.BetCount)
	return d, err
}

const parlayColumns = `id, user_id, legs, stake_usd, potential_payout_usd, mode, multiplier, status, created_at`

func scanParlay(r rowScanner) (models.Parlay, error) {
	var (
		p    models.Parlay
		legs jsonLegs
	)
	err := r.Scan(&p.ID, &p.UserID, &legs, &p.StakeUSD, &p.PotentialPayoutUSD, &p.Mode, &p.Multiplier, &p.Status, &p.CreatedAt)
	p.Legs = legs
	return p, err
}

func collectParlays(rows *sql.Rows, err error) ([]models.Parlay, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Parlay
	for rows.Next() {
		p, err := scanParlay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Parlays(ctx context.Context, userID string) ([]models.Parlay, error) {
	return collectParlays(s.db.QueryContext(ctx, `SELECT `+parlayColumns+`
		FROM parlays WHERE user_id=$1 ORDER BY created_at DESC`, userID))
}

// ---- ledger ----

const txColumns = `id, user_id, type, amount_usd, status, external_ref, created_at`

func scanTransaction(r rowScanner) (models.Transaction, error) {
	var t models.Transaction
	err := r.Scan(&t.ID, &t.UserID, &t.Type, &t.AmountUSD, &t.Status, &t.ExternalRef, &t.Timestamp)
	return t, err
}

func (s *Store) Transactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE user_id=$1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
