package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/match-bet-platform/pkg/models"
)

type pgTx struct{ tx *sql.Tx }

// prefixed qualifica uma lista de colunas com o alias da tabela
func prefixed(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, c := range parts {
		parts[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

// pqStrings grava slice nil como array vazio (colunas NOT NULL)
func pqStrings(s []string) any {
	if s == nil {
		s = []string{}
	}
	return pq.Array(s)
}

// jsonLegs serializa as pernas do parlay em JSONB
type jsonLegs []models.ParlayLeg

func (l jsonLegs) Value() (driver.Value, error) { return json.Marshal([]models.ParlayLeg(l)) }

func (l *jsonLegs) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = nil
		return nil
	}
	return fmt.Errorf("parlay legs: unsupported type %T", src)
}

// exec exige que exatamente uma linha seja afetada
func (t *pgTx) exec(ctx context.Context, what, id, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, models.ErrNotFound)
	}
	return nil
}

// ---- matches ----

func (t *pgTx) MatchBetween(ctx context.Context, a, b string) (models.Match, error) {
	return matchBetween(ctx, t.tx, a, b, true)
}

func (t *pgTx) InsertMatch(ctx context.Context, m models.Match) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO matches (id, user_a, user_b, status, created_at) VALUES ($1,$2,$3,$4,$5)`,
		m.ID, m.UserA, m.UserB, m.Status, m.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("match %s/%s: %w", m.UserA, m.UserB, models.ErrConflict)
	}
	return err
}

func (t *pgTx) PromoteMatch(ctx context.Context, matchID string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE matches SET status=$1, matched_at=$2 WHERE id=$3 AND status=$4`,
		models.MatchMatched, at, matchID, models.MatchPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := t.LockMatch(ctx, matchID); err != nil {
			return err
		}
		return fmt.Errorf("match %s not pending: %w", matchID, models.ErrInvalidState)
	}
	return nil
}

func (t *pgTx) LockMatch(ctx context.Context, matchID string) (models.Match, error) {
	m, err := scanMatch(t.tx.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id=$1 FOR UPDATE`, matchID))
	if err != nil {
		return models.Match{}, notFound(err, "match", matchID)
	}
	return m, nil
}

func (t *pgTx) LinkMarket(ctx context.Context, matchID, marketID string) error {
	return t.exec(ctx, "match", matchID, `UPDATE matches SET bets_market_id=$1 WHERE id=$2`, marketID, matchID)
}

func (t *pgTx) IncrementMatchesCount(ctx context.Context, userID string) error {
	return t.exec(ctx, "user", userID, `UPDATE users SET matches_count = matches_count + 1, updated_at=now() WHERE id=$1`, userID)
}

func (t *pgTx) IncrementBetsPlaced(ctx context.Context, userID string) error {
	return t.exec(ctx, "user", userID, `UPDATE users SET bets_placed = bets_placed + 1, updated_at=now() WHERE id=$1`, userID)
}

func (t *pgTx) IncrementBetsWon(ctx context.Context, userID string) error {
	return t.exec(ctx, "user", userID, `UPDATE users SET bets_won = bets_won + 1, updated_at=now() WHERE id=$1`, userID)
}

// ---- bets e mercados ----

func (t *pgTx) LockBet(ctx context.Context, betID string) (models.Bet, error) {
	b, err := scanBet(t.tx.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1 FOR UPDATE`, betID))
	if err != nil {
		return models.Bet{}, notFound(err, "bet", betID)
	}
	return b, nil
}

// BetOutcome lê sem FOR UPDATE: quem avalia parlays já trava a linha do parlay
func (t *pgTx) BetOutcome(ctx context.Context, betID string) (models.BetOutcome, error) {
	var o models.BetOutcome
	if err := t.tx.QueryRowContext(ctx, `SELECT outcome FROM bets WHERE id=$1`, betID).Scan(&o); err != nil {
		return "", notFound(err, "bet", betID)
	}
	return o, nil
}

// SetBetOutcome só transiciona a partir de pending
func (t *pgTx) SetBetOutcome(ctx context.Context, betID string, outcome models.BetOutcome) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE bets SET outcome=$1 WHERE id=$2 AND outcome=$3`, outcome, betID, models.OutcomePending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bet %s not pending: %w", betID, models.ErrInvalidState)
	}
	return nil
}

func (t *pgTx) SetBetOdds(ctx context.Context, betID string, odds float64) error {
	return t.exec(ctx, "bet", betID, `UPDATE bets SET odds=$1 WHERE id=$2`, odds, betID)
}

func (t *pgTx) LockMarket(ctx context.Context, marketID string) (models.BetsMarket, error) {
	m, err := scanMarket(t.tx.QueryRowContext(ctx, `SELECT `+marketColumns+` FROM bets_markets WHERE id=$1 FOR UPDATE`, marketID))
	if err != nil {
		return models.BetsMarket{}, notFound(err, "market", marketID)
	}
	return m, nil
}

func (t *pgTx) InsertMarket(ctx context.Context, m models.BetsMarket, bets []models.Bet) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO bets_markets (id, match_id, status, standard_bets, custom_bets, likes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.MatchID, m.Status, pqStrings(m.StandardBets), pqStrings(m.CustomBets), m.Likes, m.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("market %s: %w", m.ID, models.ErrConflict)
	}
	if err != nil {
		return err
	}
	for _, b := range bets {
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO bets (id, market_id, bet_type, description, odds, over_under_value, outcome, custom, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			b.ID, m.ID, b.BetType, b.Description, b.Odds, b.OverUnderValue, b.Outcome, b.Custom, b.CreatedAt); err != nil {
			return fmt.Errorf("insert bet %s: %w", b.BetType, err)
		}
	}
	return nil
}

func (t *pgTx) SetMarketStatus(ctx context.Context, marketID string, status models.MarketStatus, at time.Time) error {
	col := ""
	switch status {
	case models.MarketClosed:
		col = ", closed_at=$3"
	case models.MarketSettled:
		col = ", settled_at=$3"
	}
	args := []any{status, marketID}
	if col != "" {
		args = append(args, at)
	}
	return t.exec(ctx, "market", marketID, `UPDATE bets_markets SET status=$1`+col+` WHERE id=$2`, args...)
}

// ---- placements ----

func (t *pgTx) ActivePlacements(ctx context.Context, betID string) ([]models.BetPlacement, error) {
	return collectPlacements(t.tx.QueryContext(ctx, `SELECT `+placementColumns+` FROM bet_placements
		WHERE bet_id=$1 AND status=$2 ORDER BY created_at, id FOR UPDATE`, betID, models.PlacementActive))
}

func (t *pgTx) InsertPlacement(ctx context.Context, p models.BetPlacement) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO bet_placements (`+placementColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.BetID, p.UserID, p.Selection, p.StakeUSD, p.OddsAtPlacement, p.PotentialPayoutUSD, p.Status, p.CreatedAt)
	return err
}

// SetPlacementStatus só transiciona a partir de active
func (t *pgTx) SetPlacementStatus(ctx context.Context, placementID string, status models.PlacementStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE bet_placements SET status=$1 WHERE id=$2 AND status=$3`,
		status, placementID, models.PlacementActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("placement %s not active: %w", placementID, models.ErrInvalidState)
	}
	return nil
}

func (t *pgTx) InsertParlay(ctx context.Context, p models.Parlay) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO parlays (id, user_id, legs, stake_usd, potential_payout_usd, mode, multiplier, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.UserID, jsonLegs(p.Legs), p.StakeUSD, p.PotentialPayoutUSD, p.Mode, p.Multiplier, p.Status, p.CreatedAt)
	return err
}

func (t *pgTx) ActiveParlaysByBet(ctx context.Context, betID string) ([]models.Parlay, error) {
	filter, err := json.Marshal([]map[string]string{{"betId": betID}})
	if err != nil {
		return nil, err
	}
	return collectParlays(t.tx.QueryContext(ctx, `SELECT `+parlayColumns+` FROM parlays
		WHERE status=$1 AND legs @> $2::jsonb ORDER BY id FOR UPDATE`, models.ParlayActive, string(filter)))
}

func (t *pgTx) SetParlayStatus(ctx context.Context, parlayID string, status models.ParlayStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE parlays SET status=$1 WHERE id=$2 AND status=$3`, status, parlayID, models.ParlayActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("parlay %s not active: %w", parlayID, models.ErrInvalidState)
	}
	return nil
}

// ---- carteira ----

func (t *pgTx) LockWallet(ctx context.Context, userID string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := t.tx.QueryRowContext(ctx, `SELECT wallet_balance_usd FROM users WHERE id=$1 FOR UPDATE`, userID).Scan(&bal)
	if err != nil {
		return decimal.Zero, notFound(err, "wallet", userID)
	}
	return bal, nil
}

func (t *pgTx) TransactionByRef(ctx context.Context, userID string, txType models.TransactionType, ref string) (models.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE user_id=$1 AND type=$2 AND external_ref=$3`, userID, txType, ref))
	if err != nil {
		return models.Transaction{}, notFound(err, "transaction", ref)
	}
	return tr, nil
}

// PostLedger grava a linha do ledger e, se concluída, aplica o efeito no saldo.
// O CHECK de saldo >= 0 é a última barreira contra débito maior que o saldo.
func (t *pgTx) PostLedger(ctx context.Context, tr models.Transaction) (decimal.Decimal, error) {
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO transactions (`+txColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		tr.ID, tr.UserID, tr.Type, tr.AmountUSD, tr.Status, tr.ExternalRef, tr.Timestamp); err != nil {
		if isUniqueViolation(err) {
			return decimal.Zero, fmt.Errorf("transaction %s: %w", tr.ExternalRef, models.ErrConflict)
		}
		return decimal.Zero, err
	}

	var bal decimal.Decimal
	delta := decimal.Zero
	if tr.Status == models.TxCompleted {
		delta = tr.SignedAmount()
	}
	err := t.tx.QueryRowContext(ctx, `UPDATE users SET wallet_balance_usd = wallet_balance_usd + $1, updated_at=now()
		WHERE id=$2 RETURNING wallet_balance_usd`, delta, tr.UserID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("wallet %s: %w", tr.UserID, models.ErrNotFound)
	}
	return bal, err
}
