package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stakehouse/rgs/internal/domain"
	"github.com/stakehouse/rgs/internal/infra"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so the recorder works with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresRecorder is the pgx-backed Recorder. game_rounds has a
// primary key on round_id; the append-only rule rides on that
// constraint rather than on an application-side read-check.
type PostgresRecorder struct {
	db DBTX
}

// NewPostgresRecorder creates a recorder over the given pool or transaction.
func NewPostgresRecorder(db DBTX) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

const roundColumns = `
	round_id, session_id, player_id, game_code, recorded_at,
	bet, win, currency, command, debit_tx_id, credit_tx_id,
	outcome_hash, outcome, public_state_before, public_state_after`

func (r *PostgresRecorder) RecordRound(ctx context.Context, record *domain.GameRoundRecord) error {
	cmdJSON, err := json.Marshal(record.Command)
	if err != nil {
		return domain.ErrAuditWriteFailed(record.RoundID, err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO game_rounds (`+roundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		record.RoundID,
		record.SessionID,
		record.PlayerID,
		record.GameCode,
		record.Timestamp,
		infra.DecimalToNumeric(record.Bet),
		infra.DecimalToNumeric(record.Win),
		record.Currency,
		cmdJSON,
		nullable(record.DebitTxID),
		nullable(record.CreditTxID),
		record.OutcomeHash,
		rawOrNull(record.Outcome),
		rawOrNull(record.PublicStateBefore),
		rawOrNull(record.PublicStateAfter),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAuditWriteFailed(record.RoundID, fmt.Errorf("round already recorded"))
		}
		return domain.ErrAuditWriteFailed(record.RoundID, err)
	}
	return nil
}

func (r *PostgresRecorder) GetRound(ctx context.Context, roundID string) (*domain.GameRoundRecord, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+roundColumns+` FROM game_rounds WHERE round_id = $1`, roundID)
	record, err := scanRound(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("round %s: %w", roundID, ErrRoundNotFound)
	}
	return record, err
}

func (r *PostgresRecorder) GetSessionRounds(ctx context.Context, sessionID string) ([]*domain.GameRoundRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+roundColumns+` FROM game_rounds
		WHERE session_id = $1
		ORDER BY recorded_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session rounds: %w", err)
	}
	defer rows.Close()

	var out []*domain.GameRoundRecord
	for rows.Next() {
		record, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func scanRound(row pgx.Row) (*domain.GameRoundRecord, error) {
	var record domain.GameRoundRecord
	var bet, win pgtype.Numeric
	var cmdJSON []byte
	var debitTxID, creditTxID *string

	err := row.Scan(
		&record.RoundID,
		&record.SessionID,
		&record.PlayerID,
		&record.GameCode,
		&record.Timestamp,
		&bet,
		&win,
		&record.Currency,
		&cmdJSON,
		&debitTxID,
		&creditTxID,
		&record.OutcomeHash,
		&record.Outcome,
		&record.PublicStateBefore,
		&record.PublicStateAfter,
	)
	if err != nil {
		return nil, fmt.Errorf("scan round: %w", err)
	}

	if record.Bet, err = infra.NumericToDecimal(bet); err != nil {
		return nil, fmt.Errorf("scan bet: %w", err)
	}
	if record.Win, err = infra.NumericToDecimal(win); err != nil {
		return nil, fmt.Errorf("scan win: %w", err)
	}
	if debitTxID != nil {
		record.DebitTxID = *debitTxID
	}
	if creditTxID != nil {
		record.CreditTxID = *creditTxID
	}
	if err := json.Unmarshal(cmdJSON, &record.Command); err != nil {
		return nil, fmt.Errorf("unmarshal round command: %w", err)
	}
	return &record, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rawOrNull(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
