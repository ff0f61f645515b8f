package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/kapu/chessmeet/internal/session"
)

// Repository persists final results durably. Optional: a nil repository is a
// no-op sink.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveFinal upserts one finished session row, keyed by session id.
func (r *Repository) SaveFinal(ctx context.Context, rec session.Record) error {
	if r == nil || r.db == nil {
		return nil
	}
	movesRaw, _ := json.Marshal(rec.MovesSAN)
	durationMS := rec.EndedAt.Sub(rec.CreatedAt).Milliseconds()
	if durationMS < 0 {
		durationMS = 0
	}

	q := `INSERT INTO game_results (
	    session_id, white_name, black_name, variant,
	    winner, reason, moves_san, pgn,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
	  ) ON CONFLICT (session_id) DO UPDATE SET
	    winner=EXCLUDED.winner,
	    reason=EXCLUDED.reason,
	    moves_san=EXCLUDED.moves_san,
	    pgn=EXCLUDED.pgn,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.White, rec.Black, rec.Variant,
		rec.Winner, rec.Reason, string(movesRaw), BuildPGN(rec),
		rec.CreatedAt, rec.EndedAt, durationMS,
	)
	return err
}

// BuildPGN renders the record's SAN moves as PGN text with minimal headers.
func BuildPGN(rec session.Record) string {
	var b strings.Builder
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := pgnResult(rec)
	b.WriteString("[Event \"chessmeet\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(rec.White)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(rec.Black)))
	if rec.Reason != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(rec.Reason)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(rec.MovesSAN[i])))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func pgnResult(rec session.Record) string {
	switch rec.Winner {
	case rec.White:
		if rec.White != "" {
			return "1-0"
		}
	case rec.Black:
		if rec.Black != "" {
			return "0-1"
		}
	}
	if rec.Winner == "" && rec.Reason != string(session.ReasonAbandoned) && rec.Reason != "" {
		return "1/2-1/2"
	}
	return "*"
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
