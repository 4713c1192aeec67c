package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
)

func participantUIDs(c *challenge.Challenge) []string {
	uids := []string{c.Challenger.UID}
	for _, o := range c.Opponents {
		uids = append(uids, o.UID)
	}
	return uids
}

func decodeDoc(row *sql.Row) (*challenge.Challenge, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, challenge.ErrNotFound
		}
		return nil, err
	}
	var c challenge.Challenge
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LockChallenge serializa mutações do mesmo desafio
func (t *Tx) LockChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	return decodeDoc(t.tx.QueryRowContext(ctx, `SELECT doc FROM challenges WHERE id=$1 FOR UPDATE`, id))
}

func (t *Tx) InsertChallenge(ctx context.Context, c *challenge.Challenge) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO challenges
		  (id, challenger_uid, status, participant_uids, next_deadline, doc, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.Challenger.UID, c.Status, pq.Array(participantUIDs(c)), c.NextDeadline(),
		doc, c.Version, c.CreatedAt, c.UpdatedAt)
	return err
}

func (t *Tx) UpdateChallenge(ctx context.Context, c *challenge.Challenge) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE challenges
		SET status=$2, participant_uids=$3, next_deadline=$4, doc=$5, version=$6, updated_at=$7
		WHERE id=$1`,
		c.ID, c.Status, pq.Array(participantUIDs(c)), c.NextDeadline(), doc, c.Version, c.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return challenge.ErrNotFound
	}
	return nil
}

// GetChallenge lê sem lock
func (s *Store) GetChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	return decodeDoc(s.db.QueryRowContext(ctx, `SELECT doc FROM challenges WHERE id=$1`, id))
}

// ListChallengesDue lista desafios com prazo vencido para o supervisor
func (s *Store) ListChallengesDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM challenges
		WHERE status IN ('scorecard-pending','ai-verification-pending','active')
		  AND next_deadline IS NOT NULL AND next_deadline <= $1
		ORDER BY next_deadline
		LIMIT $2`, now, limit)
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

// ListChallengesByUser lista desafios onde o usuário é desafiante ou oponente
func (s *Store) ListChallengesByUser(ctx context.Context, uid string, limit int) ([]challenge.Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM challenges
		WHERE $1 = ANY(participant_uids)
		ORDER BY created_at DESC
		LIMIT $2`, uid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []challenge.Challenge
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var c challenge.Challenge
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
