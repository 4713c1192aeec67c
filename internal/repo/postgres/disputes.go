package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
)

const disputeCols = `id, challenge_id, raised_by, reason, evidence, status, resolution, admin_notes, resolved_by, created_at, resolved_at`

func scanDispute(r rowScanner) (*challenge.Dispute, error) {
	var (
		d        challenge.Dispute
		evidence []byte
		resolved sql.NullTime
	)
	if err := r.Scan(&d.ID, &d.ChallengeID, &d.RaisedBy, &d.Reason, &evidence, &d.Status,
		&d.Resolution, &d.AdminNotes, &d.ResolvedBy, &d.CreatedAt, &resolved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, challenge.ErrNotFound
		}
		return nil, err
	}
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &d.Evidence); err != nil {
			return nil, err
		}
	}
	if resolved.Valid {
		t := resolved.Time
		d.ResolvedAt = &t
	}
	return &d, nil
}

func evidenceJSON(d *challenge.Dispute) ([]byte, error) {
	if d.Evidence == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.Evidence)
}

func (t *Tx) InsertDispute(ctx context.Context, d *challenge.Dispute) error {
	ev, err := evidenceJSON(d)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO disputes (`+disputeCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.ChallengeID, d.RaisedBy, d.Reason, ev, d.Status, d.Resolution,
		d.AdminNotes, d.ResolvedBy, d.CreatedAt, d.ResolvedAt)
	return err
}

func (t *Tx) LockDispute(ctx context.Context, id string) (*challenge.Dispute, error) {
	return scanDispute(t.tx.QueryRowContext(ctx, `SELECT `+disputeCols+` FROM disputes WHERE id=$1 FOR UPDATE`, id))
}

func (t *Tx) UpdateDispute(ctx context.Context, d *challenge.Dispute) error {
	ev, err := evidenceJSON(d)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		UPDATE disputes
		SET evidence=$2, status=$3, resolution=$4, admin_notes=$5, resolved_by=$6, resolved_at=$7
		WHERE id=$1`,
		d.ID, ev, d.Status, d.Resolution, d.AdminNotes, d.ResolvedBy, d.ResolvedAt)
	return err
}

func (t *Tx) OpenDisputeFor(ctx context.Context, challengeID string) (*challenge.Dispute, error) {
	d, err := scanDispute(t.tx.QueryRowContext(ctx, `
		SELECT `+disputeCols+` FROM disputes
		WHERE challenge_id=$1 AND status <> 'resolved'
		LIMIT 1 FOR UPDATE`, challengeID))
	if errors.Is(err, challenge.ErrNotFound) {
		return nil, nil
	}
	return d, err
}

func (s *Store) GetDispute(ctx context.Context, id string) (*challenge.Dispute, error) {
	return scanDispute(s.db.QueryRowContext(ctx, `SELECT `+disputeCols+` FROM disputes WHERE id=$1`, id))
}

// ListDisputes lista por status; status vazio traz todas
func (s *Store) ListDisputes(ctx context.Context, status challenge.DisputeStatus) ([]challenge.Dispute, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+disputeCols+` FROM disputes
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []challenge.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
