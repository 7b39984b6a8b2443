package journal

import (
	"context"
	"fmt"

	"github.com/cascade-build/cascade/internal/asset"
)

// BeginPass records the start of a build pass. Uses ON CONFLICT DO
// NOTHING for idempotency - a duplicate token is silently ignored.
func (j *Journal) BeginPass(ctx context.Context, token, pkg string, seq int64) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO passes (token, package, begin_seq)
		VALUES (?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, token, pkg, seq)
	if err != nil {
		return fmt.Errorf("begin pass: %w", err)
	}
	return nil
}

// FinishPass records the settlement of a build pass. Only the first
// finish for a token takes effect.
func (j *Journal) FinishPass(ctx context.Context, token string, seq int64, errCount int) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE passes
		SET finish_seq = ?, error_count = ?
		WHERE token = ? AND finish_seq IS NULL
	`, seq, errCount, token)
	if err != nil {
		return fmt.Errorf("finish pass: %w", err)
	}
	return nil
}

// RecordAsset records an asset event (e.g. "available") within a pass.
func (j *Journal) RecordAsset(ctx context.Context, token string, id asset.ID, kind string, seq int64) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO pass_events (pass_token, kind, asset_id, seq)
		VALUES (?, ?, ?, ?)
	`, token, kind, id.String(), seq)
	if err != nil {
		return fmt.Errorf("record asset: %w", err)
	}
	return nil
}

// RecordError records a build error within a pass.
func (j *Journal) RecordError(ctx context.Context, token, message string, seq int64) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO pass_events (pass_token, kind, message, seq)
		VALUES (?, 'error', ?, ?)
	`, token, message, seq)
	if err != nil {
		return fmt.Errorf("record error: %w", err)
	}
	return nil
}
