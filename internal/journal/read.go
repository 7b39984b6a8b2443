package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// Pass is one recorded build pass.
type Pass struct {
	Token      string
	Package    string
	BeginSeq   int64
	FinishSeq  sql.NullInt64
	ErrorCount int
}

// Event is one recorded event within a pass.
type Event struct {
	PassToken string
	Kind      string
	AssetID   string
	Message   string
	Seq       int64
}

// ListPasses returns all passes for a package in begin order.
// Returns an empty slice (not nil) if no passes exist.
func (j *Journal) ListPasses(ctx context.Context, pkg string) ([]Pass, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT token, package, begin_seq, finish_seq, error_count
		FROM passes
		WHERE package = ?
		ORDER BY begin_seq ASC, token COLLATE BINARY ASC
	`, pkg)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	var passes []Pass
	for rows.Next() {
		var p Pass
		if err := rows.Scan(&p.Token, &p.Package, &p.BeginSeq, &p.FinishSeq, &p.ErrorCount); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}

	if passes == nil {
		passes = []Pass{}
	}
	return passes, nil
}

// ReadPass returns all events recorded for a pass token in seq order.
// Returns an empty slice (not nil) if no events exist.
func (j *Journal) ReadPass(ctx context.Context, token string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT pass_token, kind, COALESCE(asset_id, ''), COALESCE(message, ''), seq
		FROM pass_events
		WHERE pass_token = ?
		ORDER BY seq ASC, id ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query pass events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.PassToken, &e.Kind, &e.AssetID, &e.Message, &e.Seq); err != nil {
			return nil, fmt.Errorf("scan pass event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pass events: %w", err)
	}

	if events == nil {
		events = []Event{}
	}
	return events, nil
}
