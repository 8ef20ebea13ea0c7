package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backline-io/backline/internal/domain/audit"
	"github.com/backline-io/backline/internal/domain/decision"
	"github.com/backline-io/backline/internal/domain/review"
)

// AuditStore implements auditlog.Store using PostgreSQL. The table is
// append-only; the serial seq column fixes the write order for replay.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

func (s *AuditStore) Append(ctx context.Context, rec *audit.Record) error {
	rationaleJSON, err := json.Marshal(rec.Rationale)
	if err != nil {
		return fmt.Errorf("marshal rationale: %w", err)
	}

	const q = `INSERT INTO audit_records
		(id, action, decision_id, subject_id, kind, outcome, confidence,
		 rationale, review_id, review_status, reviewer, details, written_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = s.pool.Exec(ctx, q,
		rec.ID, string(rec.Action), rec.DecisionID, rec.SubjectID, string(rec.Kind),
		string(rec.Outcome), rec.Confidence, rationaleJSON,
		nullIfEmpty(rec.ReviewID), string(rec.ReviewStatus), rec.Reviewer,
		rec.Details, rec.WrittenAt,
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *AuditStore) List(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	q := `SELECT id, action, decision_id, subject_id, kind, outcome, confidence,
		rationale, review_id, review_status, reviewer, details, written_at
		FROM audit_records`

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.SubjectID != "" {
		add("subject_id = $%d", filter.SubjectID)
	}
	if filter.DecisionID != "" {
		add("decision_id = $%d", filter.DecisionID)
	}
	if filter.Kind != "" {
		add("kind = $%d", string(filter.Kind))
	}
	if filter.Action != "" {
		add("action = $%d", string(filter.Action))
	}
	if filter.After != nil {
		add("written_at >= $%d", *filter.After)
	}
	if filter.Before != nil {
		add("written_at <= $%d", *filter.Before)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY seq ASC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		var (
			rec           audit.Record
			action        string
			kind          string
			outcome       string
			reviewStatus  string
			rationaleJSON []byte
			reviewID      *string
		)
		if err := rows.Scan(
			&rec.ID, &action, &rec.DecisionID, &rec.SubjectID, &kind, &outcome,
			&rec.Confidence, &rationaleJSON, &reviewID, &reviewStatus,
			&rec.Reviewer, &rec.Details, &rec.WrittenAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if err := json.Unmarshal(rationaleJSON, &rec.Rationale); err != nil {
			return nil, fmt.Errorf("unmarshal rationale: %w", err)
		}
		rec.Action = audit.Action(action)
		rec.Kind = decision.Kind(kind)
		rec.Outcome = decision.Outcome(outcome)
		rec.ReviewStatus = review.Status(reviewStatus)
		if reviewID != nil {
			rec.ReviewID = *reviewID
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
