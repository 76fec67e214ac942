package tripstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS trips (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  origin TEXT NOT NULL DEFAULT '',
  destination TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trips_user_route
  ON trips (user_id, origin, destination);

-- Payload columns are JSON, not JSONB: JSONB rewrites key order and
-- whitespace, which would break the stored-bytes round-trip contract and
-- the byte comparison behind finalize idempotence.
CREATE TABLE IF NOT EXISTS trip_versions (
  id TEXT PRIMARY KEY,
  trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
  version_number INTEGER NOT NULL,
  phase TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'in_progress',
  constraints JSON,
  risk_assessment JSON,
  assumptions JSON,
  plan JSON,
  budget_breakdown JSON,
  days JSON,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  UNIQUE (trip_id, version_number)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trip_versions_one_in_progress
  ON trip_versions (trip_id) WHERE status = 'in_progress';

CREATE TABLE IF NOT EXISTS trip_messages (
  id TEXT PRIMARY KEY,
  trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
  role TEXT NOT NULL,
  content TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_trip_messages_trip_id ON trip_messages (trip_id);
`)
	})
	return s.schemaErr
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func (s *Store) createTripDB(ctx context.Context, t Trip) (Trip, error) {
	if err := s.ensureSchema(); err != nil {
		return Trip{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO trips (id, user_id, title, origin, destination, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		t.ID, t.UserID, t.Title, t.Origin, t.Destination, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return Trip{}, ErrTripExists
		}
		return Trip{}, err
	}
	return t, nil
}

func scanTrip(row interface{ Scan(...any) error }) (Trip, error) {
	var t Trip
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Origin, &t.Destination, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Trip{}, ErrNotFound
	}
	if err != nil {
		return Trip{}, err
	}
	return t, nil
}

func (s *Store) getTripDB(ctx context.Context, id string) (Trip, error) {
	if err := s.ensureSchema(); err != nil {
		return Trip{}, err
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, user_id, title, origin, destination, created_at
FROM trips WHERE id = $1`, strings.TrimSpace(id))
	return scanTrip(row)
}

func (s *Store) listTripsDB(ctx context.Context, userID string) ([]TripSummary, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT t.id, t.user_id, t.title, t.origin, t.destination, t.created_at,
       COALESCE(v.phase, ''), COALESCE(v.status, ''), COALESCE(v.version_number, 0)
FROM trips t
LEFT JOIN LATERAL (
  SELECT phase, status, version_number
  FROM trip_versions
  WHERE trip_id = t.id
  ORDER BY version_number DESC
  LIMIT 1
) v ON TRUE
WHERE t.user_id = $1
ORDER BY t.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TripSummary, 0, 16)
	for rows.Next() {
		var ts TripSummary
		var status string
		if err := rows.Scan(&ts.ID, &ts.UserID, &ts.Title, &ts.Origin, &ts.Destination,
			&ts.CreatedAt, &ts.CurrentPhase, &status, &ts.LatestVersion); err != nil {
			return nil, err
		}
		ts.LatestStatus = VersionStatus(status)
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *Store) deleteTripDB(ctx context.Context, id string) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) beginVersionDB(ctx context.Context, tripID, phase string) (TripVersion, error) {
	if err := s.ensureSchema(); err != nil {
		return TripVersion{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TripVersion{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Row lock on the trip serializes concurrent begins so version numbers
	// stay dense; the partial unique index still backstops the invariant
	// against anything that slips past the lock.
	var lockID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM trips WHERE id = $1 FOR UPDATE`, tripID).Scan(&lockID)
	if errors.Is(err, sql.ErrNoRows) {
		return TripVersion{}, ErrNotFound
	}
	if err != nil {
		return TripVersion{}, err
	}

	v := TripVersion{
		ID:        uuid.NewString(),
		TripID:    tripID,
		Phase:     phase,
		Status:    StatusInProgress,
		CreatedAt: time.Now().UTC(),
	}
	v.UpdatedAt = v.CreatedAt
	err = tx.QueryRowContext(ctx, `
INSERT INTO trip_versions (id, trip_id, version_number, phase, status, created_at, updated_at)
SELECT $1, $2, COALESCE(MAX(version_number), 0) + 1, $3, $4, $5, $5
FROM trip_versions WHERE trip_id = $2
RETURNING version_number`,
		v.ID, tripID, phase, StatusInProgress, v.CreatedAt).Scan(&v.VersionNumber)
	if err != nil {
		if isUniqueViolation(err, "idx_trip_versions_one_in_progress") {
			return TripVersion{}, ErrConcurrentPhaseInProgress
		}
		return TripVersion{}, err
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err, "idx_trip_versions_one_in_progress") {
			return TripVersion{}, ErrConcurrentPhaseInProgress
		}
		return TripVersion{}, err
	}
	return v, nil
}

const versionColumns = `id, trip_id, version_number, phase, status,
constraints, risk_assessment, assumptions, plan, budget_breakdown, days,
created_at, updated_at`

func scanVersion(row interface{ Scan(...any) error }) (TripVersion, error) {
	var v TripVersion
	var constraints, risk, assumptions, plan, budget, days []byte
	err := row.Scan(&v.ID, &v.TripID, &v.VersionNumber, &v.Phase, &v.Status,
		&constraints, &risk, &assumptions, &plan, &budget, &days,
		&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return TripVersion{}, ErrNotFound
	}
	if err != nil {
		return TripVersion{}, err
	}
	v.Constraints = constraints
	v.RiskAssessment = risk
	v.Assumptions = assumptions
	v.Plan = plan
	v.BudgetBreakdown = budget
	v.Days = days
	return v, nil
}

func (s *Store) finalizeVersionDB(ctx context.Context, versionID string, p VersionPayload) (TripVersion, error) {
	if err := s.ensureSchema(); err != nil {
		return TripVersion{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TripVersion{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM trip_versions WHERE id = $1 FOR UPDATE`, versionID)
	cur, err := scanVersion(row)
	if err != nil {
		return TripVersion{}, err
	}
	switch cur.Status {
	case StatusComplete:
		if p.equal(cur) {
			return cur, nil
		}
		return TripVersion{}, ErrVersionAlreadyFinalized
	case StatusFailed:
		return TripVersion{}, ErrVersionAlreadyFinalized
	}

	if p.Phase != "" {
		cur.Phase = p.Phase
	}
	cur.Status = StatusComplete
	cur.Constraints = p.Constraints
	cur.RiskAssessment = p.RiskAssessment
	cur.Assumptions = p.Assumptions
	cur.Plan = p.Plan
	cur.BudgetBreakdown = p.BudgetBreakdown
	cur.Days = p.Days
	cur.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
UPDATE trip_versions
SET phase=$2, status=$3, constraints=$4, risk_assessment=$5, assumptions=$6,
    plan=$7, budget_breakdown=$8, days=$9, updated_at=$10
WHERE id=$1`,
		cur.ID, cur.Phase, cur.Status,
		nullableJSON(cur.Constraints), nullableJSON(cur.RiskAssessment), nullableJSON(cur.Assumptions),
		nullableJSON(cur.Plan), nullableJSON(cur.BudgetBreakdown), nullableJSON(cur.Days),
		cur.UpdatedAt)
	if err != nil {
		return TripVersion{}, err
	}
	if err := tx.Commit(); err != nil {
		return TripVersion{}, err
	}
	return cur, nil
}

func (s *Store) failVersionDB(ctx context.Context, versionID string) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	var tripID string
	err := s.db.QueryRowContext(ctx, `
UPDATE trip_versions SET status=$2, updated_at=NOW()
WHERE id=$1 AND status=$3
RETURNING trip_id`, versionID, StatusFailed, StatusInProgress).Scan(&tripID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	s.historyCache.Remove(tripID)
	return nil
}

func (s *Store) versionsDB(ctx context.Context, tripID string) ([]TripVersion, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM trip_versions WHERE trip_id = $1 ORDER BY version_number ASC`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TripVersion, 0, 8)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) getVersionDB(ctx context.Context, versionID string) (TripVersion, error) {
	if err := s.ensureSchema(); err != nil {
		return TripVersion{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM trip_versions WHERE id = $1`, versionID)
	return scanVersion(row)
}

func (s *Store) appendMessageDB(ctx context.Context, m ConversationMessage) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO trip_messages (id, trip_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5)`, m.ID, m.TripID, m.Role, m.Content, m.CreatedAt)
	return err
}

func (s *Store) messagesDB(ctx context.Context, tripID string) ([]ConversationMessage, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, trip_id, role, content, created_at
FROM trip_messages WHERE trip_id = $1 ORDER BY created_at ASC, id ASC`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ConversationMessage, 0, 16)
	for rows.Next() {
		var m ConversationMessage
		if err := rows.Scan(&m.ID, &m.TripID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// nullableJSON maps empty payload fields to SQL NULL instead of the invalid
// empty json value.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
