package tripstore

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store persists trips, versions and the message log. It runs on Postgres
// when a DSN is configured and on an in-memory backend otherwise; callers
// never see the difference.
type Store struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	mu       sync.RWMutex
	trips    map[string]Trip
	versions map[string][]TripVersion // trip id -> versions, ascending
	messages map[string][]ConversationMessage

	// historyCache caches full version-history reads per trip; any write
	// for the trip invalidates its entry.
	historyCache *lru.Cache[string, []TripVersion]
}

func New() *Store {
	cache, _ := lru.New[string, []TripVersion](1024)
	return &Store{
		trips:        make(map[string]Trip),
		versions:     make(map[string][]TripVersion),
		messages:     make(map[string][]ConversationMessage),
		historyCache: cache,
	}
}

func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, []TripVersion](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, historyCache: cache}, nil
}

// NewFromEnv prefers Postgres via TRIP_STORE_PG_DSN and falls back to the
// in-memory backend when the DSN is absent or the database is unreachable.
func NewFromEnv() *Store {
	dsn := strings.TrimSpace(os.Getenv("TRIP_STORE_PG_DSN"))
	if dsn == "" {
		return New()
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New()
	}
	return s
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) CreateTrip(ctx context.Context, t Trip) (Trip, error) {
	s.historyCache.Remove(t.ID)
	if s.db != nil {
		return s.createTripDB(ctx, t)
	}
	return s.createTripMem(t)
}

func (s *Store) GetTrip(ctx context.Context, id string) (Trip, error) {
	if s.db != nil {
		return s.getTripDB(ctx, id)
	}
	return s.getTripMem(id)
}

// ListTrips returns the caller's trips, each carrying its latest version's
// phase and status.
func (s *Store) ListTrips(ctx context.Context, userID string) ([]TripSummary, error) {
	if s.db != nil {
		return s.listTripsDB(ctx, userID)
	}
	return s.listTripsMem(userID)
}

// DeleteTrip removes the trip with its versions and messages.
func (s *Store) DeleteTrip(ctx context.Context, id string) error {
	s.historyCache.Remove(id)
	if s.db != nil {
		return s.deleteTripDB(ctx, id)
	}
	return s.deleteTripMem(id)
}

// BeginVersion opens the next version row for tripID in the given phase.
// At most one in_progress version may exist per trip; violating that
// returns ErrConcurrentPhaseInProgress, backed by a partial unique index
// in the Postgres backend so the invariant holds across processes.
func (s *Store) BeginVersion(ctx context.Context, tripID, phase string) (TripVersion, error) {
	s.historyCache.Remove(tripID)
	if s.db != nil {
		return s.beginVersionDB(ctx, tripID, phase)
	}
	return s.beginVersionMem(tripID, phase)
}

// FinalizeVersion marks an in_progress version complete with its payload.
// Finalizing an already-complete version with a byte-identical payload is a
// no-op; any other repeat returns ErrVersionAlreadyFinalized.
func (s *Store) FinalizeVersion(ctx context.Context, versionID string, payload VersionPayload) (TripVersion, error) {
	if s.db != nil {
		v, err := s.finalizeVersionDB(ctx, versionID, payload)
		if err == nil {
			s.historyCache.Remove(v.TripID)
		}
		return v, err
	}
	v, err := s.finalizeVersionMem(versionID, payload)
	if err == nil {
		s.historyCache.Remove(v.TripID)
	}
	return v, err
}

// FailVersion marks an in_progress version failed. Failing a version that
// is not in_progress is a no-op so error paths can call it unconditionally.
func (s *Store) FailVersion(ctx context.Context, versionID string) error {
	if s.db != nil {
		return s.failVersionDB(ctx, versionID)
	}
	return s.failVersionMem(versionID)
}

// CurrentVersion returns the highest-numbered complete version. Failed and
// in_progress rows are never exposed as current state.
func (s *Store) CurrentVersion(ctx context.Context, tripID string) (TripVersion, error) {
	vs, err := s.Versions(ctx, tripID)
	if err != nil {
		return TripVersion{}, err
	}
	for i := len(vs) - 1; i >= 0; i-- {
		if vs[i].Status == StatusComplete {
			return vs[i], nil
		}
	}
	return TripVersion{}, ErrNotFound
}

// Versions returns the trip's full version history in ascending order.
func (s *Store) Versions(ctx context.Context, tripID string) ([]TripVersion, error) {
	if vs, ok := s.historyCache.Get(tripID); ok {
		return vs, nil
	}
	var (
		vs  []TripVersion
		err error
	)
	if s.db != nil {
		vs, err = s.versionsDB(ctx, tripID)
	} else {
		vs, err = s.versionsMem(tripID)
	}
	if err != nil {
		return nil, err
	}
	s.historyCache.Add(tripID, vs)
	return vs, nil
}

// GetVersion returns a single version row by id.
func (s *Store) GetVersion(ctx context.Context, versionID string) (TripVersion, error) {
	if s.db != nil {
		return s.getVersionDB(ctx, versionID)
	}
	return s.getVersionMem(versionID)
}

// AppendMessage adds one entry to the trip's conversation log.
func (s *Store) AppendMessage(ctx context.Context, m ConversationMessage) error {
	if s.db != nil {
		return s.appendMessageDB(ctx, m)
	}
	return s.appendMessageMem(m)
}

// Messages returns the trip's conversation log in insertion order.
func (s *Store) Messages(ctx context.Context, tripID string) ([]ConversationMessage, error) {
	if s.db != nil {
		return s.messagesDB(ctx, tripID)
	}
	return s.messagesMem(tripID)
}
