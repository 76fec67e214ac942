package tripstore

import (
	"time"

	"github.com/google/uuid"
)

func (s *Store) createTripMem(t Trip) (Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if _, ok := s.trips[t.ID]; ok {
		return Trip{}, ErrTripExists
	}
	for _, existing := range s.trips {
		if existing.UserID == t.UserID && existing.Origin == t.Origin && existing.Destination == t.Destination {
			return Trip{}, ErrTripExists
		}
	}
	s.trips[t.ID] = t
	return t, nil
}

func (s *Store) getTripMem(id string) (Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trips[id]
	if !ok {
		return Trip{}, ErrNotFound
	}
	return t, nil
}

func (s *Store) listTripsMem(userID string) ([]TripSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TripSummary, 0, len(s.trips))
	for _, t := range s.trips {
		if t.UserID != userID {
			continue
		}
		ts := TripSummary{Trip: t}
		if vs := s.versions[t.ID]; len(vs) > 0 {
			last := vs[len(vs)-1]
			ts.CurrentPhase = last.Phase
			ts.LatestStatus = last.Status
			ts.LatestVersion = last.VersionNumber
		}
		out = append(out, ts)
	}
	// Newest first, matching the Postgres ordering.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (s *Store) deleteTripMem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[id]; !ok {
		return ErrNotFound
	}
	delete(s.trips, id)
	delete(s.versions, id)
	delete(s.messages, id)
	return nil
}

func (s *Store) beginVersionMem(tripID, phase string) (TripVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[tripID]; !ok {
		return TripVersion{}, ErrNotFound
	}
	vs := s.versions[tripID]
	for _, v := range vs {
		if v.Status == StatusInProgress {
			return TripVersion{}, ErrConcurrentPhaseInProgress
		}
	}
	now := time.Now().UTC()
	v := TripVersion{
		ID:            uuid.NewString(),
		TripID:        tripID,
		VersionNumber: len(vs) + 1,
		Phase:         phase,
		Status:        StatusInProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.versions[tripID] = append(vs, v)
	return v, nil
}

func (s *Store) findVersionMem(versionID string) (string, int, bool) {
	for tripID, vs := range s.versions {
		for i := range vs {
			if vs[i].ID == versionID {
				return tripID, i, true
			}
		}
	}
	return "", 0, false
}

func (s *Store) finalizeVersionMem(versionID string, p VersionPayload) (TripVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tripID, i, ok := s.findVersionMem(versionID)
	if !ok {
		return TripVersion{}, ErrNotFound
	}
	cur := s.versions[tripID][i]
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
	s.versions[tripID][i] = cur
	return cur, nil
}

func (s *Store) failVersionMem(versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tripID, i, ok := s.findVersionMem(versionID)
	if !ok {
		return nil
	}
	if s.versions[tripID][i].Status != StatusInProgress {
		return nil
	}
	s.versions[tripID][i].Status = StatusFailed
	s.versions[tripID][i].UpdatedAt = time.Now().UTC()
	s.historyCache.Remove(tripID)
	return nil
}

func (s *Store) versionsMem(tripID string) ([]TripVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.trips[tripID]; !ok {
		return nil, ErrNotFound
	}
	vs := s.versions[tripID]
	out := make([]TripVersion, len(vs))
	copy(out, vs)
	return out, nil
}

func (s *Store) getVersionMem(versionID string) (TripVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tripID, i, ok := s.findVersionMem(versionID)
	if !ok {
		return TripVersion{}, ErrNotFound
	}
	return s.versions[tripID][i], nil
}

func (s *Store) appendMessageMem(m ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[m.TripID]; !ok {
		return ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.messages[m.TripID] = append(s.messages[m.TripID], m)
	return nil
}

func (s *Store) messagesMem(tripID string) ([]ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.trips[tripID]; !ok {
		return nil, ErrNotFound
	}
	ms := s.messages[tripID]
	out := make([]ConversationMessage, len(ms))
	copy(out, ms)
	return out, nil
}
