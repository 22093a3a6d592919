package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

// memStore is an in-memory Store, Repository and UserLister. The unique
// open-alert check of the database is off unless enforceUnique is set.
type memStore struct {
	mu            sync.Mutex
	users         []int64
	assignments   map[int64][]model.UserPlantAssignment
	profiles      map[int64]model.PlantProfile
	assignErr     error
	profileErr    error
	alerts        []model.Alert
	enforceUnique bool
	findDelay     time.Duration
}

func newMemStore(users ...int64) *memStore {
	return &memStore{
		users:       users,
		assignments: map[int64][]model.UserPlantAssignment{},
		profiles:    map[int64]model.PlantProfile{},
	}
}

func (s *memStore) UserIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.users...), nil
}

func (s *memStore) ActiveAssignments(_ context.Context, userID int64) ([]model.UserPlantAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assignErr != nil {
		return nil, s.assignErr
	}
	var out []model.UserPlantAssignment
	for _, a := range s.assignments[userID] {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) Profile(_ context.Context, profileID int64) (model.PlantProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profileErr != nil {
		return model.PlantProfile{}, s.profileErr
	}
	p, ok := s.profiles[profileID]
	if !ok {
		return model.PlantProfile{}, model.ErrNotFound
	}
	return p, nil
}

func (s *memStore) FindOpenAlert(_ context.Context, userID int64, p model.Parameter) (*model.Alert, error) {
	s.mu.Lock()
	var found *model.Alert
	for i := range s.alerts {
		a := s.alerts[i]
		if a.UserID == userID && a.ParameterName == p && !a.IsResolved {
			found = &a
			break
		}
	}
	delay := s.findDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return found, nil
}

func (s *memStore) InsertAlert(_ context.Context, a *model.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enforceUnique {
		for _, o := range s.alerts {
			if o.UserID == a.UserID && o.ParameterName == a.ParameterName && !o.IsResolved {
				return false, nil
			}
		}
	}
	a.ID = int64(len(s.alerts) + 1)
	a.CreatedAt = time.Date(2025, 1, 15, 14, 32, 0, 0, time.UTC)
	s.alerts = append(s.alerts, *a)
	return true, nil
}

func (s *memStore) ListAlerts(_ context.Context, userID int64, f model.AlertFilter) ([]model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Alert
	for _, a := range s.alerts {
		if a.UserID != userID {
			continue
		}
		if f.Resolved != nil && a.IsResolved != *f.Resolved {
			continue
		}
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Parameter != "" && a.ParameterName != f.Parameter {
			continue
		}
		out = append(out, a)
		if len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) GetAlert(_ context.Context, alertID int64) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == alertID {
			return a, nil
		}
	}
	return model.Alert{}, model.ErrNotFound
}

func (s *memStore) ResolveAlert(_ context.Context, alertID int64, resolvedBy string, at time.Time) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts[i].IsResolved = true
			s.alerts[i].ResolvedAt = &at
			s.alerts[i].ResolvedBy = &resolvedBy
			return s.alerts[i], nil
		}
	}
	return model.Alert{}, model.ErrNotFound
}

func (s *memStore) openAlerts(userID int64) []model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Alert
	for _, a := range s.alerts {
		if a.UserID == userID && !a.IsResolved {
			out = append(out, a)
		}
	}
	return out
}
