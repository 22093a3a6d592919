package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type Repository interface {
	ListAlerts(ctx context.Context, userID int64, f model.AlertFilter) ([]model.Alert, error)
	// GetAlert returns model.ErrNotFound for an unknown id.
	GetAlert(ctx context.Context, alertID int64) (model.Alert, error)
	ResolveAlert(ctx context.Context, alertID int64, resolvedBy string, at time.Time) (model.Alert, error)
}

// Service is the read and resolve side of alerts.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) ListAlerts(ctx context.Context, userID int64, f model.AlertFilter) ([]model.Alert, error) {
	const op = "list alerts"
	if f.Severity != "" && f.Severity.Rank() == 0 {
		return nil, model.Validation(op, "unknown severity %q", f.Severity)
	}
	if f.Limit < 0 {
		return nil, model.Validation(op, "limit must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	alerts, err := s.repo.ListAlerts(ctx, userID, f)
	if err != nil {
		return nil, model.E(model.KindPersistence, op, err)
	}
	return alerts, nil
}

// Resolve closes an alert owned by userID, freeing its (user, parameter)
// slot. Resolving an already resolved alert returns it unchanged.
func (s *Service) Resolve(ctx context.Context, userID, alertID int64, resolvedBy string) (model.Alert, error) {
	const op = "resolve alert"
	a, err := s.repo.GetAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Alert{}, model.E(model.KindPersistence, op, fmt.Errorf("alert %d: %w", alertID, model.ErrNotFound))
		}
		return model.Alert{}, model.E(model.KindPersistence, op, err)
	}
	if a.UserID != userID {
		return model.Alert{}, model.E(model.KindValidation, op, fmt.Errorf("alert %d: %w", alertID, model.ErrForbidden))
	}
	if a.IsResolved {
		return a, nil
	}
	if resolvedBy == "" {
		resolvedBy = fmt.Sprintf("user:%d", userID)
	}
	resolved, err := s.repo.ResolveAlert(ctx, alertID, resolvedBy, s.now().UTC())
	if err != nil {
		return model.Alert{}, model.E(model.KindPersistence, op, err)
	}
	return resolved, nil
}
