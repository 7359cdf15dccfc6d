package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

type userCounter interface {
	CountByActive(ctx context.Context, active bool) (int64, error)
}

// UserStats is the active/inactive breakdown served to admin dashboards.
type UserStats struct {
	ActiveUsers   int64 `json:"active_users"`
	InactiveUsers int64 `json:"inactive_users"`
	TotalUsers    int64 `json:"total_users"`
}

type ReportService struct {
	users userCounter
}

func NewReportService(users userCounter) *ReportService {
	return &ReportService{users: users}
}

func (s *ReportService) UserActiveInactiveStats(ctx context.Context) (*UserStats, error) {
	active, err := s.users.CountByActive(ctx, true)
	if err != nil {
		return nil, err
	}
	inactive, err := s.users.CountByActive(ctx, false)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{
		ActiveUsers:   active,
		InactiveUsers: inactive,
		TotalUsers:    active + inactive,
	}
	logrus.WithFields(logrus.Fields{
		"active":   stats.ActiveUsers,
		"inactive": stats.InactiveUsers,
	}).Debug("User stats report generated")
	return stats, nil
}
