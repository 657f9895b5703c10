// Package service assembles dashboard figures.
package service

import (
	"context"
	"math"
	"time"

	"raccordement_backend/internal/auth/roles"
	"raccordement_backend/platform/httpkit"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const conversionWindow = 30 * 24 * time.Hour

type Store interface {
	LeadCounts(ctx context.Context, dayStart, weekStart time.Time) (int, int, error)
	Conversion(ctx context.Context, since time.Time) (int, int, error)
	RequestsByStatus(ctx context.Context) (map[string]int, error)
	PaymentsByStatus(ctx context.Context) (map[string]int, error)
	RevenueSince(ctx context.Context, since time.Time) (int64, error)
	OpenTasks(ctx context.Context, assignee *uuid.UUID) (int, error)
}

type Stats struct {
	LeadsToday        int            `json:"leadsToday"`
	LeadsThisWeek     int            `json:"leadsThisWeek"`
	ConversionRate    float64        `json:"conversionRate"`
	RequestsByStatus  map[string]int `json:"requestsByStatus"`
	PaymentsByStatus  map[string]int `json:"paymentsByStatus"`
	RevenueMonthCents int64          `json:"revenueMonthCents"`
	OpenTasks         int            `json:"openTasks"`
	MyOpenTasks       int            `json:"myOpenTasks"`
	GeneratedAt       time.Time      `json:"generatedAt"`
}

type Service struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

func New(store Store) *Service {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

// Stats runs every query concurrently. Agents only see their own open
// tasks in OpenTasks.
func (s *Service) Stats(ctx context.Context, identity httpkit.Identity) (Stats, error) {
	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	weekStart := dayStart.AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)

	stats := Stats{GeneratedAt: now.UTC()}
	userID := identity.UserID()
	var total, converted int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.LeadsToday, stats.LeadsThisWeek, err = s.store.LeadCounts(gctx, dayStart, weekStart)
		return err
	})
	g.Go(func() (err error) {
		total, converted, err = s.store.Conversion(gctx, now.Add(-conversionWindow))
		return err
	})
	g.Go(func() (err error) {
		stats.RequestsByStatus, err = s.store.RequestsByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.PaymentsByStatus, err = s.store.PaymentsByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.RevenueMonthCents, err = s.store.RevenueSince(gctx, monthStart)
		return err
	})
	g.Go(func() (err error) {
		stats.MyOpenTasks, err = s.store.OpenTasks(gctx, &userID)
		return err
	})
	if identity.HasRole(roles.Manager) {
		g.Go(func() (err error) {
			stats.OpenTasks, err = s.store.OpenTasks(gctx, nil)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	if !identity.HasRole(roles.Manager) {
		stats.OpenTasks = stats.MyOpenTasks
	}
	if total > 0 {
		stats.ConversionRate = math.Round(float64(converted)/float64(total)*1000) / 10
	}
	return stats, nil
}
