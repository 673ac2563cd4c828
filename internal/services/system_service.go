package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/stitchfield/api/internal/domain"
	"github.com/stitchfield/api/internal/repositories"
)

// BuildInfo describes the running binary for health reporting.
type BuildInfo struct {
	Version     string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles collaborators required to construct the system service.
type SystemServiceDeps struct {
	Health repositories.HealthRepository
	Build  BuildInfo
	Clock  func() time.Time
}

type systemService struct {
	health repositories.HealthRepository
	build  BuildInfo
	clock  func() time.Time
}

// NewSystemService wires dependencies into a concrete SystemService implementation.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &systemService{
		health: deps.Health,
		build:  deps.Build,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// HealthReport collects dependency probes and annotates them with build
// metadata and process uptime.
func (s *systemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	report, err := s.health.Collect(ctx)
	if err != nil {
		return domain.SystemHealthReport{}, err
	}

	now := s.clock()
	report.Version = s.build.Version
	report.Environment = s.build.Environment
	if !s.build.StartedAt.IsZero() {
		report.Uptime = now.Sub(s.build.StartedAt.UTC())
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	return report, nil
}
