package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/situated-learning/pkg/backend"
)

// StatusChecker reports on the content service's dependencies.
type StatusChecker interface {
	Health(ctx context.Context) (backend.Status, error)
	LLMStatus(ctx context.Context) (backend.Status, error)
	DBStatus(ctx context.Context) (backend.Status, error)
}

// ComponentStatus is the outcome of one check.
type ComponentStatus struct {
	Reachable bool           `json:"reachable"`
	Detail    backend.Status `json:"detail,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// BackendStatus aggregates the content service checks.
type BackendStatus struct {
	Healthy   bool            `json:"healthy"`
	API       ComponentStatus `json:"api"`
	LLM       ComponentStatus `json:"llm"`
	Database  ComponentStatus `json:"database"`
	CheckedAt time.Time       `json:"checked_at"`
}

// BackendStatusService checks the content service.
type BackendStatusService interface {
	Check(ctx context.Context) BackendStatus
}

type backendStatusService struct {
	checker StatusChecker
	logger  zerolog.Logger
}

// NewBackendStatusService builds the status aggregator.
func NewBackendStatusService(checker StatusChecker, logger zerolog.Logger) BackendStatusService {
	return &backendStatusService{
		checker: checker,
		logger:  logger.With().Str("component", "backend_status_service").Logger(),
	}
}

// Check runs the three checks concurrently. It never fails; unreachable
// components are reported in the result.
func (s *backendStatusService) Check(ctx context.Context) BackendStatus {
	var (
		wg  sync.WaitGroup
		out BackendStatus
	)

	run := func(target *ComponentStatus, name string, call func(context.Context) (backend.Status, error)) {
		defer wg.Done()
		status, err := call(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Str("check", name).Msg("backend status check failed")
			*target = ComponentStatus{Error: err.Error()}
			return
		}
		*target = ComponentStatus{Reachable: true, Detail: status}
	}

	wg.Add(3)
	go run(&out.API, "health", s.checker.Health)
	go run(&out.LLM, "llm", s.checker.LLMStatus)
	go run(&out.Database, "database", s.checker.DBStatus)
	wg.Wait()

	out.Healthy = out.API.Reachable && out.LLM.Reachable && out.Database.Reachable
	out.CheckedAt = time.Now().UTC()
	return out
}
