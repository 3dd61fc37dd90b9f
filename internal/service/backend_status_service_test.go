package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/situated-learning/pkg/backend"
)

type stubChecker struct {
	llmErr error
}

func (stubChecker) Health(context.Context) (backend.Status, error) {
	return backend.Status{"status": "ok"}, nil
}

func (p stubChecker) LLMStatus(context.Context) (backend.Status, error) {
	if p.llmErr != nil {
		return nil, p.llmErr
	}
	return backend.Status{"model": "template"}, nil
}

func (stubChecker) DBStatus(context.Context) (backend.Status, error) {
	return backend.Status{"connected": true}, nil
}

func TestBackendStatusAllReachable(t *testing.T) {
	svc := NewBackendStatusService(stubChecker{}, zerolog.Nop())

	status := svc.Check(context.Background())
	require.True(t, status.Healthy)
	require.True(t, status.API.Reachable)
	require.Equal(t, "template", status.LLM.Detail["model"])
	require.False(t, status.CheckedAt.IsZero())
}

func TestBackendStatusReportsFailedCheck(t *testing.T) {
	svc := NewBackendStatusService(stubChecker{llmErr: &backend.TransportError{Op: "llm_status", Status: 503, Message: "unavailable"}}, zerolog.Nop())

	status := svc.Check(context.Background())
	require.False(t, status.Healthy)
	require.True(t, status.API.Reachable)
	require.False(t, status.LLM.Reachable)
	require.Contains(t, status.LLM.Error, "503")
	require.True(t, status.Database.Reachable)
}
