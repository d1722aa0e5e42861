// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/results"
)

// -- Runner Mock --

// MockRunner mocks anything that executes a run, such as the orchestrator.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, run config.TestConfiguration) (*results.RunReport, error) {
	args := m.Called(ctx, run)
	var report *results.RunReport
	if r := args.Get(0); r != nil {
		report = r.(*results.RunReport)
	}
	return report, args.Error(1)
}
