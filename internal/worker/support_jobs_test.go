package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/service"
)

func jobNames(s *Scheduler) []string {
	out := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.name)
	}
	return out
}

func TestRegisterSupportJobs(t *testing.T) {
	repos, _ := memory.NewRepositories()
	logger := zap.NewNop()
	tracker := service.NewSLATracker(repos, nil, logger, nil)
	engine := service.NewAlertEngine(service.AlertEngineDependencies{
		Rules:   repos.AlertRules,
		History: repos.AlertHistory,
		Logger:  logger,
	})

	tests := []struct {
		name string
		cfg  config.AlertingConfig
		want []string
	}{
		{name: "alerts enabled", cfg: config.AlertingConfig{Enabled: true, IntervalSeconds: 120}, want: []string{alertCycleJob, slaSweepJob}},
		{name: "alerts disabled", cfg: config.AlertingConfig{}, want: []string{slaSweepJob}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScheduler(logger)
			RegisterSupportJobs(s, SupportJobs{Alerts: engine, SLA: tracker, Config: tc.cfg, Logger: logger})
			assert.Equal(t, tc.want, jobNames(s))

			for _, j := range s.jobs {
				switch j.name {
				case alertCycleJob:
					assert.Equal(t, 2*time.Minute, j.interval)
					assert.False(t, j.immediate)
				case slaSweepJob:
					assert.Equal(t, time.Minute, j.interval)
					assert.True(t, j.immediate)
					require.NoError(t, j.run(context.Background()))
				}
			}
		})
	}
}
