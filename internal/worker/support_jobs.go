package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/service"
)

const (
	alertCycleJob = "alert-cycle"
	slaSweepJob   = "sla-sweep"
)

// SupportJobs bundles the background work of the support desk.
type SupportJobs struct {
	Notifications *service.NotificationService
	Alerts        *service.AlertEngine
	SLA           *service.SLATracker
	Config        config.AlertingConfig
	Logger        *zap.Logger
}

// StartNotificationWorker registers the event forwarding handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// RegisterSupportJobs wires lifecycle notifications and schedules the alert
// cycle and the SLA breach sweep. The sweep also runs once at start.
func RegisterSupportJobs(s *Scheduler, jobs SupportJobs) {
	logger := jobs.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	StartNotificationWorker(jobs.Notifications)

	if jobs.Alerts != nil && jobs.Config.Enabled {
		s.Every(alertCycleJob, jobs.Config.Interval(), false, jobs.Alerts.RunCycle)
	} else {
		logger.Info("alert engine disabled")
	}
	if jobs.SLA != nil {
		s.Every(slaSweepJob, jobs.Config.SLASweepInterval(), true, slaSweep(jobs.SLA, logger))
	}
}

func slaSweep(tracker *service.SLATracker, logger *zap.Logger) Job {
	return func(ctx context.Context) error {
		breached, err := tracker.SweepBreaches(ctx)
		if breached > 0 {
			logger.Info("sla breaches detected", zap.Int("count", breached))
		}
		return err
	}
}
