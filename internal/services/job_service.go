package services

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-lending/internal/jobs"
	"github.com/sjperalta/fintera-lending/pkg/logger"
)

// OverdueSweepJob is the name of the scheduled overdue sweep
const OverdueSweepJob = "overdue-sweep"

type JobService struct {
	worker      *jobs.Worker
	scheduleSvc *ScheduleService
	now         func() time.Time
}

func NewJobService(worker *jobs.Worker, scheduleSvc *ScheduleService) *JobService {
	return &JobService{
		worker:      worker,
		scheduleSvc: scheduleSvc,
		now:         time.Now,
	}
}

// RegisterOverdueSweep schedules the overdue sweep on a cron spec. An empty
// spec disables it.
func (s *JobService) RegisterOverdueSweep(spec string) error {
	if spec == "" {
		logger.Info("[Scheduler] Overdue sweep disabled")
		return nil
	}
	return s.worker.ScheduleCron(spec, OverdueSweepJob, func(ctx context.Context) error {
		_, err := s.scheduleSvc.MarkOverdue(ctx, s.now())
		return err
	})
}

// RunOverdueSweep queues a sweep outside the schedule
func (s *JobService) RunOverdueSweep() {
	s.worker.Enqueue(func(ctx context.Context) error {
		_, err := s.scheduleSvc.MarkOverdue(ctx, s.now())
		return err
	})
}

func (s *JobService) GetStatus() map[string]interface{} {
	stats := s.worker.GetStats()
	return map[string]interface{}{
		"active_jobs":     stats.ActiveJobs,
		"completed_jobs":  stats.CompletedJobs,
		"failed_jobs":     stats.FailedJobs,
		"queue_length":    stats.QueueLength,
		"max_concurrent":  stats.MaxConcurrent,
		"scheduled_tasks": stats.ScheduledTasks,
	}
}
