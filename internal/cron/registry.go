package cron

import (
	"context"
	"time"
)

// Job is a unit of background maintenance the worker runs on a cadence.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule pairs a job with how often it should run. A zero Every runs the
// job on every tick.
type Schedule struct {
	Job   Job
	Every time.Duration
}

// Registry tracks scheduled jobs and when each last ran.
type Registry struct {
	entries []*entry
}

type entry struct {
	schedule Schedule
	lastRun  time.Time
}

func NewRegistry(schedules ...Schedule) *Registry {
	registry := &Registry{}
	for _, s := range schedules {
		registry.Register(s.Job, s.Every)
	}
	return registry
}

// Register adds job with its cadence. Nil jobs are ignored.
func (r *Registry) Register(job Job, every time.Duration) {
	if job == nil {
		return
	}
	if every < 0 {
		every = 0
	}
	r.entries = append(r.entries, &entry{schedule: Schedule{Job: job, Every: every}})
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.schedule.Job)
	}
	return jobs
}

// Due returns the jobs whose cadence has elapsed at now and stamps them as run.
func (r *Registry) Due(now time.Time) []Job {
	var due []Job
	for _, e := range r.entries {
		if !e.lastRun.IsZero() && now.Sub(e.lastRun) < e.schedule.Every {
			continue
		}
		e.lastRun = now
		due = append(due, e.schedule.Job)
	}
	return due
}
