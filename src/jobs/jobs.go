package jobs

import (
	"context"
	"time"

	"github.com/illustory/gallery/src/logging"
	"github.com/rs/zerolog"
)

/*
 * This package provides utilities for running and waiting on background tasks
 * in the gallery server. It standardizes a few aspects of channels and contexts
 * so that background work can be canceled and shut down gracefully.
 */

// A Job is used to handle and track the completion of an asynchronous or
// background task.
type Job struct {
	Name   string
	Ctx    context.Context
	Logger zerolog.Logger
	cancel func()
	done   chan struct{}
}

func New(name string) *Job {
	logger := logging.With().Str("job", name).Logger()
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.AttachLoggerToContext(&logger, ctx)
	return &Job{
		Name:   name,
		Ctx:    ctx,
		Logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// A job that is already finished. Handy when a feature is disabled by config.
func Noop(name string) *Job {
	return New(name).Finish()
}

// RunEvery calls work immediately and then once per interval until the job is
// canceled. Errors are logged and do not stop the job.
func RunEvery(name string, interval time.Duration, work func(ctx context.Context) error) *Job {
	job := New(name)
	go func() {
		defer job.Finish()
		defer logging.LogPanics(&job.Logger)

		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			if err := work(job.Ctx); err != nil {
				job.Logger.Error().Err(err).Msg("periodic job failed")
			}
			select {
			case <-t.C:
			case <-job.Canceled():
				return
			}
		}
	}()
	return job
}

// Sends a cancel signal to the Job, indicating that it should finish its work
// and shut down.
func (j *Job) Cancel() {
	j.cancel()
}

// Returns a channel that can be waited on to receive a Cancel signal from
// outside (that is, when Cancel() has been called).
func (j *Job) Canceled() <-chan struct{} {
	return j.Ctx.Done()
}

// Marks the Job as finished. Expected to be called internally by the job code
// when the work is complete.
func (j *Job) Finish() *Job {
	close(j.done)
	return j
}

// Returns a channel that is closed when the Job is finished.
func (j *Job) Finished() <-chan struct{} {
	return j.done
}

// A utility for running and canceling multiple jobs at once.
type Jobs []*Job

// Cancels all tracked jobs, giving them a chance to finish gracefully. Will
// return when all jobs finish or when the timeout expires, whichever comes
// first. Returns a list of all jobs that did not finish on time.
func (jobs Jobs) CancelAndWait(timeout time.Duration) []string {
	allDoneChan := make(chan struct{})
	for _, job := range jobs {
		job.Cancel()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	go func() {
		for _, job := range jobs {
			<-job.Finished()
		}
		close(allDoneChan)
	}()

	select {
	case <-timer.C:
		return jobs.ListUnfinished()
	case <-allDoneChan:
		return nil
	}
}

func (jobs Jobs) ListUnfinished() []string {
	unfinished := []string{}
	for _, job := range jobs {
		select {
		case <-job.Finished():
			continue
		default:
			unfinished = append(unfinished, job.Name)
		}
	}
	return unfinished
}
