package jobs

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Job is a long-running background task that returns once ctx is done.
type Job interface {
	Start(ctx context.Context)
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context)

func (f JobFunc) Start(ctx context.Context) { f(ctx) }

type named struct {
	name string
	job  Job
}

type Manager struct {
	jobs []named
	log  *zap.Logger
}

func New(log *zap.Logger) *Manager {
	return &Manager{log: log}
}

func (m *Manager) Register(name string, job Job) {
	m.jobs = append(m.jobs, named{name: name, job: job})
}

// Start runs every job and blocks until ctx is done and all jobs returned.
func (m *Manager) Start(ctx context.Context) {
	var wg sync.WaitGroup

	for _, j := range m.jobs {
		wg.Add(1)
		m.log.Info("▶️  Starting job", zap.String("job", j.name))

		go func(j named) {
			defer wg.Done()
			j.job.Start(ctx)
			m.log.Info("⏹️  Job stopped", zap.String("job", j.name))
		}(j)
	}

	<-ctx.Done()
	wg.Wait()
}
