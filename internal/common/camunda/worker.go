// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// JobHandlerFunc is the signature every worker handler exposes via Handle.
type JobHandlerFunc func(client worker.JobClient, job entities.Job)

// Worker owns one open Zeebe job subscription for a single task type.
type Worker struct {
	taskType  string
	jobWorker worker.JobWorker
	logger    *zap.Logger
}

// OpenWorker subscribes handler to taskType and starts polling immediately.
func OpenWorker(
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	jobTimeout time.Duration,
	handler JobHandlerFunc,
	logger *zap.Logger,
) *Worker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(maxJobsActive).
		Timeout(jobTimeout).
		Open()

	logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", maxJobsActive),
		zap.Duration("jobTimeout", jobTimeout),
	)

	return &Worker{
		taskType:  taskType,
		jobWorker: jobWorker,
		logger:    logger,
	}
}

func (w *Worker) TaskType() string {
	return w.taskType
}

// Close stops polling and blocks until in-flight jobs are drained.
func (w *Worker) Close() {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.jobWorker.Close()
}
