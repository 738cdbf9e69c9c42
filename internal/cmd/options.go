// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	buspubsub "github.com/mia-platform/feedagg/internal/bus/pubsub"
	"github.com/mia-platform/feedagg/internal/destination"
	"github.com/mia-platform/feedagg/internal/destination/writer"
	"github.com/mia-platform/feedagg/internal/job"
	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/mapper"
	"github.com/mia-platform/feedagg/internal/pipeline"
	"github.com/mia-platform/feedagg/internal/server"
	"github.com/mia-platform/feedagg/internal/source"
)

const (
	jobsPath = "/jobs"
)

// jobConsumer takes one job from the job bus and hands it to a handler.
type jobConsumer interface {
	Consume(ctx context.Context, handler buspubsub.Handler) (bool, error)
	Close(ctx context.Context) error
}

// options configures the pipelines run by the consume, run and serve commands.
type options struct {
	destinationName  string
	localOutput      bool
	suppliersFile    string
	morrisSupplierID int
	parallelReads    bool
	jobPaths         []string

	stdin  io.Reader
	stdout io.Writer

	readersGetter     func(ctx context.Context, suppliersFile string, morrisSupplierID int) (source.Resolver, error)
	destinationGetter func(ctx context.Context, name string) (destination.Sender, error)
	consumerGetter    func(ctx context.Context) (jobConsumer, error)
	serverGetter      func(ctx context.Context) (server.Server, error)

	lock sync.Mutex
}

// validate checks the configured values and reports invalid setups.
func (o *options) validate() error {
	if o.localOutput {
		return nil
	}

	if _, ok := availableDestinations[o.destinationName]; !ok {
		return fmt.Errorf("%w: %q", errInvalidDestination, o.destinationName)
	}

	return nil
}

// executeRun runs every job found in the job files, or the one read from stdin.
func (o *options) executeRun(ctx context.Context) error {
	if !o.lock.TryLock() {
		return nil
	}
	defer o.lock.Unlock()

	log := logger.FromContext(ctx).WithName(loggerName)
	jobs, err := o.jobs()
	if err != nil {
		return err
	}

	runner, closeDestination, err := o.pipeline(ctx)
	if err != nil {
		return err
	}
	defer closeDestination()

	for _, file := range jobs {
		log.Debug("running job", "job", file.name)
		result, err := runner.Run(ctx, file.payload)
		logRunStats(log, result, err)
		if err != nil {
			return fmt.Errorf("job %s: %w", file.name, err)
		}
	}

	return nil
}

// executeConsume runs the next job waiting on the job bus, if any.
func (o *options) executeConsume(ctx context.Context) error {
	if !o.lock.TryLock() {
		return nil
	}
	defer o.lock.Unlock()

	log := logger.FromContext(ctx).WithName(loggerName)
	start := time.Now()

	// the destination is ready before a job is taken, jobs are acknowledged on receipt
	runner, closeDestination, err := o.pipeline(ctx)
	if err != nil {
		return err
	}
	defer closeDestination()

	consumer, err := o.consumerGetter(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := consumer.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("closing job bus consumer failed", "error", err)
		}
	}()

	received, err := consumer.Consume(ctx, func(ctx context.Context, message *buspubsub.Message) error {
		result, err := runner.Run(ctx, message.Data)
		logRunStats(log, result, err)
		return err
	})

	log.Info("consume completed", "received", received, "duration", time.Since(start).Round(time.Millisecond).String())
	return err
}

// executeServe exposes the job endpoint until ctx is done or the process is signaled.
func (o *options) executeServe(ctx context.Context) error {
	if !o.lock.TryLock() {
		return nil
	}
	defer o.lock.Unlock()

	log := logger.FromContext(ctx).WithName(loggerName)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, closeDestination, err := o.pipeline(ctx)
	if err != nil {
		return err
	}
	defer closeDestination()

	srv, err := o.serverGetter(ctx)
	if err != nil {
		return err
	}
	srv.AddRoute(http.MethodPost, jobsPath, jobHandler(runner))

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- srv.Start()
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	log.Info("stopping server")
	return srv.Stop()
}

// pipeline assembles a pipeline from the configured readers and destination. The returned
// function releases the destination.
func (o *options) pipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	readers, err := o.readersGetter(ctx, o.suppliersFile, o.morrisSupplierID)
	if err != nil {
		return nil, nil, err
	}

	var sender destination.Sender
	if o.localOutput {
		sender = writer.NewDestination(o.stdout)
	} else {
		if sender, err = o.destinationGetter(ctx, o.destinationName); err != nil {
			return nil, nil, err
		}
	}

	closeDestination := func() {
		closable, ok := sender.(destination.ClosableSender)
		if !ok {
			return
		}
		if err := closable.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("closing destination failed", "error", err)
		}
	}

	return pipeline.New(readers, sender, pipeline.WithParallelReads(o.parallelReads)), closeDestination, nil
}

// jobFile is a job description with the name used to report it.
type jobFile struct {
	name    string
	payload []byte
}

// jobs reads the job files, falling back to a single job read from stdin.
func (o *options) jobs() ([]jobFile, error) {
	if len(o.jobPaths) == 0 {
		if o.stdin == nil {
			return nil, errNoJob
		}
		payload, err := io.ReadAll(o.stdin)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(payload)) == 0 {
			return nil, errNoJob
		}
		return []jobFile{{name: "stdin", payload: payload}}, nil
	}

	jobs := make([]jobFile, 0, len(o.jobPaths))
	for _, path := range o.jobPaths {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("job file %q: %w", path, unwrappedError(err))
		}
		jobs = append(jobs, jobFile{name: fmt.Sprintf("%q", path), payload: payload})
	}

	return jobs, nil
}

// runSummary is the response of the job endpoint.
type runSummary struct {
	RunID       string `json:"runId"`
	SupplierID  int    `json:"supplierId"`
	MultiSource bool   `json:"multiSource"`
	RowsRead    int    `json:"rowsRead"`
	Emitted     int    `json:"emitted"`
	Skipped     int    `json:"skipped"`
	Duration    string `json:"duration"`
}

// jobHandler runs the job in the request body. Errors caused by the job description are
// reported as bad requests.
func jobHandler(p *pipeline.Pipeline) server.Handler {
	return func(ctx context.Context, body []byte) (any, error) {
		log := logger.FromContext(ctx).WithName(loggerName)
		result, err := p.Run(ctx, body)
		logRunStats(log, result, err)
		logger.AddRequestFields(ctx, "runId", result.RunID, "supplierId", result.SupplierID)
		if err != nil {
			if errors.Is(err, job.ErrInvalidJob) ||
				errors.Is(err, mapper.ErrInvalidMappingShape) ||
				errors.Is(err, pipeline.ErrUnsupportedSourceType) {
				return nil, fmt.Errorf("%w: %w", server.ErrBadRequest, err)
			}
			return nil, err
		}

		return &runSummary{
			RunID:       result.RunID,
			SupplierID:  result.SupplierID,
			MultiSource: result.MultiSource,
			RowsRead:    result.RowsRead,
			Emitted:     result.Emitted,
			Skipped:     len(result.Skipped),
			Duration:    result.Duration.Round(time.Millisecond).String(),
		}, nil
	}
}
