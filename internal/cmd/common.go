// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	buspubsub "github.com/mia-platform/feedagg/internal/bus/pubsub"
	"github.com/mia-platform/feedagg/internal/destination"
	"github.com/mia-platform/feedagg/internal/destination/eventhubs"
	destpubsub "github.com/mia-platform/feedagg/internal/destination/pubsub"
	"github.com/mia-platform/feedagg/internal/destination/webhook"
	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/pipeline"
)

const (
	loggerName = "feedagg:cmd"
)

var (
	errNoJob              = errors.New("no job description provided")
	errInvalidDestination = errors.New("invalid destination provided")
	errInvalidEnvironment = errors.New("invalid environment")

	// availableDestinations holds the destinations selectable with the destination flag and
	// their description for command completion.
	availableDestinations = map[string]string{
		"webhook":   "HTTP endpoint configured by FEEDAGG_WEBHOOK_ENDPOINT",
		"pubsub":    "Google Cloud Pub/Sub topic configured by FEEDAGG_RECORDS_TOPIC",
		"eventhubs": "Azure Event Hub configured by AZURE_EVENT_HUB_NAME",
	}
)

// handleError will do custom print error handling based on the type of error received.
// it will return nil if the command must return 0 exit code, otherwise it will return
// the original error.
func handleError(cmd *cobra.Command, err error) error {
	switch {
	case errors.Is(err, errNoJob):
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return nil
	case errors.Is(err, errInvalidDestination):
		cmd.PrintErrln(err)
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return err
	default:
		cmd.PrintErrln(err)
		return err
	}
}

// handleEnvError flattens the errors collected while parsing the environment.
func handleEnvError(err error) error {
	var aggregateErr env.AggregateError
	if errors.As(err, &aggregateErr) {
		messages := make([]string, 0, len(aggregateErr.Errors))
		for _, parseErr := range aggregateErr.Errors {
			messages = append(messages, parseErr.Error())
		}
		return fmt.Errorf("%w: %s", errInvalidEnvironment, strings.Join(messages, ", "))
	}

	return fmt.Errorf("%w: %w", errInvalidEnvironment, err)
}

// unwrappedError returns the unwrapped error if available, otherwise it returns the original error.
func unwrappedError(err error) error {
	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		return unwrapped
	}

	return err
}

// completionFunc completes a flag value with the names of values.
func completionFunc(values map[string]string) cobra.CompletionFunc {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var comps []string
		for name, description := range values {
			if strings.HasPrefix(name, toComplete) {
				comps = append(comps, cobra.CompletionWithDesc(name, description))
			}
		}

		return comps, cobra.ShellCompDirectiveNoFileComp
	}
}

// collectPaths expands every path into the files it names: files are kept as they are,
// directories contribute their direct children only.
func collectPaths(paths []string) ([]string, error) {
	collected := make([]string, 0)
	for _, p := range paths {
		cleanedPath := filepath.Clean(p)
		err := filepath.Walk(cleanedPath, func(walkedPath string, info fs.FileInfo, err error) error {
			if err != nil {
				return fmt.Errorf("job file %q: %w", walkedPath, unwrappedError(err))
			}

			switch {
			case !info.IsDir(): // it's a file add to the collection
				collected = append(collected, walkedPath)
			case info.IsDir() && cleanedPath != walkedPath: // skip directories if is not the root path
				return filepath.SkipDir
			}

			return nil
		})

		if err != nil {
			return nil, err
		}
	}

	return collected, nil
}

// newDestination returns the destination registered under name, configured from the environment.
func newDestination(ctx context.Context, name string) (destination.Sender, error) {
	switch name {
	case "webhook":
		return webhook.NewDestination()
	case "pubsub":
		cfg, err := destpubsub.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		sender, err := destpubsub.NewDestination(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return sender, nil
	case "eventhubs":
		cfg, err := eventhubs.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		sender, err := eventhubs.NewDestination(cfg)
		if err != nil {
			return nil, err
		}
		return sender, nil
	}

	return nil, fmt.Errorf("%w: %s", errInvalidDestination, name)
}

// newConsumer returns a job bus consumer configured from the environment.
func newConsumer(ctx context.Context) (jobConsumer, error) {
	cfg, err := buspubsub.ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	consumer, err := buspubsub.NewConsumer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return consumer, nil
}

// logRunStats reports the outcome of a pipeline run.
func logRunStats(log logger.Logger, result *pipeline.Result, err error) {
	args := []any{
		"runId", result.RunID,
		"supplierId", result.SupplierID,
		"rows", result.RowsRead,
		"emitted", result.Emitted,
		"skipped", len(result.Skipped),
		"duration", result.Duration.Round(time.Millisecond).String(),
	}
	if err != nil {
		log.Error("run failed", append(args, "error", err)...)
		return
	}

	log.Info("run stats", args...)
}
