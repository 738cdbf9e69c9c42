// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

const (
	consumeCmdUsage = "consume"
	consumeCmdShort = "process one job waiting on the job bus"
	consumeCmdLong  = `Process one job waiting on the job bus.
	The command waits for a single job description on the configured Pub/Sub
	subscription, acknowledges it and runs it to completion. When no job arrives
	before FEEDAGG_JOBS_WAIT_TIMEOUT the command exits successfully.

	Records are sent to the destination selected with --destination or
	FEEDAGG_DESTINATION.`

	consumeCmdExample = `# Take the next job from the bus and publish records on a Pub/Sub topic
	feedagg consume --destination pubsub

	# Take the next job and print the records instead of sending them
	feedagg consume --local-output`

	runCmdUsage = "run"
	runCmdShort = "run job descriptions read from files or stdin"
	runCmdLong  = `Run job descriptions read from files or stdin.
	Every file passed with --job-file, or found at the first level of a directory
	passed with it, must contain one JSON job description. Jobs run one after the
	other in the given order and the first failing job stops the command.

	Without --job-file a single job is read from the standard input.`

	runCmdExample = `# Run a job and print the normalized records
	feedagg run --job-file job.json --local-output

	# Run a job piped from another command
	cat job.json | feedagg run --destination eventhubs`

	serveCmdUsage = "serve"
	serveCmdShort = "expose an HTTP endpoint running jobs on request"
	serveCmdLong  = `Expose an HTTP endpoint running jobs on request.
	Every POST on /jobs carries one JSON job description, the job runs while the
	request is open and the response contains the run summary. Invalid jobs are
	answered with 400.

	The server listens on HTTP_HOST and HTTP_PORT until the process is stopped.`

	serveCmdExample = `# Listen on port 8080 and forward records to the webhook
	HTTP_PORT=8080 feedagg serve --destination webhook`
)

// ConsumeCmd returns the Cobra command that processes one job from the job bus.
func ConsumeCmd() *cobra.Command {
	flags := &flags{}
	cmd := &cobra.Command{
		Use:     consumeCmdUsage,
		Short:   heredoc.Doc(consumeCmdShort),
		Long:    heredoc.Doc(consumeCmdLong),
		Example: heredoc.Doc(consumeCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.toOptions(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.executeConsume(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// RunCmd returns the Cobra command that runs jobs from files or stdin.
func RunCmd() *cobra.Command {
	flags := &flags{}
	cmd := &cobra.Command{
		Use:     runCmdUsage,
		Short:   heredoc.Doc(runCmdShort),
		Long:    heredoc.Doc(runCmdLong),
		Example: heredoc.Doc(runCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.toOptions(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.executeRun(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	flags.addJobFlags(cmd)
	return cmd
}

// ServeCmd returns the Cobra command that serves the HTTP job endpoint.
func ServeCmd() *cobra.Command {
	flags := &flags{}
	cmd := &cobra.Command{
		Use:     serveCmdUsage,
		Short:   heredoc.Doc(serveCmdShort),
		Long:    heredoc.Doc(serveCmdLong),
		Example: heredoc.Doc(serveCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.toOptions(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.executeServe(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}
