// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/mia-platform/feedagg/internal/server"
)

const (
	localOutputFlagName  = "local-output"
	localOutputFlagUsage = "If set, writes the output to stdout instead of sending it to the destination"
	defaultLocalOutput   = false

	destinationFlagName  = "destination"
	destinationFlagShort = "d"
	destinationFlagUsage = "Where normalized records are sent, one of: webhook, pubsub, eventhubs. Overrides FEEDAGG_DESTINATION"

	suppliersFileFlagName  = "suppliers-file"
	suppliersFileFlagUsage = "Path to the YAML or JSON file holding the per supplier transport settings. Overrides FEEDAGG_SUPPLIERS_FILE"

	parallelReadsFlagName  = "parallel-reads"
	parallelReadsFlagUsage = "If set, the sub-sources of a multi-source job are read concurrently"

	jobFileFlagName  = "job-file"
	jobFileFlagShort = "f"
	jobFileFlagUsage = "Path to a file or directory containing job descriptions. Can be specified multiple times."
)

// environment holds the process settings that flags can override.
type environment struct {
	Destination      string `env:"FEEDAGG_DESTINATION" envDefault:"webhook"`
	SuppliersFile    string `env:"FEEDAGG_SUPPLIERS_FILE"`
	MorrisSupplierID int    `env:"FEEDAGG_MORRIS_SUPPLIER_ID" envDefault:"19"`
	ParallelReads    bool   `env:"FEEDAGG_PARALLEL_READS"`
}

// flags collects the CLI options shared by the consume, run and serve commands.
type flags struct {
	localOutput   bool
	destination   string
	suppliersFile string
	parallelReads bool
	jobPaths      []string
}

// addFlags registers the CLI flags on cmd.
func (f *flags) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.localOutput, localOutputFlagName, defaultLocalOutput, localOutputFlagUsage)
	cmd.Flags().StringVarP(&f.destination, destinationFlagName, destinationFlagShort, "", destinationFlagUsage)
	cmd.Flags().StringVar(&f.suppliersFile, suppliersFileFlagName, "", suppliersFileFlagUsage)
	cmd.Flags().BoolVar(&f.parallelReads, parallelReadsFlagName, false, parallelReadsFlagUsage)

	_ = cmd.RegisterFlagCompletionFunc(destinationFlagName, completionFunc(availableDestinations))
	_ = cmd.MarkFlagFilename(suppliersFileFlagName, "yaml", "yml", "json")
}

// addJobFlags registers the flags selecting the jobs to run.
func (f *flags) addJobFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.jobPaths, jobFileFlagName, jobFileFlagShort, nil, jobFileFlagUsage)
}

// toOptions builds an options instance from the parsed flags and the environment.
func (f *flags) toOptions(cmd *cobra.Command) (*options, error) {
	settings, err := env.ParseAs[environment]()
	if err != nil {
		return nil, handleEnvError(err)
	}

	jobPaths, err := collectPaths(f.jobPaths)
	if err != nil {
		return nil, err
	}

	destinationName := settings.Destination
	if f.destination != "" {
		destinationName = f.destination
	}

	suppliersFile := settings.SuppliersFile
	if f.suppliersFile != "" {
		suppliersFile = f.suppliersFile
	}

	return &options{
		destinationName:   strings.ToLower(destinationName),
		localOutput:       f.localOutput,
		suppliersFile:     suppliersFile,
		morrisSupplierID:  settings.MorrisSupplierID,
		parallelReads:     f.parallelReads || settings.ParallelReads,
		jobPaths:          jobPaths,
		stdin:             cmd.InOrStdin(),
		stdout:            cmd.OutOrStdout(),
		readersGetter:     newRegistry,
		destinationGetter: newDestination,
		consumerGetter:    newConsumer,
		serverGetter:      server.NewServer,
	}, nil
}
