// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package main provides the CLI entrypoint for nlxconv.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/OpenPSG/nlx"
	"github.com/OpenPSG/nlx/internal/config"
	"github.com/OpenPSG/nlx/internal/convert"
	"github.com/OpenPSG/nlx/internal/logging"
	"github.com/OpenPSG/nlx/internal/manifest"
	"github.com/OpenPSG/nlx/matfile"
)

const (
	defaultRunsLimit = 20
	minStatusWidth   = 16
)

var (
	settings config.Settings

	logLevel  string
	logFormat string

	convertMetafile string
	convertOut      string
	convertStream   bool
	convertEDF      string
	convertManifest string

	runsManifest string
	runsLimit    int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "nlxconv",
		Short:             "Convert per-electrode LFP files into NWB",
		SilenceUsage:      true,
		PersistentPreRunE: loadSettings,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newRunsCmd())

	return rootCmd
}

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert the electrode files described by a metadata file",
		Args:  cobra.NoArgs,
		RunE:  runConvertCmd,
	}

	cmd.Flags().StringVar(&convertMetafile, "metafile", "", "YAML metadata file")
	cmd.Flags().StringVar(&convertOut, "out", "", "NWB file to create")
	cmd.Flags().BoolVar(&convertStream, "stream", false, "read one electrode file at a time")
	cmd.Flags().StringVar(&convertEDF, "edf", "", "also export the LFP as EDF to this path")
	cmd.Flags().StringVar(&convertManifest, "manifest", "", "SQLite database recording conversion runs")
	_ = cmd.MarkFlagRequired("metafile")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runConvertCmd(cmd *cobra.Command, _ []string) error {
	applyBool(cmd, "stream", &convertStream, settings.Stream)
	applyString(cmd, "manifest", &convertManifest, settings.Manifest)

	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	md, err := config.LoadMetadata(convertMetafile)
	if err != nil {
		return err
	}
	if err := md.CheckSourcePaths(); err != nil {
		return err
	}

	var rec manifest.Recorder = manifest.NewNoopRecorder()
	if convertManifest != "" {
		db, err := manifest.Open(convertManifest)
		if err != nil {
			return fmt.Errorf("error opening manifest: %w", err)
		}
		rec = db
	}
	defer func() {
		if cerr := rec.Close(); cerr != nil {
			logger.Warn("failed to close manifest", slog.Any("error", cerr))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := convert.Run(ctx, convert.Options{
		Metadata: md,
		Output:   convertOut,
		EDF:      convertEDF,
		Stream:   streamMode(cmd, md),
		Recorder: rec,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "wrote %s (%s)\n", convertOut, humanize.Bytes(uint64(res.Size)))
	fmt.Fprintf(out, "identifier: %s\n", res.Identifier)
	fmt.Fprintf(out, "electrodes: %d, timepoints: %s\n", res.Electrodes, humanize.Comma(int64(res.Timepoints)))
	if len(res.Missing) > 0 {
		fmt.Fprintf(out, "missing electrodes: %s\n", joinInts(res.Missing))
	}
	return nil
}

// streamMode reports whether to stream. An explicit --stream wins over the
// metadata file, which wins over the user defaults.
func streamMode(cmd *cobra.Command, md *config.Metadata) bool {
	if cmd.Flags().Changed("stream") {
		return convertStream
	}
	return convertStream || md.Ecephys.Stream
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the content of one electrode file",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspectCmd,
	}
}

func runInspectCmd(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	p := nlx.NewParser(matfile.Open, logger)
	rec, err := p.Parse(args[0])
	if err != nil {
		return err
	}
	if rec.Empty() {
		return fmt.Errorf("%s: %w", args[0], os.ErrNotExist)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "sampling rate\t%g Hz\n", rec.SamplingRate)
	fmt.Fprintf(w, "lfp rate\t%g Hz\n", rec.LFPRate)
	fmt.Fprintf(w, "first timestamp\t%g\n", rec.FirstTimestamp)
	fmt.Fprintf(w, "first lfp timestamp\t%g\n", rec.FirstLFPTimestamp)
	fmt.Fprintf(w, "lfp\t%s\n", shape(rec.LFP))
	fmt.Fprintf(w, "lfp timestamps\t%s\n", shape(rec.LFPTimestamps))
	fmt.Fprintf(w, "spike timestamps\t%s\n", shape(rec.SpikeTimestamps))
	fmt.Fprintf(w, "spike waveforms\t%s\n", shape(rec.SpikeWaveforms))
	fmt.Fprintf(w, "n_std\t%g\n", rec.Params.NStd)
	fmt.Fprintf(w, "rawspk\t%g\n", rec.Params.RawSpike)
	fmt.Fprintf(w, "resamp\t%g\n", rec.Params.Resample)
	fmt.Fprintf(w, "saveupsamp\t%g\n", rec.Params.SaveUpsampled)
	fmt.Fprintf(w, "spkfq\t%g\n", rec.Params.SpikeRate)
	fmt.Fprintf(w, "spkbuff\t%d before, %d after\n", rec.Params.Buffer.Before, rec.Params.Buffer.After)
	return w.Flush()
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved defaults and where they come from",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "config file\t%s\n", config.DefaultConfigPath())
	fmt.Fprintf(w, "env prefix\t%s_\n", config.EnvPrefix)
	fmt.Fprintf(w, "log-level\t%s\n", settings.LogLevel)
	fmt.Fprintf(w, "log-format\t%s\n", settings.LogFormat)
	fmt.Fprintf(w, "stream\t%t\n", settings.Stream)
	fmt.Fprintf(w, "manifest\t%s\n", settings.Manifest)
	return w.Flush()
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent conversion runs",
		Args:  cobra.NoArgs,
		RunE:  runRunsCmd,
	}

	cmd.Flags().StringVar(&runsManifest, "manifest", "", "SQLite database recording conversion runs")
	cmd.Flags().IntVar(&runsLimit, "limit", defaultRunsLimit, "number of runs to list")

	return cmd
}

func runRunsCmd(cmd *cobra.Command, _ []string) error {
	applyString(cmd, "manifest", &runsManifest, settings.Manifest)
	if runsManifest == "" {
		return fmt.Errorf("no manifest configured, pass --manifest or set %s_MANIFEST", config.EnvPrefix)
	}
	if runsLimit <= 0 {
		return fmt.Errorf("limit must be positive")
	}

	db, err := manifest.Open(runsManifest)
	if err != nil {
		return fmt.Errorf("error opening manifest: %w", err)
	}
	defer db.Close()

	runs, err := db.Runs(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
		return nil
	}

	width := statusWidth(cmd.OutOrStdout())
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tMODE\tELECTRODES\tSTATUS\tOUTPUT")
	for _, run := range runs {
		status := run.Status
		if run.Error != "" {
			status += ": " + run.Error
		}
		if width > 0 && len(status) > width {
			status = status[:width-3] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			run.ID, humanize.Time(run.StartedAt), run.Mode, run.Electrodes, status, run.Output)
	}
	return w.Flush()
}

// statusWidth is the room left for the status column on a terminal, or 0
// when the output is not a terminal and nothing needs truncating.
func statusWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 0
	}
	return max(width/3, minStatusWidth)
}

// loadSettings resolves the TOML and environment defaults. Flags given on
// the command line win.
func loadSettings(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	settings = config.Resolve(fileCfg, env)

	applyString(cmd, "log-level", &logLevel, settings.LogLevel)
	applyString(cmd, "log-format", &logFormat, settings.LogFormat)
	return nil
}

func newLogger(w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{Level: logLevel, Format: logFormat, Output: w})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func applyString(cmd *cobra.Command, name string, target *string, value string) {
	if cmd.Flags().Changed(name) || value == "" {
		return
	}
	*target = value
}

func applyBool(cmd *cobra.Command, name string, target *bool, value bool) {
	if cmd.Flags().Changed(name) || !value {
		return
	}
	*target = value
}

func shape(a nlx.Array) string {
	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = fmt.Sprint(d)
	}
	return strings.Join(dims, "x")
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = fmt.Sprint(n)
	}
	return strings.Join(s, ", ")
}
