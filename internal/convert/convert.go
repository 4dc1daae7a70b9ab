// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package convert runs one conversion of electrode files into an NWB file.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/OpenPSG/nlx"
	"github.com/OpenPSG/nlx/edf"
	"github.com/OpenPSG/nlx/internal/config"
	"github.com/OpenPSG/nlx/internal/manifest"
	"github.com/OpenPSG/nlx/matfile"
	"github.com/OpenPSG/nlx/nwb"
	"github.com/google/uuid"
)

// Options configures Run.
type Options struct {
	Metadata *config.Metadata
	Output   string            // NWB file to create
	EDF      string            // Optional EDF export, eager mode only
	Stream   bool              // Read electrodes one at a time
	Open     nlx.Opener        // Defaults to matfile.Open
	Recorder manifest.Recorder // Defaults to a no-op recorder
	Logger   *slog.Logger      // Defaults to slog.Default()
}

// Result summarises a finished conversion.
type Result struct {
	RunID      string
	Identifier string // Identifier of the NWB file
	Electrodes int
	Timepoints int
	Missing    []int
	Size       int64 // Bytes of the NWB file
}

// Run converts the electrode files described by opts.Metadata. Once the
// options and the metadata are valid the run is recorded, whether it
// succeeds or not. A failed run removes the files it created.
func Run(ctx context.Context, opts Options) (res *Result, err error) {
	if opts.Metadata == nil {
		return nil, errors.New("metadata is required")
	}
	if opts.Output == "" {
		return nil, errors.New("output path is required")
	}
	if opts.Stream && opts.EDF != "" {
		return nil, errors.New("edf export needs the whole recording and cannot be combined with streaming")
	}
	if opts.Open == nil {
		opts.Open = matfile.Open
	}
	if opts.Recorder == nil {
		opts.Recorder = manifest.NewNoopRecorder()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cfg, err := opts.Metadata.Config()
	if err != nil {
		return nil, err
	}

	run := manifest.Run{
		ID:         uuid.NewString(),
		StartedAt:  time.Now(),
		Template:   cfg.Template.String(),
		Electrodes: cfg.Electrodes,
		Mode:       manifest.ModeEager,
		Output:     opts.Output,
	}
	if opts.Stream {
		run.Mode = manifest.ModeStream
	}
	logger := opts.Logger.With(slog.String("run", run.ID))
	logger.Info("starting conversion",
		slog.String("template", run.Template),
		slog.Int("electrodes", cfg.Electrodes),
		slog.String("mode", run.Mode))

	res = &Result{RunID: run.ID, Electrodes: cfg.Electrodes}
	var created partial
	defer func() {
		if err != nil {
			created.remove(logger)
		}
		run.FinishedAt = time.Now()
		run.Status = manifest.StatusOK
		if err != nil {
			run.Status = manifest.StatusFailed
			run.Error = err.Error()
		}
		if rerr := opts.Recorder.RecordRun(context.WithoutCancel(ctx), run, electrodeOutcomes(cfg, res.Missing, err == nil)); rerr != nil {
			err = errors.Join(err, fmt.Errorf("error recording run: %w", rerr))
		}
	}()

	md := opts.Metadata
	created.add(opts.Output)
	w, err := nwb.Create(opts.Output, nwb.Header{
		Identifier:            md.NWBFile.Identifier,
		SessionDescription:    md.NWBFile.SessionDescription,
		SessionStartTime:      md.NWBFile.SessionStartTime,
		Experimenter:          md.NWBFile.Experimenter,
		Lab:                   md.NWBFile.Lab,
		Institution:           md.NWBFile.Institution,
		ProcessingModule:      md.Ecephys.ProcessingModule,
		ProcessingDescription: md.Ecephys.ProcessingDescription,
	})
	if err != nil {
		return res, fmt.Errorf("error creating %s: %w", opts.Output, err)
	}
	res.Identifier = w.Header().Identifier

	parser := nlx.NewParser(opts.Open, logger)
	scale := md.Ecephys.TimestampScale
	if opts.Stream {
		err = stream(ctx, parser, cfg, w, scale, res)
	} else {
		err = eager(parser, cfg, w, scale, opts, res, &created)
	}
	if cerr := w.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("error closing %s: %w", opts.Output, cerr))
	}
	if err != nil {
		return res, err
	}

	info, err := os.Stat(opts.Output)
	if err != nil {
		return res, err
	}
	res.Size = info.Size()

	logger.Info("finished conversion",
		slog.String("output", opts.Output),
		slog.Int("timepoints", res.Timepoints),
		slog.Any("missing", res.Missing))

	return res, nil
}

func eager(p *nlx.Parser, cfg nlx.Config, w *nwb.Writer, scale float64, opts Options, res *Result, created *partial) error {
	lfp, err := nlx.Assemble(p, cfg)
	if err != nil {
		return err
	}
	res.Timepoints = lfp.Timepoints
	res.Missing = lfp.Missing

	if opts.EDF != "" {
		created.add(opts.EDF)
		if err := exportEDF(opts.EDF, lfp, opts.Metadata); err != nil {
			return fmt.Errorf("error exporting %s: %w", opts.EDF, err)
		}
	}

	lfp.Timestamps = scaled(lfp.Timestamps, scale)
	return w.WriteLFP(lfp)
}

func stream(ctx context.Context, p *nlx.Parser, cfg nlx.Config, w *nwb.Writer, scale float64, res *Result) (err error) {
	r, err := nlx.NewLFPReader(p, cfg)
	if err != nil {
		return err
	}
	res.Timepoints = r.Timepoints()

	sw, err := w.BeginLFP(nwb.SeriesInfo{
		Electrodes: r.Electrodes(),
		Timestamps: scaled(r.Timestamps(), scale),
		Resolution: r.SamplingRate(),
	})
	if err != nil {
		return err
	}
	defer func() {
		res.Missing = r.Missing()
		if err != nil {
			err = errors.Join(err, sw.Abort())
			return
		}
		err = sw.Close()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, samples, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := sw.WriteElectrode(e, samples); err != nil {
			return err
		}
	}
}

func exportEDF(path string, lfp *nlx.LFP, md *config.Metadata) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	return edf.ExportLFP(f, lfp, edf.ExportOptions{
		RecordingID: md.NWBFile.SessionDescription,
		StartTime:   md.NWBFile.SessionStartTime,
	})
}

// partial lists the files a run has created so far.
type partial []string

func (p *partial) add(path string) {
	*p = append(*p, path)
}

func (p partial) remove(logger *slog.Logger) {
	for _, path := range p {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("error removing partial output", slog.String("path", path), slog.Any("error", err))
		}
	}
}

func scaled(ts []float64, scale float64) []float64 {
	if scale == 1 || scale == 0 {
		return ts
	}
	out := make([]float64, len(ts))
	for i, v := range ts {
		out[i] = v * scale
	}
	return out
}

// electrodeOutcomes lists every electrode of the run. Presence is only
// known once the electrodes have been read.
func electrodeOutcomes(cfg nlx.Config, missing []int, complete bool) []manifest.Electrode {
	if !complete {
		return nil
	}
	out := make([]manifest.Electrode, cfg.Electrodes)
	for i := range out {
		e := i + 1
		out[i] = manifest.Electrode{
			Electrode: e,
			Path:      cfg.Template.Path(e),
			Present:   !slices.Contains(missing, e),
		}
	}
	return out
}
