// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package convert_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/nlx"
	"github.com/OpenPSG/nlx/edf"
	"github.com/OpenPSG/nlx/internal/config"
	"github.com/OpenPSG/nlx/internal/convert"
	"github.com/OpenPSG/nlx/internal/manifest"
	"github.com/OpenPSG/nlx/matfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/hdf5"
)

// writeRecording writes electrodes 1 and 3 of a three electrode recording.
// edit, if set, adjusts each record before it is written.
func writeRecording(t *testing.T, edit ...func(e int, rec *nlx.Record)) *config.Metadata {
	dir := t.TempDir()
	ts := nlx.Array{Shape: []int{1, 3}, Data: []float64{1e6, 1.001e6, 1.002e6}}

	for e, lfp := range map[int][]float64{1: {1, 2, 3}, 3: {7, 8, 9}} {
		rec := nlx.Record{
			SamplingRate:    32000,
			FirstTimestamp:  ts.Data[0],
			LFPRate:         1000,
			LFP:             nlx.Array{Shape: []int{1, 3}, Data: lfp},
			LFPTimestamps:   ts,
			SpikeTimestamps: nlx.Array{Shape: []int{0, 0}},
			SpikeWaveforms:  nlx.Array{Shape: []int{0, 0}},
			Params:          nlx.Params{NStd: 4, SpikeRate: 400, Buffer: nlx.BufferWindow{Before: 8, After: 24}},
		}
		for _, fn := range edit {
			fn(e, &rec)
		}
		require.NoError(t, matfile.WriteRecord(filepath.Join(dir, "CSC"+string(rune('0'+e))+".mat"), rec))
	}

	return &config.Metadata{
		NWBFile: config.NWBFile{
			SessionDescription: "free viewing",
			SessionStartTime:   time.Date(2019, 3, 4, 10, 30, 0, 0, time.UTC),
		},
		Ecephys: config.Ecephys{
			Electrodes:       3,
			LFPTemplate:      filepath.Join(dir, "CSC_FILENUM_.mat"),
			ProcessingModule: "ecephys",
			TimestampScale:   1e-6,
		},
	}
}

func readData(t *testing.T, path string) ([]uint, []float64) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer f.Close()

	dset, err := f.OpenDataset("acquisition/LFP/LFP_data/data")
	require.NoError(t, err)
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	require.NoError(t, err)

	data := make([]float64, space.SimpleExtentNPoints())
	require.NoError(t, dset.Read(&data))
	return dims, data
}

func assertLFP(t *testing.T, path string) {
	t.Helper()

	dims, data := readData(t, path)
	require.Equal(t, []uint{3, 3}, dims)
	for tp := 0; tp < 3; tp++ {
		assert.Equal(t, float64(1+tp), data[tp*3])
		assert.True(t, math.IsNaN(data[tp*3+1]))
		assert.Equal(t, float64(7+tp), data[tp*3+2])
	}
}

func TestRunEager(t *testing.T) {
	md := writeRecording(t)
	out := t.TempDir()

	rec, err := manifest.Open(filepath.Join(out, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, rec.Close())
	})

	res, err := convert.Run(context.Background(), convert.Options{
		Metadata: md,
		Output:   filepath.Join(out, "session.nwb"),
		EDF:      filepath.Join(out, "session.edf"),
		Recorder: rec,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.NotEmpty(t, res.Identifier)
	assert.Equal(t, 3, res.Electrodes)
	assert.Equal(t, 3, res.Timepoints)
	assert.Equal(t, []int{2}, res.Missing)
	assert.Positive(t, res.Size)

	assertLFP(t, filepath.Join(out, "session.nwb"))

	f, err := os.Open(filepath.Join(out, "session.edf"))
	require.NoError(t, err)
	defer f.Close()
	er, err := edf.Open(f)
	require.NoError(t, err)
	assert.Len(t, er.Header().Signals, 3)

	runs, err := rec.Runs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, manifest.StatusOK, runs[0].Status)
	assert.Equal(t, manifest.ModeEager, runs[0].Mode)

	electrodes, err := rec.Electrodes(context.Background(), res.RunID)
	require.NoError(t, err)
	require.Len(t, electrodes, 3)
	assert.True(t, electrodes[0].Present)
	assert.False(t, electrodes[1].Present)
	assert.True(t, electrodes[2].Present)
}

func TestRunStream(t *testing.T) {
	md := writeRecording(t)
	out := filepath.Join(t.TempDir(), "session.nwb")

	res, err := convert.Run(context.Background(), convert.Options{
		Metadata: md,
		Output:   out,
		Stream:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Missing)

	assertLFP(t, out)
}

func TestRunStreamCanceled(t *testing.T) {
	md := writeRecording(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := convert.Run(ctx, convert.Options{
		Metadata: md,
		Output:   filepath.Join(t.TempDir(), "session.nwb"),
		Stream:   true,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsStreamedEDF(t *testing.T) {
	out := t.TempDir()

	rec, err := manifest.Open(filepath.Join(out, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, rec.Close())
	})

	_, err = convert.Run(context.Background(), convert.Options{
		Metadata: writeRecording(t),
		Output:   filepath.Join(out, "session.nwb"),
		EDF:      filepath.Join(out, "session.edf"),
		Stream:   true,
		Recorder: rec,
	})
	assert.Error(t, err)

	// Invalid options are rejected before a run starts.
	runs, err := rec.Runs(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoFileExists(t, filepath.Join(out, "session.nwb"))
}

func TestRunRemovesPartialOutput(t *testing.T) {
	inconsistent := func(e int, rec *nlx.Record) {
		if e == 3 {
			rec.SamplingRate = 16000
		}
	}
	badRate := func(_ int, rec *nlx.Record) {
		rec.LFPRate = 1.0 / 3
	}

	tests := []struct {
		name   string
		edit   func(int, *nlx.Record)
		stream bool
		edf    bool
		want   error
	}{
		{name: "stream inconsistent", edit: inconsistent, stream: true, want: nlx.ErrInconsistentInput},
		{name: "eager inconsistent", edit: inconsistent, edf: true, want: nlx.ErrInconsistentInput},
		{name: "edf export", edit: badRate, edf: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := writeRecording(t, tt.edit)
			out := t.TempDir()

			opts := convert.Options{
				Metadata: md,
				Output:   filepath.Join(out, "session.nwb"),
				Stream:   tt.stream,
			}
			if tt.edf {
				opts.EDF = filepath.Join(out, "session.edf")
			}

			_, err := convert.Run(context.Background(), opts)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}

			assert.NoFileExists(t, opts.Output)
			if tt.edf {
				assert.NoFileExists(t, opts.EDF)
			}
		})
	}
}

func TestRunRecordsFailure(t *testing.T) {
	md := writeRecording(t)
	out := t.TempDir()

	rec, err := manifest.Open(filepath.Join(out, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, rec.Close())
	})

	boom := errors.New("disk on fire")
	_, err = convert.Run(context.Background(), convert.Options{
		Metadata: md,
		Output:   filepath.Join(out, "session.nwb"),
		Open:     func(string) (nlx.File, error) { return nil, boom },
		Recorder: rec,
	})
	require.ErrorIs(t, err, boom)
	assert.NoFileExists(t, filepath.Join(out, "session.nwb"))

	runs, err := rec.Runs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, manifest.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "disk on fire")
}
