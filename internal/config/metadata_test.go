// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/nlx/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metafile = `
nwbfile:
  session_description: free viewing of natural images
  session_start_time: 2019-03-04T10:30:00Z
  experimenter: [A. Experimenter]
  lab: Buffalo Lab
  institution: University of Washington
ecephys:
  electrodes: 120
  lfp_template: processed/CSC_FILENUM_.mat
  timestamp_scale: 0.000001
source_paths:
  processed Nlx:
    type: dir
    path: ""
  sorted spikes:
    type: file
    path: ""
`

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()
	md, err := config.LoadMetadata(writeFile(t, dir, "metafile.yml", metafile))
	require.NoError(t, err)

	assert.Equal(t, "free viewing of natural images", md.NWBFile.SessionDescription)
	assert.Equal(t, time.Date(2019, 3, 4, 10, 30, 0, 0, time.UTC), md.NWBFile.SessionStartTime.UTC())
	assert.Equal(t, []string{"A. Experimenter"}, md.NWBFile.Experimenter)
	assert.Equal(t, 120, md.Ecephys.Electrodes)
	assert.Equal(t, filepath.Join(dir, "processed", "CSC_FILENUM_.mat"), md.Ecephys.LFPTemplate)
	assert.Equal(t, "ecephys", md.Ecephys.ProcessingModule)
	assert.NotEmpty(t, md.Ecephys.ProcessingDescription)
	assert.Equal(t, 1e-6, md.Ecephys.TimestampScale)
	assert.Len(t, md.SourcePaths, 2)
	assert.Equal(t, config.SourceFile, md.SourcePaths["sorted spikes"].Type)

	cfg, err := md.Config()
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Electrodes)
	assert.Equal(t, filepath.Join(dir, "processed", "CSC3.mat"), cfg.Template.Path(3))
}

func TestLoadMetadataInvalid(t *testing.T) {
	tests := map[string]string{
		"no electrodes": `
nwbfile: {session_description: x, session_start_time: 2019-03-04T10:30:00Z}
ecephys: {lfp_template: /CSC_FILENUM_.mat}
`,
		"no marker": `
nwbfile: {session_description: x, session_start_time: 2019-03-04T10:30:00Z}
ecephys: {electrodes: 2, lfp_template: /CSC.mat}
`,
		"no description": `
nwbfile: {session_start_time: 2019-03-04T10:30:00Z}
ecephys: {electrodes: 2, lfp_template: /CSC_FILENUM_.mat}
`,
		"bad source type": `
nwbfile: {session_description: x, session_start_time: 2019-03-04T10:30:00Z}
ecephys: {electrodes: 2, lfp_template: /CSC_FILENUM_.mat}
source_paths: {raw Nlx: {type: folder, path: /}}
`,
		"nested module": `
nwbfile: {session_description: x, session_start_time: 2019-03-04T10:30:00Z}
ecephys: {electrodes: 2, lfp_template: /CSC_FILENUM_.mat, processing_module: a/b}
`,
		"not yaml": `nwbfile: [`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.LoadMetadata(writeFile(t, t.TempDir(), "metafile.yml", content))
			assert.Error(t, err)
		})
	}

	_, err := config.LoadMetadata(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestCheckSourcePaths(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "spikes.mat", "")

	md := &config.Metadata{SourcePaths: map[string]config.SourcePath{
		"processed Nlx": {Type: config.SourceDir, Path: dir},
		"sorted spikes": {Type: config.SourceFile, Path: file},
		"raw Nlx":       {Type: config.SourceDir},
	}}
	require.NoError(t, md.CheckSourcePaths())

	md.SourcePaths["sorted spikes"] = config.SourcePath{Type: config.SourceDir, Path: file}
	assert.Error(t, md.CheckSourcePaths())

	md.SourcePaths["sorted spikes"] = config.SourcePath{Type: config.SourceFile, Path: filepath.Join(dir, "nope")}
	assert.Error(t, md.CheckSourcePaths())
}
