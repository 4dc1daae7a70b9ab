// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package config loads the metadata file describing a conversion and the
// user defaults of the command line tool.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OpenPSG/nlx"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Source path types.
const (
	SourceDir  = "dir"
	SourceFile = "file"
)

// Metadata is the YAML metadata file of one conversion.
type Metadata struct {
	NWBFile     NWBFile               `yaml:"nwbfile" validate:"required"`
	Ecephys     Ecephys               `yaml:"ecephys" validate:"required"`
	SourcePaths map[string]SourcePath `yaml:"source_paths" validate:"dive,keys,required,endkeys"`
}

// NWBFile holds the session metadata written to the output file.
type NWBFile struct {
	Identifier         string    `yaml:"identifier"`
	SessionDescription string    `yaml:"session_description" validate:"required"`
	SessionStartTime   time.Time `yaml:"session_start_time" validate:"required"`
	Experimenter       []string  `yaml:"experimenter"`
	Lab                string    `yaml:"lab"`
	Institution        string    `yaml:"institution"`
}

// Ecephys describes the electrode files and where their LFP goes.
type Ecephys struct {
	Electrodes            int     `yaml:"electrodes" validate:"gte=1"`
	LFPTemplate           string  `yaml:"lfp_template" validate:"required,contains=_FILENUM_"`
	ProcessingModule      string  `yaml:"processing_module" validate:"omitempty,excludes=/"`
	ProcessingDescription string  `yaml:"processing_description"`
	Stream                bool    `yaml:"stream"`
	SkipConsistencyCheck  bool    `yaml:"skip_consistency_check"`
	TimestampScale        float64 `yaml:"timestamp_scale" validate:"gte=0"`
}

// SourcePath is one named input location.
type SourcePath struct {
	Type string `yaml:"type" validate:"oneof=dir file"`
	Path string `yaml:"path"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadMetadata reads and validates the metadata file at path. A relative
// lfp_template is resolved against the directory of the file.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading metadata: %w", err)
	}

	md := &Metadata{}
	if err := yaml.Unmarshal(data, md); err != nil {
		return nil, fmt.Errorf("error parsing metadata: %w", err)
	}

	// Defaults
	if md.Ecephys.ProcessingModule == "" {
		md.Ecephys.ProcessingModule = "ecephys"
	}
	if md.Ecephys.ProcessingDescription == "" {
		md.Ecephys.ProcessingDescription = "processed extracellular electrophysiology data"
	}
	if md.Ecephys.TimestampScale == 0 {
		md.Ecephys.TimestampScale = 1
	}
	if t := md.Ecephys.LFPTemplate; t != "" && !filepath.IsAbs(t) {
		md.Ecephys.LFPTemplate = filepath.Join(filepath.Dir(path), t)
	}

	if err := md.Validate(); err != nil {
		return nil, err
	}
	return md, nil
}

// Validate checks that all required fields are set.
func (md *Metadata) Validate() error {
	err := validate.Struct(md)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("error validating metadata: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid metadata: %s", strings.Join(msgs, "; "))
}

// CheckSourcePaths verifies that every non-empty source path exists and is
// of its declared type.
func (md *Metadata) CheckSourcePaths() error {
	for name, sp := range md.SourcePaths {
		if sp.Path == "" {
			continue
		}
		info, err := os.Stat(sp.Path)
		if err != nil {
			return fmt.Errorf("error checking source path %q: %w", name, err)
		}
		if info.IsDir() != (sp.Type == SourceDir) {
			return fmt.Errorf("source path %q: %s is not a %s", name, sp.Path, sp.Type)
		}
	}
	return nil
}

// Config returns the electrode file configuration.
func (md *Metadata) Config() (nlx.Config, error) {
	tmpl, err := nlx.ParseTemplate(md.Ecephys.LFPTemplate)
	if err != nil {
		return nlx.Config{}, err
	}
	return nlx.Config{
		Template:             tmpl,
		Electrodes:           md.Ecephys.Electrodes,
		SkipConsistencyCheck: md.Ecephys.SkipConsistencyCheck,
	}, nil
}
