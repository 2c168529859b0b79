// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

// Sentinel errors of the file loader. Match them with errors.Is.
var (
	// ErrUnknownConfigField marks a YAML key that maps to no setting.
	ErrUnknownConfigField = errors.New("unknown config field")

	// ErrMultipleDocuments marks a file holding more than one YAML document.
	ErrMultipleDocuments = errors.New("config file contains multiple documents or trailing content")
)
