// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the process configuration.
//
// Precedence is ENV > YAML file > defaults. The file is parsed strictly:
// unknown keys and trailing documents are errors. Validation runs last and
// reports every problem at once.
package config
