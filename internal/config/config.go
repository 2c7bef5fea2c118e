// Package config defines the JSON-serializable job configuration for the dump
// loader. It is intentionally small, explicit, and dependency-free so that
// jobs can be loaded from disk and passed through the program without
// additional glue code.
//
// Example:
//
//	{
//	  "storage": { "kind": "sqlite", "dsn": "se.db" },
//	  "dump":    { "dir": "dumps/2024-06", "sites": ["scifi", "cooking"] },
//	  "runtime": { "batch_size": 1000, "exist_ok": true }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Job describes one full load run. It is the top-level object decoded from a
// job file.
type Job struct {
	// Storage selects and configures the destination store.
	Storage StorageConfig `json:"storage"`

	// Dump locates the dump files to load.
	Dump DumpConfig `json:"dump"`

	// Runtime controls batching and the duplicate policy.
	Runtime RuntimeConfig `json:"runtime"`
}

// StorageConfig selects the store used to persist loaded rows.
type StorageConfig struct {
	// Kind selects the storage implementation. Current values: "sqlite",
	// "postgres".
	Kind string `json:"kind"`

	// DSN is the connection string for the selected kind: a file path (or
	// ":memory:") for sqlite, a postgresql:// URL for postgres.
	DSN string `json:"dsn"`
}

// DumpConfig locates the input files.
type DumpConfig struct {
	// Dir is the dump root: Sites.xml at the top, one subdirectory per site
	// containing Users.xml and Posts.xml.
	Dir string `json:"dir"`

	// Sites optionally restricts the load to these site tiny-names. Empty
	// means every site found under Dir.
	Sites []string `json:"sites"`

	// Normalize enables text cleanup (NFC, control-character stripping) on
	// TEXT columns before insert.
	Normalize bool `json:"normalize"`
}

// RuntimeConfig controls batching and the duplicate policy.
type RuntimeConfig struct {
	// BatchSize caps the rows buffered per insert. Zero means the loader
	// default.
	BatchSize int `json:"batch_size"`

	// ExistOK tolerates rows already present in the destination instead of
	// failing the load. Makes re-runs over partially loaded stores idempotent.
	ExistOK bool `json:"exist_ok"`
}

// Read decodes a job file. Unknown fields are rejected so that typos in job
// files fail loudly instead of being silently ignored.
func Read(path string) (Job, error) {
	var j Job
	f, err := os.Open(path)
	if err != nil {
		return j, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&j); err != nil {
		return j, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return j, nil
}
