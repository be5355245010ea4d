package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/crewline/onboard-agent/internal/defaults"
)

// runInit initializes an onboard-agent working directory with default
// files. It creates the directory structure and writes the bundled
// example config. Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing onboard-agent workspace in %s\n", dir)

	for _, sub := range []string{"db", "contacts"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}

	// Config may hold credentials, so it gets restricted permissions.
	configPath := filepath.Join(dir, "config.yaml")
	if err := writeIfMissing(configPath, defaults.ConfigYAML, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml to point at your calendar, mail account, and")
	fmt.Fprintln(w, "contacts directory, then run: onboard-agent serve")
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist, so init never overwrites user customizations.
func writeIfMissing(path string, content []byte, mode os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		return nil // already exists, skip
	}
	return os.WriteFile(path, content, mode)
}
