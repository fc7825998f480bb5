// Package state persists collected records between runs and reports
// what changed. The previous run's output file is the only state that
// exists; there is no separate database or cache.
package state

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reewardius/thc-recon/pkg/ansi"
)

// DeltaFileName is the sibling file that receives records absent from
// the previous run. It is only written when the delta is non-empty.
const DeltaFileName = "new_subs.txt"

// Config controls where results land and how stale delta files are
// handled.
type Config struct {
	// OutputPath is the primary results file. Its previous content is
	// the baseline for delta computation.
	OutputPath string

	// ClearStaleDelta removes a leftover delta file when the current
	// run found nothing new. Default is to leave it untouched.
	ClearStaleDelta bool
}

// Store reconciles a run's records against the previous output file.
type Store struct {
	outputPath      string
	deltaPath       string
	clearStaleDelta bool
	logger          zerolog.Logger
}

// Result describes what a reconcile pass did.
type Result struct {
	// Total is the number of records written to the output file.
	Total int

	// Previous is the number of records loaded from the prior run.
	Previous int

	// New lists records absent from the previous run, sorted.
	New []string

	// DeltaPath is the delta file written this run, empty when the
	// delta was empty.
	DeltaPath string
}

// NewStore creates a store writing to cfg.OutputPath, with the delta
// file placed next to it.
func NewStore(cfg Config) (*Store, error) {
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}

	return &Store{
		outputPath:      cfg.OutputPath,
		deltaPath:       filepath.Join(filepath.Dir(cfg.OutputPath), DeltaFileName),
		clearStaleDelta: cfg.ClearStaleDelta,
		logger:          log.With().Str("component", "state").Logger(),
	}, nil
}

// OutputPath returns the primary results file path.
func (s *Store) OutputPath() string {
	return s.outputPath
}

// LoadPrevious reads the prior run's records. A missing or unreadable
// file yields an empty set so the run proceeds as a first run.
func (s *Store) LoadPrevious() map[string]struct{} {
	previous := make(map[string]struct{})

	f, err := os.Open(s.outputPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().
				Err(err).
				Str("path", s.outputPath).
				Msg("Previous output unreadable, treating as first run")
		}
		return previous
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(ansi.Strip(scanner.Text()))
		if line == "" {
			continue
		}
		previous[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn().
			Err(err).
			Str("path", s.outputPath).
			Msg("Previous output partially read")
	}

	return previous
}

// Reconcile overwrites the output file with the current records and
// writes the delta file when anything new appeared. The returned error
// is non-nil only when the primary output could not be written.
func (s *Store) Reconcile(current map[string]struct{}) (*Result, error) {
	previous := s.LoadPrevious()

	var delta []string
	for rec := range current {
		if _, ok := previous[rec]; !ok {
			delta = append(delta, rec)
		}
	}
	sort.Strings(delta)

	records := make([]string, 0, len(current))
	for rec := range current {
		records = append(records, rec)
	}
	sort.Strings(records)

	if err := writeLines(s.outputPath, records); err != nil {
		return nil, fmt.Errorf("write output file: %w", err)
	}

	res := &Result{
		Total:    len(records),
		Previous: len(previous),
		New:      delta,
	}

	if len(delta) > 0 {
		if err := writeLines(s.deltaPath, delta); err != nil {
			s.logger.Warn().
				Err(err).
				Str("path", s.deltaPath).
				Msg("Failed to write delta file")
		} else {
			res.DeltaPath = s.deltaPath
		}
		return res, nil
	}

	if s.clearStaleDelta {
		if err := os.Remove(s.deltaPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().
				Err(err).
				Str("path", s.deltaPath).
				Msg("Failed to remove stale delta file")
		}
	}

	return res, nil
}

// writeLines replaces path with the given lines, one per line with a
// trailing newline, via a temp file in the same directory so readers
// never observe a partial file.
func writeLines(path string, lines []string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".thc-recon-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("write temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}
