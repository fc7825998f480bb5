// Package targets assembles the target domain list from command-line
// values and newline-delimited list files.
package targets

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load merges directly supplied targets with the entries of an optional
// list file and deduplicates the result by exact string, preserving the
// order of first appearance. listPath may be empty.
func Load(direct []string, listPath string) ([]string, error) {
	all := make([]string, 0, len(direct))
	for _, t := range direct {
		all = append(all, strings.TrimSpace(t))
	}

	if listPath != "" {
		fromFile, err := ReadFile(listPath)
		if err != nil {
			return nil, err
		}
		all = append(all, fromFile...)
	}

	return Dedupe(all), nil
}

// ReadFile reads a newline-delimited target list. Blank lines and lines
// starting with "#" are skipped; entries are trimmed.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open target list: %w", err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read target list: %w", err)
	}

	return out, nil
}

// Dedupe removes exact duplicates, keeping the first appearance of each
// target and the overall order. Empty entries are dropped.
func Dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, t := range list {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
