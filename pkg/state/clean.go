package state

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/reewardius/thc-recon/pkg/ansi"
)

// Clean rewrites a raw lookup dump as a plain record list: ANSI
// sequences stripped, ";;" status lines and blanks dropped, duplicates
// collapsed, output sorted. An empty outputPath rewrites the input in
// place. Returns the number of records written.
func Clean(inputPath, outputPath string) (int, error) {
	if outputPath == "" {
		outputPath = inputPath
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return 0, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(ansi.Strip(scanner.Text()))
		if line == "" || strings.HasPrefix(line, ";;") {
			continue
		}
		seen[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read input file: %w", err)
	}

	records := make([]string, 0, len(seen))
	for rec := range seen {
		records = append(records, rec)
	}
	sort.Strings(records)

	if err := writeLines(outputPath, records); err != nil {
		return 0, err
	}

	return len(records), nil
}
