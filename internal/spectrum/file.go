package spectrum

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadFile reads a two-column energy-spectrum file: one "x y" sample per
// line, blank lines skipped.
func ReadFile(path string) (Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading spectrum file: %w", err)
	}
	defer f.Close()

	var s Spectrum
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var p Sample
		if _, err := fmt.Sscanf(line, "%f %f", &p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("reading spectrum file %s: bad line %q: %w",
				path, line, err)
		}
		s = append(s, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading spectrum file: %w", err)
	}
	return s, nil
}

// WriteFile writes a spectrum to path in the two-column format.
func WriteFile(path string, s Spectrum) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing spectrum file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range s {
		if _, err := fmt.Fprintf(w, "%g %g\n", p.X, p.Y); err != nil {
			return fmt.Errorf("writing spectrum file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing spectrum file: %w", err)
	}
	return nil
}
