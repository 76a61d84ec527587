package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownSectionKeys maps each top-level TOML section name to its valid keys.
var knownSectionKeys = map[string]map[string]bool{
	"replica":  {"guid": true},
	"transfer": {"default_buffer_size": true},
	"store":    {"data_dir": true, "spool_dir": true},
	"logging":  {"level": true, "format": true, "file": true},
	"server":   {"listen_addr": true},
}

var knownSectionNames = func() []string {
	names := make([]string, 0, len(knownSectionKeys))
	for k := range knownSectionKeys {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns an
// error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		if err := buildUnknownKeyError(key.String()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func buildUnknownKeyError(keyStr string) error {
	parts := strings.SplitN(keyStr, ".", 2)

	section := parts[0]
	if _, ok := knownSectionKeys[section]; !ok {
		if suggestion := closestMatch(section, knownSectionNames); suggestion != "" {
			return fmt.Errorf("unknown config section %q — did you mean %q?", section, suggestion)
		}

		return fmt.Errorf("unknown config section %q", section)
	}

	if len(parts) == 1 {
		return nil
	}

	field := parts[1]
	if knownSectionKeys[section][field] {
		return nil
	}

	fieldNames := make([]string, 0, len(knownSectionKeys[section]))
	for k := range knownSectionKeys[section] {
		fieldNames = append(fieldNames, k)
	}

	sort.Strings(fieldNames)

	if suggestion := closestMatch(field, fieldNames); suggestion != "" {
		return fmt.Errorf("unknown config key %q in [%s] — did you mean %q?", field, section, suggestion)
	}

	return fmt.Errorf("unknown config key %q in [%s]", field, section)
}

// closestMatch finds the closest known key by Levenshtein distance. Returns
// empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = minOf(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
