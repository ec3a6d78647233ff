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

// knownKeys are the valid keys in the config file, section-qualified.
var knownKeys = map[string]bool{
	// [device]
	"device.host": true, "device.port": true, "device.user": true,
	"device.password": true, "device.database": true,
	// [host]
	"host.helper_path": true, "host.timeout": true,
	// [sync]
	"sync.conflict_resolution": true, "sync.conflict_window_seconds": true,
	"sync.sync_completed_tasks": true, "sync.completed_task_max_age_days": true,
	"sync.dedupe_repeating_tasks": true, "sync.dry_run": true,
	// [state]
	"state.db_path": true,
	// [logging]
	"logging.log_level": true, "logging.log_format": true,
}

// knownKeysList is the sorted slice form of knownKeys for Levenshtein
// matching. Sorted for deterministic suggestions when two candidates have
// the same edit distance.
var knownKeysList = func() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
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
		keyStr := key.String()

		suggestion := closestMatch(keyStr, knownKeysList)
		if suggestion != "" {
			errs = append(errs, fmt.Errorf("unknown config key %q — did you mean %q?", keyStr, suggestion))
		} else {
			errs = append(errs, fmt.Errorf("unknown config key %q", keyStr))
		}
	}

	return errors.Join(errs...)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance. Keys
// in the wrong section still match on their leaf name.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	unknownLeaf := leafKey(unknown)

	for _, k := range known {
		d := levenshtein(unknown, k)
		if leafDist := levenshtein(unknownLeaf, leafKey(k)); leafDist < d {
			d = leafDist
		}

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

func leafKey(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[i+1:]
	}

	return key
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Use single-row optimization to avoid allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 0; i < len(a); i++ {
		curr[0] = i + 1

		for j := 0; j < len(b); j++ {
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

// minOf returns the minimum of three integers.
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
