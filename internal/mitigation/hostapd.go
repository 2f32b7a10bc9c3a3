// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mitigation

import (
	"strings"
)

// hardenConfig sets every key=value directive in a hostapd.conf body.
// Existing keys are rewritten in place, missing ones appended. It reports
// whether anything changed.
func hardenConfig(body string, directives []string) (string, bool) {
	lines := strings.Split(body, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	index := make(map[string]int, len(lines))
	for i, line := range lines {
		key, _, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || strings.HasPrefix(key, "#") {
			continue
		}
		index[strings.TrimSpace(key)] = i
	}

	changed := false
	for _, d := range directives {
		key, _, ok := strings.Cut(d, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if i, found := index[key]; found {
			if strings.TrimSpace(lines[i]) != d {
				lines[i] = d
				changed = true
			}
			continue
		}
		index[key] = len(lines)
		lines = append(lines, d)
		changed = true
	}
	return strings.Join(lines, "\n") + "\n", changed
}
