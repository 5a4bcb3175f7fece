package inference

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// LoadLabels reads one class name per line. Blank lines and lines starting
// with # are skipped. An empty path yields no labels.
func LoadLabels(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			GetLogger().Warn("label file not found, using generated class names")
			return nil, nil
		}
		return nil, fmt.Errorf("open label file: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read label file: %w", err)
	}
	return labels, nil
}

// resolveLabels returns exactly count names, filling gaps with class_<i>.
func resolveLabels(labels []string, count int) []string {
	names := make([]string, count)
	for i := range count {
		if i < len(labels) {
			names[i] = labels[i]
		} else {
			names[i] = fmt.Sprintf("class_%d", i)
		}
	}
	return names
}

var namesEntry = regexp.MustCompile(`(\d+)\s*:\s*['"]([^'"]*)['"]`)

// parseNamesMetadata parses the "names" metadata written by ultralytics
// exports, e.g. {0: 'fall', 1: 'person'}.
func parseNamesMetadata(raw string) []string {
	matches := namesEntry.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}

	byIndex := make(map[int]string, len(matches))
	indices := make([]int, 0, len(matches))
	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		byIndex[idx] = m[2]
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	names := make([]string, indices[len(indices)-1]+1)
	for i := range names {
		if name, ok := byIndex[i]; ok {
			names[i] = name
		} else {
			names[i] = fmt.Sprintf("class_%d", i)
		}
	}
	return names
}
