package parser

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/jordigilh/regtrack/pkg/metrics"
)

// ParseJobDirectory parses every run-log file and JUnit report under
// dir into a single merged, failure-message-enriched result set (spec
// §4.1). Per-file parse errors are logged and the file is skipped;
// the whole-directory operation never fails because of a single bad
// file.
func ParseJobDirectory(dir string, log logr.Logger) ([]TestResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type pair struct {
		main, rerun string
	}
	byTopology := map[string]*pair{}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".order.txt") {
			continue
		}
		topology := ExtractTopology(e.Name())
		p, ok := byTopology[topology]
		if !ok {
			p = &pair{}
			byTopology[topology] = p
		}
		if IsRerunFile(e.Name()) {
			p.rerun = e.Name()
		} else {
			p.main = e.Name()
		}
	}

	topologies := make([]string, 0, len(byTopology))
	for t := range byTopology {
		topologies = append(topologies, t)
	}
	sort.Strings(topologies)

	var all []TestResult
	for _, topology := range topologies {
		p := byTopology[topology]

		var main, rerun []TestResult
		if p.main != "" {
			main, err = parseLogFile(filepath.Join(dir, p.main), topology, log)
			if err != nil {
				log.Error(err, "skipping unreadable main log file", "file", p.main)
				metrics.RecordParseError("log")
				continue
			}
		}
		if p.rerun != "" {
			rerun, err = parseLogFile(filepath.Join(dir, p.rerun), topology, log)
			if err != nil {
				log.Error(err, "skipping unreadable rerun log file", "file", p.rerun)
				metrics.RecordParseError("log")
				rerun = nil
			}
		}

		all = append(all, MergeMainAndRerun(main, rerun)...)
	}

	overlayJUnitFailures(dir, all, log)

	return all, nil
}

// parseLogFile parses a single run-log file into TestResults,
// skipping non-matching lines.
func parseLogFile(path, topology string, log logr.Logger) ([]TestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var results []TestResult
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	idx := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		r, ok := ParseLogLine(line, topology)
		if !ok {
			continue
		}
		r.OrderIndex = idx
		idx++
		results = append(results, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// overlayJUnitFailures walks <dir>/junit recursively, parsing every
// *.xml file and attaching the matching FailureInfo's combined message
// onto the corresponding TestResult in place.
func overlayJUnitFailures(dir string, results []TestResult, log logr.Logger) {
	junitDir := filepath.Join(dir, "junit")
	if _, err := os.Stat(junitDir); err != nil {
		return
	}

	byKey := make(map[string]*TestResult, len(results))
	for i := range results {
		byKey[results[i].Key()] = &results[i]
	}

	_ = filepath.WalkDir(junitDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Error(err, "skipping unreadable junit path", "path", path)
			return nil //nolint:nilerr -- per-file isolation, never abort the walk
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".xml") {
			return nil
		}

		failures, ferr := ParseJUnitFile(path)
		if ferr != nil {
			log.Error(ferr, "skipping unparseable junit file", "file", path)
			metrics.RecordParseError("junit")
			return nil
		}

		for key, info := range failures {
			if tr, ok := byKey[key]; ok {
				msg := info.CombinedMessage()
				tr.FailureMessage = &msg
			}
		}
		return nil
	})
}
