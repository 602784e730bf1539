package parser

import (
	"regexp"
	"strings"
)

// logLineRe matches "[<setup_ip>] <STATUS> <rest>", where <rest> is
// further split on "::" into exactly file/class/test.
var logLineRe = regexp.MustCompile(`^\[([^\]]+)\]\s+(PASSED|FAILED|SKIPPED|ERROR)\s+(\S+)$`)

// ParseLogLine parses a single run-log line into a TestResult. Lines
// that do not match the expected shape return ok=false and are
// skipped by the caller (spec §4.1).
func ParseLogLine(line, topology string) (TestResult, bool) {
	m := logLineRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return TestResult{}, false
	}

	parts := strings.SplitN(m[3], "::", 3)
	if len(parts) != 3 {
		return TestResult{}, false
	}

	return TestResult{
		SetupIP:         m[1],
		Status:          Status(m[2]),
		FilePath:        parts[0],
		ClassName:       parts[1],
		TestName:        parts[2],
		JenkinsTopology: topology,
	}, true
}

// ExtractTopology derives the execution topology from a run-log file
// name. Names are of the form "<timestamp>_bp_<topology>.order.txt"
// (main) or "re_run_bp_<topology>.order.txt" (rerun); the topology is
// the 3rd (main) or 4th (rerun) underscore-separated field of the
// stem. Missing fields fall back to "unknown".
func ExtractTopology(filename string) string {
	stem := strings.TrimSuffix(filename, ".order.txt")
	parts := strings.Split(stem, "_")

	isRerun := strings.HasPrefix(stem, "re_run_")
	idx := 2 // 3rd field, 0-indexed
	if isRerun {
		idx = 3 // 4th field, 0-indexed
	}

	if idx >= len(parts) {
		return "unknown"
	}
	topology := parts[idx]
	if topology == "" {
		return "unknown"
	}
	return topology
}

// IsRerunFile reports whether a run-log file name is a rerun log.
func IsRerunFile(filename string) bool {
	return strings.HasPrefix(strings.TrimSuffix(filename, ".order.txt"), "re_run_")
}
