package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jordigilh/regtrack/internal/store"
)

// numericTokenRe matches "0x..." hex addresses and standalone runs of
// digits — the tokens normalized_message strips so that two
// failures differing only in a build number or memory address cluster
// together as one signature.
var numericTokenRe = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b|\b\d+\b`)

// lineNumberRe extracts a "file.go:123" or "file.py:123" style
// location out of a failure message, used to fill FailureCluster's
// LineNumber when present.
var lineNumberRe = regexp.MustCompile(`:(\d+)(?::|\b)`)

// ClusterFailures implements spec §4.7.4 for a single job: groups
// every FAILED TestResult by a {error_type, file_path, line_number,
// normalized_message, fingerprint} signature.
func ClusterFailures(results []store.TestResult) []FailureCluster {
	type key struct {
		errorType  string
		filePath   string
		lineNumber int
		normalized string
	}

	clusters := make(map[key]*FailureCluster)
	firstRawMessage := make(map[key]string)
	order := make([]key, 0)

	for _, tr := range results {
		if tr.Status != store.StatusFailed {
			continue
		}
		msg := ""
		if tr.FailureMessage != nil {
			msg = *tr.FailureMessage
		}

		errType := errorType(msg)
		normalized := normalizeMessage(msg)
		line := extractLineNumber(msg)
		k := key{errorType: errType, filePath: tr.FilePath, lineNumber: line, normalized: normalized}

		c, ok := clusters[k]
		if !ok {
			c = &FailureCluster{
				ErrorType:         errType,
				FilePath:          tr.FilePath,
				LineNumber:        line,
				NormalizedMessage: normalized,
				Fingerprint:       fingerprint(errType, tr.FilePath, line, normalized),
				MatchType:         "exact",
			}
			clusters[k] = c
			firstRawMessage[k] = msg
			order = append(order, k)
		} else if msg != firstRawMessage[k] {
			c.MatchType = "fuzzy"
		}

		c.Tests = append(c.Tests, tr.TestKey())
		if tr.JenkinsTopology != nil {
			c.Topologies = appendUnique(c.Topologies, *tr.JenkinsTopology)
		}
		if tr.Priority != nil {
			c.Priorities = appendUnique(c.Priorities, string(*tr.Priority))
		}
	}

	out := make([]FailureCluster, 0, len(order))
	for _, k := range order {
		out = append(out, *clusters[k])
	}
	sort.Slice(out, func(i, j int) bool { return len(out[i].Tests) > len(out[j].Tests) })
	return out
}

// errorType is the first token of a failure message before its first
// colon (spec §4.7.4), e.g. "AssertionError: expected 5 got 3" -> "AssertionError".
func errorType(msg string) string {
	if idx := strings.Index(msg, ":"); idx >= 0 {
		return strings.TrimSpace(msg[:idx])
	}
	return strings.TrimSpace(msg)
}

// normalizeMessage strips variable numeric/address tokens so failures
// that differ only in a build number or pointer value cluster together.
func normalizeMessage(msg string) string {
	return strings.TrimSpace(numericTokenRe.ReplaceAllString(msg, "N"))
}

func extractLineNumber(msg string) int {
	m := lineNumberRe.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// fingerprint hashes the cluster signature into a short stable id.
func fingerprint(errType, filePath string, line int, normalized string) string {
	h := sha256.Sum256([]byte(errType + "|" + filePath + "|" + strconv.Itoa(line) + "|" + normalized))
	return hex.EncodeToString(h[:])[:16]
}

func appendUnique(s []string, v string) []string {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}
