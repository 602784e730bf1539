package ingestion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jordigilh/regtrack/internal/ciclient"
)

// parseBuildMap turns a decoded buildMap.json payload — a flat
// `{"<MODULE_JOB_NAME>": <buildId:int>, …}` manifest (spec §6 "CI
// build manifest") — into the set of module jobs for this parent
// build (spec §4.5 step 4.b).
func parseBuildMap(buildMap map[string]any, parentBuildURL string) []moduleJob {
	base := parentBaseURL(parentBuildURL)

	modules := make([]moduleJob, 0, len(buildMap))
	for jenkinsJobName, raw := range buildMap {
		jobID := buildIDString(raw)
		if jobID == "" {
			continue
		}
		modules = append(modules, moduleJob{
			name:  ciclient.NormalizeModuleName(jenkinsJobName),
			url:   ciclient.ModuleJobURL(base, jenkinsJobName, jobID),
			jobID: jobID,
		})
	}
	return modules
}

// buildIDString renders a decoded JSON build id (a float64 via
// encoding/json, or occasionally a string) as its canonical decimal form.
func buildIDString(raw any) string {
	switch v := raw.(type) {
	case float64:
		return fmt.Sprintf("%.0f", v)
	case string:
		return v
	default:
		return ""
	}
}

// parentBaseURL strips the trailing /job/<name>/<buildNumber>/ suffix
// from a parent build URL, returning the Jenkins base (e.g.
// "https://ci.example.com") used to build module job URLs.
func parentBaseURL(buildURL string) string {
	trimmed := strings.TrimRight(buildURL, "/")
	if idx := strings.Index(trimmed, "/job/"); idx >= 0 {
		return trimmed[:idx]
	}
	return trimmed
}

// displayNameVersionRe matches the "VER: X.Y.Z.W" encoding a module
// sub-job's displayName carries (spec §4.5 "Unified-parent model").
var displayNameVersionRe = regexp.MustCompile(`VER:\s*(\d+\.\d+\.\d+\.\d+)`)

// extractVersionFromDisplayName pulls the version out of a module
// job's displayName, or nil if the pattern is absent.
func extractVersionFromDisplayName(displayName string) *string {
	m := displayNameVersionRe.FindStringSubmatch(displayName)
	if m == nil {
		return nil
	}
	return &m[1]
}
