// Package parser implements the Log Parser (spec §4.1): turning raw
// `.order.txt` run logs and JUnit XML into normalized TestResult
// records, with main/rerun merge semantics.
package parser

import "fmt"

// Status is the parser's intermediate test outcome. Unlike the stored
// model, Status retains ERROR; folding ERROR into FAILED happens at
// the import boundary (spec §3 I2), not here.
type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
	StatusError   Status = "ERROR"
)

// TestResult is the parser's normalized output record for a single
// test execution, before import-time denormalization.
type TestResult struct {
	SetupIP          string
	Status           Status
	FilePath         string
	ClassName        string
	TestName         string
	JenkinsTopology  string
	OrderIndex       int
	WasRerun         bool
	RerunStillFailed bool
	FailureMessage   *string
}

// Key returns the composite logical key file_path::class_name::test_name
// used to correlate a test across the main run, the rerun, and JUnit.
func (r TestResult) Key() string {
	return TestKey(r.FilePath, r.ClassName, r.TestName)
}

// TestKey builds the composite logical key for a test identified by
// its file path, class name and test name.
func TestKey(filePath, className, testName string) string {
	return fmt.Sprintf("%s::%s::%s", filePath, className, testName)
}

// JobSummary is the parser-level statistics view of a parsed
// directory. Its pass rate denominator is "executed" (total-skipped),
// distinct from the persisted Job.PassRate, which divides by total
// (spec §9 Open Question (a); both conventions are preserved).
type JobSummary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ExecutedPassRate returns 100*passed/(total-skipped), or 0 if no test
// was actually executed.
func (s JobSummary) ExecutedPassRate() float64 {
	executed := s.Total - s.Skipped
	if executed <= 0 {
		return 0
	}
	return 100 * float64(s.Passed) / float64(executed)
}

// Summarize computes a JobSummary over a slice of parsed results,
// folding ERROR into FAILED for counting purposes (the summary is a
// reporting view, not the stored representation).
func Summarize(results []TestResult) JobSummary {
	s := JobSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed, StatusError:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}
