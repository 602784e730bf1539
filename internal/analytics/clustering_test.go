package analytics_test

import (
	"testing"

	"github.com/jordigilh/regtrack/internal/analytics"
	"github.com/jordigilh/regtrack/internal/store"
)

func strPtr(s string) *string { return &s }

func TestClusterFailures_GroupsByNormalizedSignature(t *testing.T) {
	results := []store.TestResult{
		{FilePath: "data_plane/tests/auth/test_login.py", ClassName: "LoginTests", TestName: "test_ok",
			Status: store.StatusFailed, FailureMessage: strPtr("AssertionError: expected 5 got 3 at line 42")},
		{FilePath: "data_plane/tests/auth/test_login.py", ClassName: "LoginTests", TestName: "test_retry",
			Status: store.StatusFailed, FailureMessage: strPtr("AssertionError: expected 9 got 1 at line 42")},
		{FilePath: "data_plane/tests/auth/test_logout.py", ClassName: "LogoutTests", TestName: "test_ok",
			Status: store.StatusPassed},
	}

	clusters := analytics.ClusterFailures(results)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster (PASSED row excluded, two FAILED rows share a normalized signature), got %d", len(clusters))
	}
	if len(clusters[0].Tests) != 2 {
		t.Fatalf("expected 2 tests in the cluster, got %d", len(clusters[0].Tests))
	}
	if clusters[0].ErrorType != "AssertionError" {
		t.Errorf("ErrorType = %q, want AssertionError", clusters[0].ErrorType)
	}
}

func TestClusterFailures_DistinctErrorTypesDoNotMerge(t *testing.T) {
	results := []store.TestResult{
		{FilePath: "f.py", Status: store.StatusFailed, FailureMessage: strPtr("AssertionError: boom")},
		{FilePath: "f.py", Status: store.StatusFailed, FailureMessage: strPtr("TimeoutError: boom")},
	}
	clusters := analytics.ClusterFailures(results)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 distinct clusters, got %d", len(clusters))
	}
}
