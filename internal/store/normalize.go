package store

import "regexp"

// paramSuffixRe matches a trailing parameterized-test suffix, e.g.
// "test_foo[bar]" -> suffix "[bar]".
var paramSuffixRe = regexp.MustCompile(`\[[^\]]*\]$`)

// NormalizeTestName strips a trailing "[...]" parameterization suffix
// so that e.g. normalize("x[param]") == normalize("x") == "x" (spec
// §3 I6, §9 "Parameterized tests"). It is the Go-side twin of
// NormalizedNameSQLExpr, used wherever both sides of a join must agree
// on the same normalization.
func NormalizeTestName(name string) string {
	return paramSuffixRe.ReplaceAllString(name, "")
}

// NormalizedNameSQLExpr returns a SQL CASE expression that normalizes
// the given column the same way NormalizeTestName does, for use in
// backfill UPDATE/JOIN statements where the normalization must happen
// inside the database rather than row-by-row in Go (spec §4.2, §9
// "N+1 avoidance").
func NormalizedNameSQLExpr(column string) string {
	return "CASE WHEN " + column + " ~ '\\[[^]]*\\]$' THEN regexp_replace(" + column + ", '\\[[^]]*\\]$', '') ELSE " + column + " END"
}

// testcaseModuleRe extracts the module segment from a file path of
// the form "data_plane/tests/<module>/...".
var testcaseModuleRe = regexp.MustCompile(`^data_plane/tests/([^/]+)/`)

// DeriveTestcaseModule implements I5: the authoritative module for a
// TestResult is derived from its file_path, not the Jenkins job's
// module. Returns nil when the pattern does not match.
func DeriveTestcaseModule(filePath string) *string {
	m := testcaseModuleRe.FindStringSubmatch(filePath)
	if m == nil {
		return nil
	}
	return &m[1]
}
