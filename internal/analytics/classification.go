package analytics

import "github.com/jordigilh/regtrack/internal/store"

// Classify derives every boolean/status fact spec §4.7.2 defines for
// a single TestTrend, over its own statuses ordered ascending by
// numeric job_id.
func Classify(t *TestTrend) Classification {
	statuses := make([]store.TestStatus, len(t.jobIDsAsc))
	for i, id := range t.jobIDsAsc {
		statuses[i] = t.ResultsByJob[id]
	}

	var c Classification
	if len(statuses) > 0 {
		c.LatestStatus = statuses[len(statuses)-1]
	}
	c.IsAlwaysPassing = isAlwaysPassing(statuses)
	c.IsAlwaysFailing = isAlwaysFailing(statuses)
	c.IsRegression = isRegression(statuses)
	c.IsFlaky = isFlaky(statuses, c.IsRegression)
	c.IsNewFailure = isNewFailure(statuses)
	return c
}

func isAlwaysPassing(s []store.TestStatus) bool {
	if len(s) == 0 {
		return false
	}
	for _, v := range s {
		if v != store.StatusPassed {
			return false
		}
	}
	return true
}

func isAlwaysFailing(s []store.TestStatus) bool {
	if len(s) == 0 {
		return false
	}
	for _, v := range s {
		if v != store.StatusFailed {
			return false
		}
	}
	return true
}

// isRegression implements the three-part law in spec §4.7.2: at least
// one PASSED exists, the tail holds 2+ consecutive FAILED, and no
// PASSED appears anywhere after the first FAILED.
func isRegression(s []store.TestStatus) bool {
	hasPassed := false
	firstFailedIdx := -1
	for i, v := range s {
		switch v {
		case store.StatusPassed:
			hasPassed = true
			if firstFailedIdx >= 0 {
				return false
			}
		case store.StatusFailed:
			if firstFailedIdx < 0 {
				firstFailedIdx = i
			}
		}
	}
	if !hasPassed || firstFailedIdx < 0 {
		return false
	}

	tailFailed := 0
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != store.StatusFailed {
			break
		}
		tailFailed++
	}
	return tailFailed >= 2
}

// isFlaky: contains both PASSED and FAILED, failures are not confined
// to the latest job alone, and it is not already a regression.
func isFlaky(s []store.TestStatus, regression bool) bool {
	if regression || len(s) == 0 {
		return false
	}

	hasPassed, hasFailed := false, false
	failedOutsideLatest := false
	last := len(s) - 1
	for i, v := range s {
		switch v {
		case store.StatusPassed:
			hasPassed = true
		case store.StatusFailed:
			hasFailed = true
			if i != last {
				failedOutsideLatest = true
			}
		}
	}
	return hasPassed && hasFailed && failedOutsideLatest
}

// isNewFailure: strict immediate-previous rule — the second-to-last
// job PASSED and the last job FAILED.
func isNewFailure(s []store.TestStatus) bool {
	if len(s) < 2 {
		return false
	}
	prev, cur := s[len(s)-2], s[len(s)-1]
	return prev == store.StatusPassed && cur == store.StatusFailed
}
