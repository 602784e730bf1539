package parser

import "sort"

// MergeMainAndRerun merges a main run's results M with a rerun's
// results R per spec §4.1: for each rerun result, mark was_rerun,
// compute rerun_still_failed, inherit the main run's order_index when
// the test existed there, then overwrite M's entry.
//
// The returned slice is ordered by OrderIndex, then by Key, for
// deterministic output; spec.md describes the result as "the values
// of M", which for a map has no defined order, so this function picks
// the only order consistent with OrderIndex being meaningful at all.
func MergeMainAndRerun(main, rerun []TestResult) []TestResult {
	merged := make(map[string]TestResult, len(main))
	for i, r := range main {
		r.OrderIndex = i
		merged[r.Key()] = r
	}

	for _, r := range rerun {
		r.WasRerun = true
		r.RerunStillFailed = r.Status == StatusFailed || r.Status == StatusError
		if existing, ok := merged[r.Key()]; ok {
			r.OrderIndex = existing.OrderIndex
		} else {
			r.OrderIndex = len(merged)
		}
		merged[r.Key()] = r
	}

	out := make([]TestResult, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}
