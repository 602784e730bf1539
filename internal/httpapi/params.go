package httpapi

import (
	"regexp"
	"strings"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
	"github.com/jordigilh/regtrack/internal/store"
)

// namePattern matches a release or module path segment: alphanumerics,
// dots, dashes and underscores. Anything else is rejected with a 422
// (spec §4.10 "non-matching release/module patterns... 422").
var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func validateName(kind, value string) error {
	if value == "" || !namePattern.MatchString(value) {
		err := apperrors.Newf(apperrors.ErrorTypeValidation, "invalid %s %q", kind, value)
		err.StatusCode = 422
		return err
	}
	return nil
}

var validStatuses = map[string]struct{}{
	string(store.StatusPassed):  {},
	string(store.StatusFailed):  {},
	string(store.StatusSkipped): {},
}

var validPriorities = map[string]struct{}{
	string(store.PriorityP0):      {},
	string(store.PriorityP1):      {},
	string(store.PriorityP2):      {},
	string(store.PriorityP3):      {},
	string(store.PriorityUnknown): {},
}

// parseCSVFilter splits a comma-separated query value against allowed,
// returning a 400 Validation error on the first unknown token (spec
// §4.10 "invalid status/priority strings return 400").
func parseCSVFilter(kind, raw string, allowed map[string]struct{}) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, ok := allowed[p]; !ok {
			return nil, apperrors.Newf(apperrors.ErrorTypeValidation, "invalid %s %q", kind, p)
		}
		out = append(out, p)
	}
	return out, nil
}
