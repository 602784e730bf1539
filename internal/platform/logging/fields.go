// Package logging provides the structured field builder and zap/logr
// wiring shared across the ingestion pipeline, analytics engine and
// HTTP surface.
package logging

import "time"

// Fields is a map-based structured-field builder, chainable like the
// teacher's standard-fields helper so call sites read as a pipeline of
// attributes rather than a literal map.
type Fields map[string]any

// NewFields returns an empty Fields builder.
func NewFields() Fields {
	return Fields{}
}

// Component records the subsystem emitting the log line (e.g. "ingestion").
func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

// Operation records the operation in progress (e.g. "import_job").
func (f Fields) Operation(op string) Fields {
	f["operation"] = op
	return f
}

// Resource records the kind and, when non-empty, the name of the
// resource being acted on.
func (f Fields) Resource(kind, name string) Fields {
	f["resource_type"] = kind
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

// Release records the release name a log line pertains to.
func (f Fields) Release(name string) Fields {
	f["release"] = name
	return f
}

// Module records the module name a log line pertains to.
func (f Fields) Module(name string) Fields {
	f["module"] = name
	return f
}

// JobID records the CI job id a log line pertains to.
func (f Fields) JobID(id string) Fields {
	f["job_id"] = id
	return f
}

// Duration records an elapsed duration in milliseconds.
func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

// Err records an error's message.
func (f Fields) Err(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

// Count records an integer count under the given key.
func (f Fields) Count(key string, n int) Fields {
	f[key] = n
	return f
}

// KeysAndValues flattens Fields into the alternating key/value slice
// logr.Logger.Info/Error expect.
func (f Fields) KeysAndValues() []any {
	kv := make([]any, 0, len(f)*2)
	for k, v := range f {
		kv = append(kv, k, v)
	}
	return kv
}
