package logging

import (
	"errors"
	"testing"
	"time"
)

func TestNewFields(t *testing.T) {
	fields := NewFields()
	if fields == nil {
		t.Fatal("NewFields() returned nil")
	}
	if len(fields) != 0 {
		t.Errorf("NewFields() should be empty, got %d fields", len(fields))
	}
}

func TestFields_Component(t *testing.T) {
	fields := NewFields().Component("ingestion")
	if fields["component"] != "ingestion" {
		t.Errorf("Component() = %v, want %v", fields["component"], "ingestion")
	}
}

func TestFields_Operation(t *testing.T) {
	fields := NewFields().Operation("import_job")
	if fields["operation"] != "import_job" {
		t.Errorf("Operation() = %v, want %v", fields["operation"], "import_job")
	}
}

func TestFields_Resource(t *testing.T) {
	fields := NewFields().Resource("job", "144")
	if fields["resource_type"] != "job" {
		t.Errorf("Resource() resource_type = %v, want %v", fields["resource_type"], "job")
	}
	if fields["resource_name"] != "144" {
		t.Errorf("Resource() resource_name = %v, want %v", fields["resource_name"], "144")
	}
}

func TestFields_ResourceWithoutName(t *testing.T) {
	fields := NewFields().Resource("job", "")
	if _, exists := fields["resource_name"]; exists {
		t.Error("Resource() should not set resource_name when empty")
	}
}

func TestFields_ReleaseModuleJobID(t *testing.T) {
	fields := NewFields().Release("6.4").Module("business_policy").JobID("144")
	if fields["release"] != "6.4" || fields["module"] != "business_policy" || fields["job_id"] != "144" {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestFields_Duration(t *testing.T) {
	d := 150 * time.Millisecond
	fields := NewFields().Duration(d)
	if fields["duration_ms"] != d.Milliseconds() {
		t.Errorf("Duration() = %v, want %v", fields["duration_ms"], d.Milliseconds())
	}
}

func TestFields_Err(t *testing.T) {
	fields := NewFields().Err(errors.New("boom"))
	if fields["error"] != "boom" {
		t.Errorf("Err() = %v, want %v", fields["error"], "boom")
	}
}

func TestFields_ErrNil(t *testing.T) {
	fields := NewFields().Err(nil)
	if _, exists := fields["error"]; exists {
		t.Error("Err(nil) should not set error field")
	}
}

func TestFields_KeysAndValues(t *testing.T) {
	fields := NewFields().Component("sse").Count("sent", 3)
	kv := fields.KeysAndValues()
	if len(kv) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(kv))
	}
}
