package domain

import (
	"reflect"
	"testing"
)

func TestJobStatusConstants(t *testing.T) {
	if JobStatusQueued != "queued" {
		t.Fatalf("JobStatusQueued = %q", JobStatusQueued)
	}
	if JobStatusProcessing != "processing" {
		t.Fatalf("JobStatusProcessing = %q", JobStatusProcessing)
	}
	if JobStatusCompleted != "completed" {
		t.Fatalf("JobStatusCompleted = %q", JobStatusCompleted)
	}
	if JobStatusFailed != "failed" {
		t.Fatalf("JobStatusFailed = %q", JobStatusFailed)
	}
}

func TestProgressMilestonesAreMonotonic(t *testing.T) {
	stages := []int{ProgressQueued, ProgressPostHLS, ProgressPostPlacement, ProgressPostSplice, ProgressCompleted}
	for i := 1; i < len(stages); i++ {
		if stages[i] <= stages[i-1] {
			t.Fatalf("progress milestone %d (%d) is not greater than milestone %d (%d)", i, stages[i], i-1, stages[i-1])
		}
	}
	if ProgressCompleted != 100 {
		t.Fatalf("ProgressCompleted = %d, want 100", ProgressCompleted)
	}
}

func TestJobJSONTags(t *testing.T) {
	expectJSONTag(t, Job{}, "ID", "id")
	expectJSONTag(t, Job{}, "OwnerID", "ownerId")
	expectJSONTag(t, Job{}, "Status", "status")
	expectJSONTag(t, Job{}, "Placement", "placement,omitempty")
	expectJSONTag(t, Job{}, "EditedRange", "editedRange,omitempty")
	expectJSONTag(t, Job{}, "Error", "error,omitempty")
}

func TestJobPathsJSONTags(t *testing.T) {
	expectJSONTag(t, JobPaths{}, "Original", "original")
	expectJSONTag(t, JobPaths{}, "EditedClip", "editedClip")
	expectJSONTag(t, JobPaths{}, "HLSEdited", "hlsEdited")
	expectJSONTag(t, JobPaths{}, "Merged", "merged")
}

func TestJobHasEdits(t *testing.T) {
	var j Job
	if j.HasEdits() {
		t.Fatalf("zero-value job reports HasEdits")
	}
	j.EditedRange = &EditedRange{StartSegment: 2, EndSegment: 4, NewEndSegment: 5}
	if !j.HasEdits() {
		t.Fatalf("job with EditedRange set reports no edits")
	}
}

func expectJSONTag(t *testing.T, v interface{}, fieldName, want string) {
	t.Helper()
	typ := reflect.TypeOf(v)
	field, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("missing field %s", fieldName)
	}
	if got := field.Tag.Get("json"); got != want {
		t.Fatalf("%s json tag = %q, want %q", fieldName, got, want)
	}
}
