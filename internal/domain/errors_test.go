package domain

import (
	"errors"
	"testing"
)

func TestStageErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	se := NewStageError(ErrorKindOracleParse, "parse failed", cause)

	if !errors.Is(se, cause) {
		t.Fatalf("errors.Is(se, cause) = false, want true")
	}
	if se.Error() != "parse failed: boom" {
		t.Fatalf("se.Error() = %q", se.Error())
	}
}

func TestStageErrorWithoutCause(t *testing.T) {
	se := NewStageError(ErrorKindInvalidInput, "bad input", nil)
	if se.Error() != "bad input" {
		t.Fatalf("se.Error() = %q", se.Error())
	}
	if se.Unwrap() != nil {
		t.Fatalf("se.Unwrap() = %v, want nil", se.Unwrap())
	}
}

func TestErrorKindConstantsAreDistinct(t *testing.T) {
	kinds := []ErrorKind{
		ErrorKindInvalidInput,
		ErrorKindInvalidSubtitles,
		ErrorKindNoCandidates,
		ErrorKindOracleParse,
		ErrorKindOracleUnreachable,
		ErrorKindUploadFailed,
		ErrorKindGenerationTimeout,
		ErrorKindGenerationUnreachable,
		ErrorKindIncompatibleStreams,
		ErrorKindCancelled,
		ErrorKindInternal,
	}
	seen := make(map[ErrorKind]bool, len(kinds))
	for _, k := range kinds {
		if seen[k] {
			t.Fatalf("duplicate ErrorKind value %q", k)
		}
		seen[k] = true
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrUnsupported, ErrForbidden, ErrAlreadyExists}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Fatalf("sentinel %v unexpectedly matches %v", a, b)
			}
		}
	}
}
