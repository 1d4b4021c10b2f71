package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	// Generate many IDs
	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDString tests ID string conversion
func TestIDString(t *testing.T) {
	id := ID("test-123")
	if id.String() != "test-123" {
		t.Errorf("Expected String() to return 'test-123', got '%s'", id.String())
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	emptyID := ID("")
	if !emptyID.IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}

	nonEmptyID := ID("not-empty")
	if nonEmptyID.IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestParseStudyID tests study ID parsing
func TestParseStudyID(t *testing.T) {
	tests := []struct {
		input    string
		expected StudyID
		hasError bool
	}{
		{"study-1", StudyID("study-1"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseStudyID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestParseResultID tests result ID parsing
func TestParseResultID(t *testing.T) {
	if _, err := ParseResultID(""); err == nil {
		t.Error("Expected error for empty result ID")
	}
	id, err := ParseResultID("res-9")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id.String() != "res-9" {
		t.Errorf("Expected res-9, got %s", id)
	}
}

func TestNotFoundErrors(t *testing.T) {
	if !IsNotFoundError(ErrTemplateNotFound) {
		t.Error("template not found should be a not-found error")
	}
	if !IsNotFoundError(NewNotFoundError("result", "abc")) {
		t.Error("constructed not-found error should match")
	}
	if !IsValidationError(NewInvalidResultError("no components")) {
		t.Error("invalid result should be a validation error")
	}
}
