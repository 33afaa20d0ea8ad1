package sanitize

import (
	"strings"
	"testing"
)

var phoneRule = Rule{
	Pattern:     `(\+\d{2})\d+(\d{3})`,
	Replacement: "${1}xxx${2}",
}

var serialRule = Rule{
	Pattern:     `(\d{4})\d{8}(\d{4})`,
	Replacement: "${1}xxxxxxxx${2}",
}

func TestValueMasksPhoneNumber(t *testing.T) {
	t.Parallel()
	s, err := New([]Rule{phoneRule})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Value("+62821233447"); got != "+62xxx447" {
		t.Fatalf("expected +62xxx447, got %v", got)
	}
}

func TestValueMasksDeviceSerial(t *testing.T) {
	t.Parallel()
	s, err := New([]Rule{serialRule})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Value("3201234567890001"); got != "3201xxxxxxxx0001" {
		t.Fatalf("expected 3201xxxxxxxx0001, got %v", got)
	}
}

func TestValueNoMatchPassesThrough(t *testing.T) {
	t.Parallel()
	s, err := New([]Rule{phoneRule})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Value("hello world"); got != "hello world" {
		t.Fatalf("expected hello world, got %v", got)
	}
}

func TestRulesApplyInOrder(t *testing.T) {
	t.Parallel()
	// First rule masks the phone number, second rewrites the mask marker.
	s, err := New([]Rule{
		phoneRule,
		{Pattern: `xxx`, Replacement: "***"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Value("+62821233447"); got != "+62***447" {
		t.Fatalf("expected +62***447, got %v", got)
	}
}

func TestValueMasksByteSlices(t *testing.T) {
	t.Parallel()
	s, err := New([]Rule{phoneRule})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := s.Value([]byte("+62821233447")).([]byte)
	if !ok {
		t.Fatalf("expected []byte back, got %T", got)
	}
	if string(got) != "+62xxx447" {
		t.Fatalf("expected +62xxx447, got %s", got)
	}
}

func TestValueLeavesNonTextCellsAlone(t *testing.T) {
	t.Parallel()
	s, err := New([]Rule{phoneRule})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Value(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := s.Value(int64(12345)); got != int64(12345) {
		t.Fatalf("expected 12345, got %v", got)
	}
	if got := s.Value(float64(36.5)); got != float64(36.5) {
		t.Fatalf("expected 36.5, got %v", got)
	}
	if got := s.Value(true); got != true {
		t.Fatalf("expected true, got %v", got)
	}
}

func TestHasRules(t *testing.T) {
	t.Parallel()
	empty, err := New(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.HasRules() {
		t.Error("HasRules() = true for empty sanitizer")
	}
	if got := empty.Value("+62821233447"); got != "+62821233447" {
		t.Fatalf("expected unchanged value, got %v", got)
	}

	s, err := New([]Rule{phoneRule})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.HasRules() {
		t.Error("HasRules() = false with one rule")
	}
}

func TestNewErrorsOnInvalidRegex(t *testing.T) {
	t.Parallel()
	_, err := New([]Rule{
		{Pattern: `[invalid`, Replacement: "x"},
	})
	if err == nil {
		t.Fatal("expected error for invalid regex pattern")
	}
	if !strings.Contains(err.Error(), "invalid regex pattern") {
		t.Fatalf("expected error to contain 'invalid regex pattern', got: %s", err)
	}
	if !strings.Contains(err.Error(), "[invalid") {
		t.Fatalf("expected error to contain the invalid pattern, got: %s", err)
	}
}
