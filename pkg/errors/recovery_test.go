package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestRecover_WithPanic tests the Recover function when a panic occurs
func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		panic("test panic message")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}

	if panicErr.Operation != "TestOperation" {
		t.Errorf("Expected operation 'TestOperation', got '%s'", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}

	expectedMsg := "panic in TestOperation: test panic message"
	if panicErr.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, panicErr.Error())
	}
}

// TestRecover_WithoutPanic tests the Recover function when no panic occurs
func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		return nil
	}

	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

// TestRecover_WithExistingError tests Recover when function has existing error and panic occurs
func TestRecover_WithExistingError(t *testing.T) {
	originalErr := fmt.Errorf("original error")

	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		err = originalErr
		panic("panic after error")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic with existing error, got nil")
	}
	if !strings.Contains(err.Error(), "panic in TestOperation") {
		t.Errorf("Error message should contain panic info: %s", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("Should be able to identify original error with errors.Is")
	}
}

func TestSafeExecute(t *testing.T) {
	originalErr := fmt.Errorf("function error")

	if err := SafeExecute("ok", func() error { return nil }); err != nil {
		t.Fatalf("Expected no error for successful operation, got: %v", err)
	}
	if err := SafeExecute("fails", func() error { return originalErr }); err != originalErr {
		t.Fatalf("Expected original error, got: %v", err)
	}

	err := SafeExecute("panics", func() error {
		var m map[string]int
		m["boom"]++
		return nil
	})
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
}

func TestSafeCandidate(t *testing.T) {
	tests := []struct {
		name    string
		fn      func() error
		wantErr bool
	}{
		{"success", func() error { return nil }, false},
		{"error", func() error { return ErrSingularMatrix }, true},
		{"panic", func() error { panic("index out of range") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeCandidate(7, "search.evaluate", tt.fn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SafeCandidate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var candErr *CandidateError
			if !As(err, &candErr) {
				t.Fatalf("expected *CandidateError, got %T", err)
			}
			if candErr.Index != 7 {
				t.Errorf("Index = %d, want 7", candErr.Index)
			}
		})
	}
}

func TestPanicError_UnwrapsErrorValue(t *testing.T) {
	panicErr := NewPanicError("TestOp", ErrSingularMatrix)
	if !errors.Is(panicErr, ErrSingularMatrix) {
		t.Error("PanicError should unwrap an error panic value")
	}
	if NewPanicError("TestOp", "text").Unwrap() != nil {
		t.Error("PanicError.Unwrap() should return nil for non-error values")
	}
	if !strings.Contains(panicErr.String(), "Stack trace:") {
		t.Error("String() should include stack trace information")
	}
}

// BenchmarkSafeExecute_NoPanic benchmarks SafeExecute with no panic
func BenchmarkSafeExecute_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = SafeExecute("BenchmarkOp", func() error {
			return nil
		})
	}
}
