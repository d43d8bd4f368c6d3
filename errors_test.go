package paraalgo

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStructuredErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantOp   string
		wantMsg  string
		checkFn  func(error) bool
	}{
		{
			name:     "Memory Error",
			err:      ErrOutOfMemory,
			wantType: ErrTypeMemory,
			wantOp:   "Malloc",
			wantMsg:  "out of memory",
			checkFn:  IsMemoryError,
		},
		{
			name:     "Invalid Arg Error",
			err:      ErrInvalidSize,
			wantType: ErrTypeInvalidArg,
			wantOp:   "Malloc",
			wantMsg:  "size must not be negative",
			checkFn:  IsInvalidArgError,
		},
		{
			name:     "Double Free Error",
			err:      ErrDoubleFree,
			wantType: ErrTypeMemory,
			wantOp:   "Free",
			wantMsg:  "double free detected",
			checkFn:  IsMemoryError,
		},
		{
			name:     "Execution Error",
			err:      NewExecutionError("Kernel", "kernel panicked: boom", nil),
			wantType: ErrTypeExecution,
			wantOp:   "Kernel",
			wantMsg:  "kernel panicked: boom",
			checkFn:  IsExecutionError,
		},
		{
			name:     "Device Error",
			err:      NewDeviceError("Adapter", "no adapter found", nil),
			wantType: ErrTypeDevice,
			wantOp:   "Adapter",
			wantMsg:  "no adapter found",
			checkFn:  IsDeviceError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := tt.err.(*Error)
			if !ok {
				t.Fatalf("Expected *Error, got %T", tt.err)
			}
			if e.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", e.Type, tt.wantType)
			}
			if e.Op != tt.wantOp {
				t.Errorf("Op = %v, want %v", e.Op, tt.wantOp)
			}
			if e.Message != tt.wantMsg {
				t.Errorf("Message = %v, want %v", e.Message, tt.wantMsg)
			}
			if !tt.checkFn(tt.err) {
				t.Errorf("Type check function returned false")
			}

			// Predicates see through wrapping
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !tt.checkFn(wrapped) {
				t.Errorf("Type check function returned false for wrapped error")
			}

			if !strings.Contains(tt.err.Error(), tt.wantOp) {
				t.Errorf("Error() = %q does not name the operation", tt.err.Error())
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	baseErr := errors.New("base error")
	wrappedErr := NewMemoryError("Test", "wrapped error", baseErr)

	e, ok := wrappedErr.(*Error)
	if !ok {
		t.Fatal("Expected *Error")
	}
	if e.Unwrap() != baseErr {
		t.Errorf("Unwrap() = %v, want %v", e.Unwrap(), baseErr)
	}
	if !errors.Is(wrappedErr, baseErr) {
		t.Error("errors.Is() should return true for wrapped error")
	}
	if !strings.Contains(wrappedErr.Error(), "caused by: base error") {
		t.Errorf("Error() = %q", wrappedErr.Error())
	}
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{ErrTypeMemory, "Memory"},
		{ErrTypeInvalidArg, "InvalidArgument"},
		{ErrTypeExecution, "Execution"},
		{ErrTypeDevice, "Device"},
		{ErrorType(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.errType.String(); got != tt.want {
			t.Errorf("ErrorType(%d).String() = %v, want %v", tt.errType, got, tt.want)
		}
	}
}

func TestPredicatesRejectForeignErrors(t *testing.T) {
	err := errors.New("plain")
	if IsMemoryError(err) || IsInvalidArgError(err) || IsExecutionError(err) || IsDeviceError(err) || IsMemoryError(nil) {
		t.Error("predicates matched an error that is not *Error")
	}
}
