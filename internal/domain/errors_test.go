package domain

import (
	"errors"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Invalid input",
			code:      ErrCodeInvalidInput,
			message:   "allergies must be a string or a list of strings",
			details:   "got object",
			requestID: "req-123",
		},
		{
			name:      "Storage error",
			code:      ErrCodeStorage,
			message:   "Review log unavailable",
			details:   "sqlite: database is locked",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}

			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}

			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "Unknown severity",
			field:   "severity",
			message: "must be one of Minor, Moderate, Major",
			value:   "Severe",
		},
		{
			name:    "Empty item",
			field:   "item_a",
			message: "value cannot be empty",
			value:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestInvalidArgumentf(t *testing.T) {
	err := InvalidArgumentf("allergies has unsupported type %T", map[string]string{})

	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Expected error to wrap ErrInvalidArgument, got %v", err)
	}
	expected := "invalid argument: allergies has unsupported type map[string]string"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestErrorConstants(t *testing.T) {
	constants := map[string]string{
		"ErrCodeInvalidInput":   ErrCodeInvalidInput,
		"ErrCodeValidation":     ErrCodeValidation,
		"ErrCodeNotFound":       ErrCodeNotFound,
		"ErrCodeStorage":        ErrCodeStorage,
		"ErrCodeRateLimit":      ErrCodeRateLimit,
		"ErrCodeInternalServer": ErrCodeInternalServer,
		"ErrCodeNotConfigured":  ErrCodeNotConfigured,
	}

	expectedValues := map[string]string{
		"ErrCodeInvalidInput":   "INVALID_INPUT",
		"ErrCodeValidation":     "VALIDATION_ERROR",
		"ErrCodeNotFound":       "NOT_FOUND",
		"ErrCodeStorage":        "STORAGE_ERROR",
		"ErrCodeRateLimit":      "RATE_LIMIT_EXCEEDED",
		"ErrCodeInternalServer": "INTERNAL_SERVER_ERROR",
		"ErrCodeNotConfigured":  "NOT_CONFIGURED",
	}

	for name, actual := range constants {
		expected := expectedValues[name]
		if actual != expected {
			t.Errorf("Expected %s to be %s, got %s", name, expected, actual)
		}
	}
}
