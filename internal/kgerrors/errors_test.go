package kgerrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	plain := NotFound("concept", 7)
	if plain.Error() != "[NOT_FOUND] concept 7 not found" {
		t.Errorf("Error() = %q", plain.Error())
	}

	cause := errors.New("disk full")
	wrapped := DBError("opening database", cause)
	if !strings.Contains(wrapped.Error(), "DB_ERROR") {
		t.Errorf("Error() = %q, want DB_ERROR code", wrapped.Error())
	}
	if !strings.Contains(wrapped.Error(), "disk full") {
		t.Errorf("Error() = %q, want cause included", wrapped.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := QueryError("query failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() does not reach the cause")
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap() != cause")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"required", Required("name"), CodeRequired},
		{"invalid", Invalid("bad"), CodeInvalid},
		{"not found", NotFound("edge", 1), CodeNotFound},
		{"duplicate", Duplicate("taken"), CodeDuplicate},
		{"query", QueryError("boom", nil), CodeQueryError},
		{"db", DBError("boom", nil), CodeDBError},
		{"wrapped", fmt.Errorf("outer: %w", Invalid("inner")), CodeInvalid},
		{"foreign", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	if !IsNotFound(NotFound("x", 1)) {
		t.Error("IsNotFound() = false")
	}
	if IsNotFound(Invalid("x")) {
		t.Error("IsNotFound(Invalid) = true")
	}
	if !IsRequired(Required("x")) {
		t.Error("IsRequired() = false")
	}
	if !IsInvalid(Invalid("x")) {
		t.Error("IsInvalid() = false")
	}
	if !IsDuplicate(Duplicate("x")) {
		t.Error("IsDuplicate() = false")
	}
	if !IsQueryError(QueryError("x", nil)) {
		t.Error("IsQueryError() = false")
	}
	if !IsDBError(DBError("x", nil)) {
		t.Error("IsDBError() = false")
	}
}

func TestWithDetails(t *testing.T) {
	err := Invalid("bad input").WithDetails(map[string]string{"field": "depth"})
	details, ok := err.Details.(map[string]string)
	if !ok || details["field"] != "depth" {
		t.Errorf("Details = %v", err.Details)
	}
}

func TestRequiredMessage(t *testing.T) {
	err := Required("file url")
	if err.Message != "file url is required" {
		t.Errorf("Message = %q", err.Message)
	}
}
