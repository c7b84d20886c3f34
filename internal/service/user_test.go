package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/mlecomte/homeworkai/internal/domain"
)

// =============================================================================
// Password Validation Tests
// =============================================================================

func TestValidatePassword_Length(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		valid    bool
	}{
		{"too short - 7 chars", "abcdef1", false},
		{"minimum - 8 chars", "abcdef12", true},
		{"longer - 12 chars", "abcdefgh1234", true},
		{"at bcrypt limit - 72 chars", strings.Repeat("a", 72), true},
		{"over bcrypt limit - 73 chars", strings.Repeat("a", 73), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePassword(tc.password)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("expected error")
			}
		})
	}
}

// =============================================================================
// Email Validation Tests
// =============================================================================

func TestValidateEmail(t *testing.T) {
	testCases := []struct {
		name  string
		email string
		valid bool
	}{
		{"valid", "student@example.com", true},
		{"valid subdomain", "a@mail.example.co.uk", true},
		{"empty", "", false},
		{"no at", "studentexample.com", false},
		{"two ats", "a@@example.com", false},
		{"starts with at", "@example.com", false},
		{"ends with at", "student@", false},
		{"no dot in domain", "student@localhost", false},
		{"consecutive dots", "stu..dent@example.com", false},
		{"too long", strings.Repeat("a", 250) + "@x.com", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateEmail(tc.email)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidateInput_FieldAttribution(t *testing.T) {
	var ve *domain.ValidationError

	if err := validateEmail("not-an-email"); !errors.As(err, &ve) {
		t.Fatalf("expected a field-level validation error, got %T", err)
	} else if _, ok := ve.Fields["email"]; !ok {
		t.Errorf("expected the email field to be named, got %v", ve.Fields)
	}

	if err := validatePassword("short"); !errors.As(err, &ve) {
		t.Fatalf("expected a field-level validation error, got %T", err)
	} else if _, ok := ve.Fields["password"]; !ok {
		t.Errorf("expected the password field to be named, got %v", ve.Fields)
	}
}

// =============================================================================
// Session Token Tests
// =============================================================================

func TestGenerateSessionToken(t *testing.T) {
	token1, err := generateSessionToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token2, err := generateSessionToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(token1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token1))
	}
	if token1 == token2 {
		t.Error("two tokens should never collide")
	}
}

func TestHashSessionToken(t *testing.T) {
	token := "deadbeef"
	hash1 := hashSessionToken(token)
	hash2 := hashSessionToken(token)

	if hash1 != hash2 {
		t.Error("hashing must be deterministic")
	}
	if hash1 == token {
		t.Error("hash must differ from the raw token")
	}
	if len(hash1) != 64 {
		t.Errorf("expected 64 hex chars for SHA-256, got %d", len(hash1))
	}
}
