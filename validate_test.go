package teamauth

import (
	"strings"
	"testing"
)

func TestPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Passw0rd", true},
		{"too short", "Pa0rd", false},
		{"no digit", "Password", false},
		{"no upper", "passw0rd", false},
		{"no lower", "PASSW0RD", false},
		{"72 bytes", "Aa1" + strings.Repeat("x", 69), true},
		{"73 bytes", "Aa1" + strings.Repeat("x", 70), false},
		// 27 runes, but 75 bytes: the limit is on bytes.
		{"multibyte over limit", "Aa1" + strings.Repeat("€", 24), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkInput(newPasswordInput{NewPassword: tt.password})
			if tt.ok && err != nil {
				t.Fatalf("expected %q to pass, got %v", tt.password, err)
			}
			if !tt.ok {
				authErr, ok := AsError(err)
				if !ok || authErr.Code() != CodeValidation {
					t.Fatalf("expected VALIDATION_ERROR for %q, got %v", tt.password, err)
				}
			}
		})
	}
}

func TestCheckInputMessages(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"missing email", emailInput{}, "Email is required"},
		{"bad email", emailInput{Email: "not-an-email"}, "Invalid email address"},
		{"long email", emailInput{Email: strings.Repeat("a", 250) + "@x.com"}, "Invalid email address"},
		{"missing team", RegisterRequest{Email: "a@x.com", Password: "Passw0rd", Name: "Ann"}, "Team name is required"},
		{"long name", RegisterRequest{Email: "a@x.com", Password: "Passw0rd", Name: strings.Repeat("n", 101), TeamName: "Acme"}, "Name must be at most 100 characters"},
		{"weak password", AcceptInviteRequest{Token: "t", Password: "password", Name: "Ann"}, "Password must be 8 to 72 bytes"},
		{"weak new password", newPasswordInput{NewPassword: "short"}, "New password must be 8 to 72 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authErr, ok := AsError(checkInput(tt.in))
			if !ok || authErr.Code() != CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", authErr)
			}
			if !strings.HasPrefix(authErr.Message(), tt.want) {
				t.Fatalf("expected message %q, got %q", tt.want, authErr.Message())
			}
		})
	}
}

func TestCheckInputNameCountsRunes(t *testing.T) {
	req := RegisterRequest{Email: "a@x.com", Password: "Passw0rd", Name: strings.Repeat("é", 100), TeamName: "Acme"}
	if err := checkInput(req); err != nil {
		t.Fatalf("100-rune name must pass, got %v", err)
	}
}

func TestCheckInputOptionalProfileFields(t *testing.T) {
	if err := checkInput(UpdateProfileRequest{UserID: "u"}); err != nil {
		t.Fatalf("empty optional fields must pass tag validation, got %v", err)
	}
	if _, ok := AsError(checkInput(UpdateProfileRequest{Email: "nope"})); !ok {
		t.Fatal("expected a set email to be validated")
	}
}

func TestCheckInputRejectsNonStruct(t *testing.T) {
	err := checkInput(42)
	if err == nil {
		t.Fatal("expected an error for a non-struct input")
	}
	if _, ok := AsError(err); ok {
		t.Fatalf("a programming error must not look like a caller error: %v", err)
	}
}
