package enrollment

import (
	"strings"
	"testing"
)

func TestStudentNumber(t *testing.T) {
	tests := []struct {
		name string
		year int
		seq  int
		want string
	}{
		{name: "first of year", year: 2026, seq: 1, want: "20260001"},
		{name: "padded", year: 2026, seq: 42, want: "20260042"},
		{name: "last padded", year: 2024, seq: 9999, want: "20249999"},
		{name: "overflows padding", year: 2026, seq: 12345, want: "202612345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := studentNumber(tt.year, tt.seq); got != tt.want {
				t.Errorf("studentNumber() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateVerificationCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateVerificationCode(6)
		if err != nil {
			t.Fatalf("generateVerificationCode() error = %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("generateVerificationCode() len = %d, want 6", len(code))
		}
		for _, char := range code {
			if !strings.ContainsRune(codeAlphabet, char) {
				t.Fatalf("generateVerificationCode() = %q, char %q not in alphabet", code, char)
			}
		}
		if code != strings.ToUpper(code) {
			t.Fatalf("generateVerificationCode() = %q, want uppercase", code)
		}
	}
}

func TestGeneratePassword(t *testing.T) {
	pwd, err := generatePassword(10)
	if err != nil {
		t.Fatalf("generatePassword() error = %v", err)
	}
	if len(pwd) != 10 {
		t.Fatalf("generatePassword() len = %d, want 10", len(pwd))
	}
	for _, char := range pwd {
		if !strings.ContainsRune(passwordAlphabet, char) {
			t.Fatalf("generatePassword() = %q, char %q not in alphabet", pwd, char)
		}
	}
}
