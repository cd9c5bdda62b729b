package authsecret

import "testing"

func TestGenerate_ProducesSixDigitCode(t *testing.T) {
	code, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected a 6-digit code, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("expected only digits, got %q", code)
		}
	}
}

func TestHashAndVerify_RoundTrips(t *testing.T) {
	code, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hash, err := Hash(code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == code {
		t.Fatalf("hash must not equal the plaintext code")
	}
	if err := Verify(hash, code); err != nil {
		t.Fatalf("expected code to verify against its own hash: %v", err)
	}
}

func TestVerify_RejectsWrongCode(t *testing.T) {
	hash, err := Hash("123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Verify(hash, "654321"); err == nil {
		t.Fatal("expected mismatched code to fail verification")
	}
}
