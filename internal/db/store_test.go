package db

import "testing"

func TestContentHashStableAndDistinct(t *testing.T) {
	a := contentHash("2024-01-15", "Acme Ltd", "Highways", "1234.56", "INV-1")
	b := contentHash("2024-01-15", "Acme Ltd", "Highways", "1234.56", "INV-1")
	if a != b {
		t.Fatalf("hash not stable: %s vs %s", a, b)
	}

	c := contentHash("2024-01-15", "Acme Ltd", "Highways", "1234.57", "INV-1")
	if a == c {
		t.Fatalf("distinct rows collided: %s", a)
	}
}

func TestContentHashFieldBoundaries(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not produce the same fingerprint.
	if contentHash("ab", "c") == contentHash("a", "bc") {
		t.Fatal("field boundary lost in hash input")
	}
}

func TestNullable(t *testing.T) {
	if v := nullable("  "); v != nil {
		t.Fatalf("blank string should map to nil, got %v", v)
	}
	if v := nullable("x"); v != "x" {
		t.Fatalf("non-blank string should pass through, got %v", v)
	}
}
