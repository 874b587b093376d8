package reactivedomain

import (
	"errors"
	"testing"
)

func TestStreamNameBuilder_ForAggregate(t *testing.T) {
	b, err := NewStreamNameBuilder()
	if err != nil {
		t.Fatalf("NewStreamNameBuilder: %v", err)
	}

	cases := []struct {
		typeName string
		id       string
		want     string
	}{
		{"Account", "acct-1", "account-acct-1"},
		{"OrderItem", "42", "orderItem-42"},
		{"account", "x", "account-x"},
	}
	for _, tc := range cases {
		if got := b.ForAggregate(tc.typeName, tc.id); got != tc.want {
			t.Errorf("ForAggregate(%q, %q) = %q, want %q", tc.typeName, tc.id, got, tc.want)
		}
	}
}

func TestStreamNameBuilder_UUIDCanonicalized(t *testing.T) {
	b, _ := NewStreamNameBuilder()

	got := b.ForAggregate("Account", "6F2504E0-4F89-11D3-9A0C-0305E82C3301")
	want := "account-6f2504e04f8911d39a0c0305e82c3301"
	if got != want {
		t.Fatalf("ForAggregate = %q, want %q", got, want)
	}

	// the same uuid in any textual form lands on the same stream
	alt := b.ForAggregate("Account", "6f2504e0-4f89-11d3-9a0c-0305e82c3301")
	if alt != got {
		t.Fatalf("uuid forms diverge: %q vs %q", alt, got)
	}
}

func TestStreamNameBuilder_Prefix(t *testing.T) {
	b, err := NewStreamNameBuilder(WithStreamPrefix(" Billing "))
	if err != nil {
		t.Fatalf("NewStreamNameBuilder: %v", err)
	}

	if got := b.ForAggregate("Account", "a1"); got != "billing.account-a1" {
		t.Fatalf("ForAggregate = %q", got)
	}
	if got := b.ForCategory("Account"); got != "$ce-billing.account" {
		t.Fatalf("ForCategory = %q", got)
	}
}

func TestStreamNameBuilder_EmptyPrefixRejected(t *testing.T) {
	_, err := NewStreamNameBuilder(WithStreamPrefix("   "))
	if !errors.Is(err, ErrEmptyStreamPrefix) {
		t.Fatalf("expected ErrEmptyStreamPrefix, got %v", err)
	}
}

func TestStreamNameBuilder_ProjectionStreams(t *testing.T) {
	b, _ := NewStreamNameBuilder()

	if got := b.ForCategory("Account"); got != "$ce-account" {
		t.Fatalf("ForCategory = %q", got)
	}
	if got := b.ForEventType("AmountDeposited"); got != "$et-AmountDeposited" {
		t.Fatalf("ForEventType = %q", got)
	}
}
