package lostfound

import (
	"testing"
)

func TestComposeAndParseItemLink(t *testing.T) {
	id := "0b6f3c59-8f44-4c39-9a3e-8a7a5a4f2c11"

	link := ComposeItemLink("http://localhost:3000/item/", id)
	if link != "http://localhost:3000/item/"+id {
		t.Fatalf("unexpected link %s", link)
	}

	parsed, err := ParseItemLink(link)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != id {
		t.Fatalf("expected %s got %s", id, parsed)
	}
}

func TestParseItemLinkRejectsNonItem(t *testing.T) {
	if _, err := ParseItemLink("http://localhost:3000/about"); err == nil {
		t.Fatalf("expected error for non-item link")
	}
}

func TestIsItemID(t *testing.T) {
	if IsItemID("not-a-uuid") {
		t.Fatalf("expected false")
	}
	if IsItemID("6ba7b810-9dad-11d1-80b4-00c04fd430c8") {
		t.Fatalf("version 1 uuid should be rejected")
	}
	if !IsItemID("0b6f3c59-8f44-4c39-9a3e-8a7a5a4f2c11") {
		t.Fatalf("expected true")
	}
}
