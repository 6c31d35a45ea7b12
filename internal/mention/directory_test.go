package mention

import (
	"context"
	"testing"
)

func testDirectory() *Directory {
	return NewDirectory([]DirectoryEntry{
		{ID: "u-ann", DisplayName: "Ann Chen", Email: "ann@example.com"},
		{ID: "u-bob", DisplayName: "Bob Lee"},
		{ID: "u-rob", DisplayName: "Roberta Diaz"},
		{ID: "u-mar", DisplayName: "Omar Haddad"},
	})
}

func TestDirectoryExactMatchWinsOverPrefix(t *testing.T) {
	d := NewDirectory([]DirectoryEntry{
		{ID: "u-long", DisplayName: "Bob Lee Jr"},
		{ID: "u-exact", DisplayName: "bob lee"},
	})
	id, err := d.Resolve(context.Background(), "Bob Lee")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "u-exact" {
		t.Fatalf("expected exact match u-exact, got %q", id)
	}
}

func TestDirectoryFirstWordMatch(t *testing.T) {
	// Multi-word mention whose surname is wrong still matches by first word.
	id, err := testDirectory().Resolve(context.Background(), "Bob Smith")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "u-bob" {
		t.Fatalf("expected u-bob, got %q", id)
	}
}

func TestDirectoryFirstWordRequiresMultiWordMention(t *testing.T) {
	// A single-word mention skips the first-word strategy and falls through
	// to prefix matching.
	id, err := testDirectory().Resolve(context.Background(), "Rob")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "u-rob" {
		t.Fatalf("expected prefix match u-rob, got %q", id)
	}
}

func TestDirectorySubstringMatch(t *testing.T) {
	id, err := testDirectory().Resolve(context.Background(), "mar")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "u-mar" {
		t.Fatalf("expected substring match u-mar, got %q", id)
	}
}

func TestDirectoryNoMatch(t *testing.T) {
	id, err := testDirectory().Resolve(context.Background(), "Zelda")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "" {
		t.Fatalf("expected no match, got %q", id)
	}
}

func TestDirectoryBlankUsername(t *testing.T) {
	id, err := testDirectory().Resolve(context.Background(), "   ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "" {
		t.Fatalf("expected no match for blank username, got %q", id)
	}
}

func TestDirectoryResolveIntegratesWithExtract(t *testing.T) {
	d := testDirectory()
	text := "cc @Ann Chen and @ann again, plus @nobody"
	resolved := Resolve(context.Background(), Extract(text), d.Resolve)
	ids := UserIDs(resolved)
	if len(ids) != 1 || ids[0] != "u-ann" {
		t.Fatalf("expected deduplicated [u-ann], got %v", ids)
	}
}
