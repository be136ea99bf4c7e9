package core

import (
	"reflect"
	"testing"
)

func TestMemoryRegistryLastRegisterWins(t *testing.T) {
	r := NewMemoryRegistry()
	first := NewClient("c1", "alice")
	second := NewClient("c2", "alice")

	r.Register("alice", first)
	r.Register("alice", second)

	got, ok := r.Lookup("alice")
	if !ok || got != second {
		t.Fatalf("expected second handle, got %+v (ok=%v)", got, ok)
	}
	if ids := r.Identities(); !reflect.DeepEqual(ids, []UserID{"alice"}) {
		t.Fatalf("unexpected identities: %v", ids)
	}
}

func TestMemoryRegistryUnregisterAbsentIsNoop(t *testing.T) {
	r := NewMemoryRegistry()
	r.Register("bob", NewClient("c1", "bob"))

	r.Unregister("ghost")
	r.Unregister("bob")
	r.Unregister("bob")

	if _, ok := r.Lookup("bob"); ok {
		t.Fatal("bob should be gone")
	}
	if ids := r.Identities(); len(ids) != 0 {
		t.Fatalf("expected empty registry, got %v", ids)
	}
}

func TestMemoryRegistryIdentitiesSorted(t *testing.T) {
	r := NewMemoryRegistry()
	for _, id := range []UserID{"carol", "alice", "bob"} {
		r.Register(id, NewClient(string(id), id))
	}

	want := []UserID{"alice", "bob", "carol"}
	if ids := r.Identities(); !reflect.DeepEqual(ids, want) {
		t.Fatalf("identities = %v, want %v", ids, want)
	}
	if n := len(r.Clients()); n != 3 {
		t.Fatalf("clients = %d, want 3", n)
	}
}
