package persona

import "testing"

func TestLookup(t *testing.T) {
	p, err := Lookup("4")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if p.Name != "Sofia" || p.Gender != GenderFemale {
		t.Fatalf("unexpected persona: %+v", p)
	}

	if _, err := Lookup("nope"); err != ErrNotFound {
		t.Fatalf("Lookup(nope) error = %v, want ErrNotFound", err)
	}
}

func TestAllIsACopy(t *testing.T) {
	all := All()
	if len(all) != 6 {
		t.Fatalf("len(All()) = %d, want 6", len(all))
	}
	all[0].Name = "mutated"
	again := All()
	if again[0].Name == "mutated" {
		t.Fatalf("All() must not expose the backing catalog")
	}
}

func TestResolveVendorIDsByGender(t *testing.T) {
	male, _ := Lookup("1")
	female, _ := Lookup("4")

	ids := ResolveVendorIDs(male, "abc", "xyz", "r-m", "r-w")
	if ids.PersonaID != "abc" || ids.ReplicaID != "r-m" {
		t.Fatalf("male vendor ids = %+v", ids)
	}

	ids = ResolveVendorIDs(female, "abc", "xyz", "r-m", "r-w")
	if ids.PersonaID != "xyz" || ids.ReplicaID != "r-w" {
		t.Fatalf("female vendor ids = %+v", ids)
	}
}
