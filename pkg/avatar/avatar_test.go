package avatar

import "testing"

func TestCatalogIsComplete(t *testing.T) {
	avatars := All()
	if len(avatars) == 0 {
		t.Fatal("catalog is empty")
	}
	seen := make(map[string]bool)
	for _, a := range avatars {
		if a.Name == "" || a.Accent == "" || a.VoiceName == "" {
			t.Fatalf("avatar %+v missing required fields", a)
		}
		if a.SystemInstruction == "" || a.Description == "" || a.ImageURL == "" {
			t.Fatalf("avatar %q missing presentation fields", a.Name)
		}
		if seen[a.Name] {
			t.Fatalf("duplicate avatar name %q", a.Name)
		}
		seen[a.Name] = true
	}
}

func TestByName(t *testing.T) {
	if _, ok := ByName("Maya"); !ok {
		t.Fatal("Maya not found")
	}
	if a, ok := ByName("  oliver "); !ok || a.Name != "Oliver" {
		t.Fatalf("case-insensitive lookup failed: %+v ok=%v", a, ok)
	}
	if _, ok := ByName("nobody"); ok {
		t.Fatal("unknown name must not resolve")
	}
}

func TestAllReturnsCopy(t *testing.T) {
	first := All()
	first[0].Name = "mutated"
	if All()[0].Name == "mutated" {
		t.Fatal("catalog must be immutable through All")
	}
}

func TestDefaultIsInCatalog(t *testing.T) {
	d := Default()
	if _, ok := ByName(d.Name); !ok {
		t.Fatalf("default avatar %q not in catalog", d.Name)
	}
}
