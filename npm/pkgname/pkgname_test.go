package pkgname

import "testing"

func TestValidateAcceptsCommonForms(t *testing.T) {
	for _, name := range []string{"react", "left-pad", "@scope/name", "lodash.merge"} {
		if err := Validate(name); err != nil {
			t.Fatalf("expected %q to be valid, got %v", name, err)
		}
	}
}

func TestValidateRejectsHash(t *testing.T) {
	err := Validate("d41d8cd98f00b204e9800998ecf8427e")
	if err == nil {
		t.Fatalf("expected hash-like name to be rejected")
	}
}

func TestValidateRejectsBadForms(t *testing.T) {
	for _, name := range []string{"", "Uppercase", "@scope/", "has/slash", "@/name"} {
		if err := Validate(name); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}
