package validate

import "testing"

func TestCheckZip(t *testing.T) {
	type shipment struct {
		Zipcode string `validate:"required,uszip"`
	}

	valid := []string{"12345", "12345-6789"}
	for _, z := range valid {
		if err := Check(shipment{Zipcode: z}); err != nil {
			t.Fatalf("zipcode %q should be valid: %v", z, err)
		}
	}

	invalid := []string{"", "1234", "123456", "12345-67", "abcde"}
	for _, z := range invalid {
		if err := Check(shipment{Zipcode: z}); err == nil {
			t.Fatalf("zipcode %q should be rejected", z)
		}
	}
}

func TestCheckID(t *testing.T) {
	if err := CheckID(GenerateID()); err != nil {
		t.Fatalf("generated ID should parse: %v", err)
	}
	if err := CheckID("not-a-uuid"); err == nil {
		t.Fatal("malformed ID should be rejected")
	}
}
