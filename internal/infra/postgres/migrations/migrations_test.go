package migrations

import "testing"

// Registration happens in init; a bad migration file name would panic before
// this test runs. Also pin the count and apply order.
func TestMigrationsRegistered(t *testing.T) {
	sorted := Migrations.Sorted()
	if len(sorted) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(sorted))
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Name > sorted[i].Name {
			t.Fatalf("migrations out of order: %s before %s", sorted[i-1].Name, sorted[i].Name)
		}
	}
	if sorted[0].Comment != "create_catalog" {
		t.Fatalf("expected catalog migration first, got %q", sorted[0].Comment)
	}
}
