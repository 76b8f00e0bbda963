package dbschema

import (
	"strings"
	"testing"

	"github.com/ardanlabs/darwin/v3"
)

func TestMigrationsParse(t *testing.T) {
	ms := darwin.ParseMigrations(migrations)
	if len(ms) != 3 {
		t.Fatalf("got %d migrations, want %d", len(ms), 3)
	}

	for i := 1; i < len(ms); i++ {
		if ms[i].Version <= ms[i-1].Version {
			t.Fatalf("migration %d is not after %d", i, i-1)
		}
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	if !strings.Contains(seed, "ON CONFLICT (id) DO NOTHING") {
		t.Fatalf("seed must skip existing clients")
	}
}
