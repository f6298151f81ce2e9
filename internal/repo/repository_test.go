package repo_test

import (
	"testing"

	"github.com/hamed0406/apiwatcher/internal/repo"
	"github.com/hamed0406/apiwatcher/internal/repo/memory"
	pg "github.com/hamed0406/apiwatcher/internal/repo/postgres"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.RegistryStore = memory.NewRegistry()
	var _ repo.HistoryStore = memory.NewHistory()

	var _ repo.RegistryStore = (*pg.RegistryStore)(nil)
	var _ repo.HistoryStore = (*pg.HistoryStore)(nil)
}
