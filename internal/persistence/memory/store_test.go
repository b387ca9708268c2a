package memory_test

import (
	"testing"

	"github.com/example/attendance-tracker/internal/persistence/memory"
	"github.com/example/attendance-tracker/internal/persistence/persistencetest"
)

func TestStoreContract(t *testing.T) {
	t.Parallel()

	persistencetest.Run(t, func(t *testing.T) (persistencetest.Store, persistencetest.CleanupFunc) {
		return memory.NewStore(), nil
	})
}
