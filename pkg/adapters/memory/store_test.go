package memory_test

import (
	"testing"

	"github.com/aretw0/sessionkit/pkg/adapters/memory"
	"github.com/aretw0/sessionkit/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunCacheContract(t, store, store)
}
