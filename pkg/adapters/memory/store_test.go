package memory_test

import (
	"testing"

	"github.com/gridswap/gridswap/pkg/adapters/memory"
	"github.com/gridswap/gridswap/pkg/ports"
)

func TestMemoryStoreContract(t *testing.T) {
	ports.RunStateStoreContract(t, memory.NewStore())
}

func TestMemoryRegistryContract(t *testing.T) {
	ports.RunRegistryContract(t, memory.NewRegistry())
}
