package inventory_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/emergence/internal/inventory"
	"github.com/talgya/emergence/internal/manifest"
)

type stacks map[manifest.ItemID]int

func (s stacks) StackSize(item manifest.ItemID) int { return s[item] }

var testStacks = stacks{"leaf": 3, "chunk": 2}

func one(item manifest.ItemID) manifest.ItemCount {
	return manifest.ItemCount{Item: item, Count: 1}
}

func TestFixedInventory(t *testing.T) {
	inv := inventory.NewFixed([]manifest.ItemCount{{Item: "leaf", Count: 2}})

	assert.True(t, inv.Accepts("leaf"))
	assert.False(t, inv.Accepts("chunk"))
	assert.Equal(t, 2, inv.RemainingReservedSpaceFor("leaf"))
	assert.Equal(t, 0, inv.RemainingReservedSpaceFor("chunk"))

	require.NoError(t, inv.AddAllOrNothing(manifest.ItemCount{Item: "leaf", Count: 2}, testStacks))
	assert.True(t, inv.Full())
	assert.Equal(t, 2, inv.ItemCount("leaf"))

	err := inv.AddAllOrNothing(one("leaf"), testStacks)
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrTransferRejected)
	var addErr *inventory.AddError
	require.ErrorAs(t, err, &addErr)
	assert.Equal(t, 0, addErr.Space)

	require.NoError(t, inv.RemoveAllOrNothing(manifest.ItemCount{Item: "leaf", Count: 2}))
	assert.True(t, inv.IsEmpty())
	// Fixed slots survive being emptied.
	assert.Len(t, inv.Slots(), 1)
	assert.Equal(t, 2, inv.RemainingReservedSpaceFor("leaf"))
}

func TestStorageInventory(t *testing.T) {
	inv := inventory.NewStorage(2, "")
	assert.Equal(t, 0, inv.RemainingReservedSpaceFor("leaf"), "storage reserves nothing")
	assert.Equal(t, 6, inv.RemainingSpaceFor("leaf", testStacks))

	require.NoError(t, inv.AddAllOrNothing(manifest.ItemCount{Item: "leaf", Count: 4}, testStacks))
	assert.Len(t, inv.Slots(), 2)
	assert.Equal(t, 2, inv.RemainingSpaceFor("leaf", testStacks))
	assert.Equal(t, 0, inv.RemainingSpaceFor("chunk", testStacks))

	require.NoError(t, inv.RemoveAllOrNothing(one("leaf")))
	require.NoError(t, inv.RemoveAllOrNothing(one("leaf")))
	assert.Equal(t, 2, inv.ItemCount("leaf"))
	assert.Equal(t, 2, inv.RemainingSpaceFor("chunk", testStacks), "an emptied slot frees up for other items")

	require.NoError(t, inv.AddAllOrNothing(manifest.ItemCount{Item: "chunk", Count: 2}, testStacks))
	assert.Equal(t, 0, inv.RemainingSpaceFor("chunk", testStacks))
	assert.False(t, inv.Full(), "the leaf stack still has room")
}

func TestReservedStorage(t *testing.T) {
	inv := inventory.NewStorage(1, "chunk")
	assert.True(t, inv.Accepts("chunk"))
	assert.False(t, inv.Accepts("leaf"))
	assert.ErrorIs(t, inv.AddAllOrNothing(one("leaf"), testStacks), inventory.ErrTransferRejected)
	assert.NoError(t, inv.AddAllOrNothing(one("chunk"), testStacks))
}

func TestUnknownItemHasNoStorageSpace(t *testing.T) {
	inv := inventory.NewStorage(3, "")
	assert.Equal(t, 0, inv.RemainingSpaceFor("mystery", testStacks))
	assert.ErrorIs(t, inv.AddAllOrNothing(one("mystery"), testStacks), inventory.ErrTransferRejected)
	assert.True(t, inv.IsEmpty())
}

func TestRemoveMoreThanAvailable(t *testing.T) {
	inv := inventory.NewStorage(2, "")
	require.NoError(t, inv.AddAllOrNothing(manifest.ItemCount{Item: "leaf", Count: 2}, testStacks))

	err := inv.RemoveAllOrNothing(manifest.ItemCount{Item: "leaf", Count: 3})
	var remErr *inventory.RemoveError
	require.ErrorAs(t, err, &remErr)
	assert.Equal(t, 2, remErr.Available)
	assert.Equal(t, 2, inv.ItemCount("leaf"))
}

// Every operation either fully applies or leaves the inventory untouched,
// and capacity bounds hold after each step.
func TestAllOrNothingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	items := []manifest.ItemID{"leaf", "chunk"}

	inventories := []*inventory.Inventory{
		inventory.NewStorage(3, ""),
		inventory.NewFixed([]manifest.ItemCount{{Item: "leaf", Count: 4}, {Item: "chunk", Count: 1}}),
	}

	for _, inv := range inventories {
		for step := 0; step < 500; step++ {
			ic := manifest.ItemCount{Item: items[rng.Intn(len(items))], Count: rng.Intn(5)}
			before := inv.Clone()

			var err error
			if rng.Intn(2) == 0 {
				err = inv.AddAllOrNothing(ic, testStacks)
				if err == nil {
					assert.Equal(t, before.ItemCount(ic.Item)+ic.Count, inv.ItemCount(ic.Item))
				}
			} else {
				err = inv.RemoveAllOrNothing(ic)
				if err == nil {
					assert.Equal(t, before.ItemCount(ic.Item)-ic.Count, inv.ItemCount(ic.Item))
				}
			}
			if err != nil {
				assert.ErrorIs(t, err, inventory.ErrTransferRejected)
				assert.Equal(t, before.Slots(), inv.Slots(), "failed transfer must not mutate")
			}

			for _, s := range inv.Slots() {
				assert.GreaterOrEqual(t, s.Count, 0)
				assert.LessOrEqual(t, s.Count, s.Max)
			}
		}
	}
}
