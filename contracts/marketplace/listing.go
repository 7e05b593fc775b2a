package marketplace

import (
	"encoding/binary"
	"encoding/json"

	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/store"
	"go.neoki.io/neoki/core/store/prefixed"
	"golang.org/x/xerrors"
)

var (
	itemsKey    = []byte("items")
	nextItemKey = []byte("next_item")
)

// Listing is a quantity of a collectible offered at a price. The price covers
// the whole listed amount, a partial purchase settles the proportional share.
type Listing struct {
	// ItemID identifies the listing. It is allocated at creation, starting
	// at 1, and never reused.
	ItemID uint64 `json:"item_id"`

	// Collection is the address of the registry holding the token.
	Collection access.Address `json:"collection"`

	// TokenID identifies the token inside the registry.
	TokenID uint64 `json:"token_id"`

	// Amount is the listed quantity. A visible listing always has a positive
	// amount.
	Amount uint64 `json:"amount"`

	// Price is the price of the whole listed amount in NKO.
	Price uint64 `json:"price"`

	// Owner is the seller. Only the owner can update the listing.
	Owner access.Address `json:"owner"`

	// Escrowed is true when the marketplace holds the listed quantity in its
	// own balance, which is the case for mint-backed listings. Plain
	// listings leave custody with the owner until settlement.
	Escrowed bool `json:"escrowed"`
}

// loadItems returns the visible listings in table order.
func loadItems(st store.Readable) ([]Listing, error) {
	value, err := prefixed.NewReadable(ContractUID, st).Get(itemsKey)
	if err != nil {
		return nil, xerrors.Errorf("failed to read items: %v", err)
	}

	if len(value) == 0 {
		return nil, nil
	}

	var items []Listing

	err = json.Unmarshal(value, &items)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode items: %v", err)
	}

	return items, nil
}

func storeItems(snap store.Snapshot, items []Listing) error {
	value, err := json.Marshal(items)
	if err != nil {
		return xerrors.Errorf("failed to encode items: %v", err)
	}

	err = prefixed.NewSnapshot(ContractUID, snap).Set(itemsKey, value)
	if err != nil {
		return xerrors.Errorf("failed to store items: %v", err)
	}

	return nil
}

// findItem returns the slot and the listing of the item, or an error when no
// visible listing carries the identifier.
func findItem(items []Listing, itemID uint64) (int, Listing, error) {
	for i, item := range items {
		if item.ItemID == itemID {
			return i, item, nil
		}
	}

	return 0, Listing{}, xerrors.Errorf("item %d not found", itemID)
}

// removeItem compacts the slot out of the table. The remaining entries keep
// their relative order and the table has no gap.
func removeItem(items []Listing, slot int) []Listing {
	return append(items[:slot], items[slot+1:]...)
}

// nextItemID allocates a fresh monotonic listing identifier.
func nextItemID(snap store.Snapshot) (uint64, error) {
	table := prefixed.NewSnapshot(ContractUID, snap)

	value, err := table.Get(nextItemKey)
	if err != nil {
		return 0, xerrors.Errorf("failed to read counter: %v", err)
	}

	id := uint64(0)
	if len(value) != 0 {
		id = binary.BigEndian.Uint64(value)
	}

	id++

	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, id)

	err = table.Set(nextItemKey, buffer)
	if err != nil {
		return 0, xerrors.Errorf("failed to update counter: %v", err)
	}

	return id, nil
}
