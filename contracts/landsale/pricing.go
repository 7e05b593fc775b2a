package landsale

import (
	"encoding/json"

	"go.neoki.io/neoki/core/store"
	"go.neoki.io/neoki/core/store/prefixed"
	"golang.org/x/xerrors"
)

var rangesKey = []byte("ranges")

// PriceRange is a price applied to every parcel of an inclusive identifier
// range.
type PriceRange struct {
	Low   uint64 `json:"low"`
	High  uint64 `json:"high"`
	Price uint64 `json:"price"`
}

// IDPrice is the resolved price of a single parcel.
type IDPrice struct {
	ID    uint64 `json:"id"`
	Price uint64 `json:"price"`
}

// DefinePriceRange inserts the range in the table. A range with the same low
// identifier is replaced, otherwise the range is appended. Ranges may
// overlap: the most recently defined covering range resolves.
func DefinePriceRange(snap store.Snapshot, lo, hi, price uint64) error {
	if lo == 0 || hi < lo {
		return xerrors.Errorf("invalid range [%d; %d]", lo, hi)
	}

	ranges, err := loadRanges(snap)
	if err != nil {
		return err
	}

	entry := PriceRange{Low: lo, High: hi, Price: price}

	replaced := false
	for i, r := range ranges {
		if r.Low == lo {
			ranges[i] = entry
			replaced = true

			break
		}
	}

	if !replaced {
		ranges = append(ranges, entry)
	}

	return storeRanges(snap, ranges)
}

// PriceOf resolves the price of a parcel. It returns zero when no range
// covers the identifier, which means the parcel is not sellable.
func PriceOf(st store.Readable, id uint64) (uint64, error) {
	ranges, err := loadRanges(st)
	if err != nil {
		return 0, err
	}

	price := uint64(0)

	for _, r := range ranges {
		if id >= r.Low && id <= r.High {
			price = r.Price
		}
	}

	return price, nil
}

// ScanPrices calls fn for every identifier of the inclusive range with its
// resolved price, in increasing order of identifiers. The scan can be
// restarted by calling it again.
func ScanPrices(st store.Readable, from, to uint64, fn func(id, price uint64) error) error {
	if from == 0 || to < from {
		return xerrors.Errorf("invalid range [%d; %d]", from, to)
	}

	ranges, err := loadRanges(st)
	if err != nil {
		return err
	}

	for id := from; id <= to; id++ {
		price := uint64(0)

		for _, r := range ranges {
			if id >= r.Low && id <= r.High {
				price = r.Price
			}
		}

		err := fn(id, price)
		if err != nil {
			return err
		}
	}

	return nil
}

// Prices resolves the prices of the inclusive identifier range as a slice of
// length to-from+1.
func Prices(st store.Readable, from, to uint64) ([]IDPrice, error) {
	prices := make([]IDPrice, 0, to-from+1)

	err := ScanPrices(st, from, to, func(id, price uint64) error {
		prices = append(prices, IDPrice{ID: id, Price: price})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return prices, nil
}

func loadRanges(st store.Readable) ([]PriceRange, error) {
	value, err := prefixed.NewReadable(ContractUID, st).Get(rangesKey)
	if err != nil {
		return nil, xerrors.Errorf("failed to read ranges: %v", err)
	}

	if len(value) == 0 {
		return nil, nil
	}

	var ranges []PriceRange

	err = json.Unmarshal(value, &ranges)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode ranges: %v", err)
	}

	return ranges, nil
}

func storeRanges(snap store.Snapshot, ranges []PriceRange) error {
	value, err := json.Marshal(ranges)
	if err != nil {
		return xerrors.Errorf("failed to encode ranges: %v", err)
	}

	err = prefixed.NewSnapshot(ContractUID, snap).Set(rangesKey, value)
	if err != nil {
		return xerrors.Errorf("failed to store ranges: %v", err)
	}

	return nil
}
