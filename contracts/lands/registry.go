package lands

import (
	"encoding/binary"
	"time"

	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/store"
	"go.neoki.io/neoki/core/store/prefixed"
	"golang.org/x/xerrors"
)

const (
	// GridSide is the side of the square land grid.
	GridSide = 651

	// TotalLands is the total number of land parcels ever mintable.
	TotalLands = GridSide * GridSide

	// LockedReserve is the number of parcels reserved for a future auction.
	// The reserve takes the highest identifiers of the grid.
	LockedReserve = (TotalLands + 1) / 2

	// SellableLands is the number of parcels mintable from deployment.
	SellableLands = TotalLands - LockedReserve

	// LockDuration is how long the reserve stays unmintable after the
	// registry is initialized.
	LockDuration = 364 * 24 * time.Hour
)

var (
	lockedUntilKey = []byte("locked_until")
	mintedKey      = []byte("minted")
)

// Registry provides the parcel operations of the land registry. A parcel has
// exactly one owner and can be minted only once.
type Registry struct{}

// NewRegistry creates a new land registry.
func NewRegistry() Registry {
	return Registry{}
}

// Init records the release date of the locked reserve. It must be called once
// when the ledger is created.
func (Registry) Init(snap store.Snapshot, now time.Time) error {
	parcels := prefixed.NewSnapshot(ContractUID, snap)

	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, uint64(now.Add(LockDuration).Unix()))

	err := parcels.Set(lockedUntilKey, buffer)
	if err != nil {
		return xerrors.Errorf("failed to set release date: %v", err)
	}

	return nil
}

// LockedUntil returns the time at which the locked reserve becomes mintable.
func (Registry) LockedUntil(st store.Readable) (time.Time, error) {
	value, err := prefixed.NewReadable(ContractUID, st).Get(lockedUntilKey)
	if err != nil {
		return time.Time{}, xerrors.Errorf("failed to read release date: %v", err)
	}

	if len(value) == 0 {
		return time.Time{}, xerrors.New("registry not initialized")
	}

	return time.Unix(int64(binary.BigEndian.Uint64(value)), 0), nil
}

// SellingLands returns the number of parcels mintable at the given time.
func (r Registry) SellingLands(st store.Readable, now time.Time) (uint64, error) {
	release, err := r.LockedUntil(st)
	if err != nil {
		return 0, err
	}

	if now.Before(release) {
		return SellableLands, nil
	}

	return TotalLands, nil
}

// Mint assigns the parcel to the recipient. It fails when the identifier is
// out of the grid, still part of the locked reserve, or already minted.
func (r Registry) Mint(snap store.Snapshot, to access.Address, id uint64, now time.Time) error {
	if id == 0 || id > TotalLands {
		return xerrors.Errorf("LAND %d out of range [1; %d]", id, TotalLands)
	}

	if id > SellableLands {
		release, err := r.LockedUntil(snap)
		if err != nil {
			return err
		}

		if now.Before(release) {
			return xerrors.Errorf("LAND %d is locked until %s", id, release.UTC().Format(time.RFC3339))
		}
	}

	parcels := prefixed.NewSnapshot(ContractUID, snap)

	key := ownerKey(id)

	owner, err := parcels.Get(key)
	if err != nil {
		return xerrors.Errorf("failed to read owner: %v", err)
	}

	if len(owner) != 0 {
		return xerrors.Errorf("LAND %d already minted", id)
	}

	err = parcels.Set(key, []byte(to.String()))
	if err != nil {
		return xerrors.Errorf("failed to set owner: %v", err)
	}

	err = increment(parcels, balanceKey(to))
	if err != nil {
		return xerrors.Errorf("failed to update balance: %v", err)
	}

	err = increment(parcels, mintedKey)
	if err != nil {
		return xerrors.Errorf("failed to update supply: %v", err)
	}

	return nil
}

// OwnerOf returns the owner of the parcel, or an empty address when the
// parcel has not been minted.
func (Registry) OwnerOf(st store.Readable, id uint64) (access.Address, error) {
	value, err := prefixed.NewReadable(ContractUID, st).Get(ownerKey(id))
	if err != nil {
		return "", xerrors.Errorf("failed to read owner: %v", err)
	}

	return access.Address(value), nil
}

// BalanceOf returns the number of parcels held by the address.
func (Registry) BalanceOf(st store.Readable, holder access.Address) (uint64, error) {
	return readUint64(prefixed.NewReadable(ContractUID, st), balanceKey(holder))
}

// TotalMinted returns the number of parcels minted so far.
func (Registry) TotalMinted(st store.Readable) (uint64, error) {
	return readUint64(prefixed.NewReadable(ContractUID, st), mintedKey)
}

func ownerKey(id uint64) []byte {
	key := make([]byte, 4+8)
	copy(key, "own:")
	binary.BigEndian.PutUint64(key[4:], id)

	return key
}

func balanceKey(holder access.Address) []byte {
	return []byte("bal:" + holder.String())
}

func increment(snap store.Snapshot, key []byte) error {
	count, err := readUint64(snap, key)
	if err != nil {
		return err
	}

	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, count+1)

	return snap.Set(key, buffer)
}

func readUint64(st store.Readable, key []byte) (uint64, error) {
	value, err := st.Get(key)
	if err != nil {
		return 0, err
	}

	if len(value) == 0 {
		return 0, nil
	}

	return binary.BigEndian.Uint64(value), nil
}
