package nfts

import (
	"encoding/binary"

	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/store"
	"go.neoki.io/neoki/core/store/prefixed"
	"golang.org/x/xerrors"
)

var nextIDKey = []byte("next_id")

// Registry provides the collectible operations of the NFT store. A token is
// identified by a monotonic identifier allocated at minting time and can be
// held in arbitrary quantities by several owners at once.
type Registry struct{}

// NewRegistry creates a new collectible registry.
func NewRegistry() Registry {
	return Registry{}
}

// Mint creates the given quantity of a brand new token credited to the
// recipient. It returns the allocated token identifier, starting at 1.
func (Registry) Mint(snap store.Snapshot, to access.Address, amount uint64, uri string) (uint64, error) {
	if amount == 0 {
		return 0, xerrors.New("amount must be positive")
	}

	tokens := prefixed.NewSnapshot(ContractUID, snap)

	id, err := readUint64(tokens, nextIDKey)
	if err != nil {
		return 0, xerrors.Errorf("failed to read counter: %v", err)
	}

	id++

	err = writeUint64(tokens, nextIDKey, id)
	if err != nil {
		return 0, xerrors.Errorf("failed to update counter: %v", err)
	}

	err = writeUint64(tokens, balanceKey(to, id), amount)
	if err != nil {
		return 0, xerrors.Errorf("failed to set balance: %v", err)
	}

	err = tokens.Set(uriKey(id), []byte(uri))
	if err != nil {
		return 0, xerrors.Errorf("failed to set uri: %v", err)
	}

	return id, nil
}

// BalanceOf returns the quantity of the token held by the owner.
func (Registry) BalanceOf(st store.Readable, owner access.Address, id uint64) (uint64, error) {
	return readUint64(prefixed.NewReadable(ContractUID, st), balanceKey(owner, id))
}

// URI returns the metadata location of the token.
func (Registry) URI(st store.Readable, id uint64) (string, error) {
	value, err := prefixed.NewReadable(ContractUID, st).Get(uriKey(id))
	if err != nil {
		return "", xerrors.Errorf("failed to read uri: %v", err)
	}

	return string(value), nil
}

// SetApprovalForAll grants or removes the operator's right to move any of the
// owner's tokens.
func (Registry) SetApprovalForAll(snap store.Snapshot, owner, operator access.Address, approved bool) error {
	tokens := prefixed.NewSnapshot(ContractUID, snap)

	if !approved {
		err := tokens.Delete(operatorKey(owner, operator))
		if err != nil {
			return xerrors.Errorf("failed to remove approval: %v", err)
		}

		return nil
	}

	err := tokens.Set(operatorKey(owner, operator), []byte{1})
	if err != nil {
		return xerrors.Errorf("failed to set approval: %v", err)
	}

	return nil
}

// IsApprovedForAll returns true when the operator can move the owner's
// tokens.
func (Registry) IsApprovedForAll(st store.Readable, owner, operator access.Address) (bool, error) {
	value, err := prefixed.NewReadable(ContractUID, st).Get(operatorKey(owner, operator))
	if err != nil {
		return false, xerrors.Errorf("failed to read approval: %v", err)
	}

	return len(value) != 0, nil
}

// SafeTransferFrom moves a quantity of the token from one holder to another.
// The operator must be the holder or approved by the holder.
func (r Registry) SafeTransferFrom(snap store.Snapshot, operator, from, to access.Address, id, amount uint64) error {
	if operator != from {
		approved, err := r.IsApprovedForAll(snap, from, operator)
		if err != nil {
			return err
		}

		if !approved {
			return xerrors.Errorf("'%v' is not approved by '%v'", operator, from)
		}
	}

	tokens := prefixed.NewSnapshot(ContractUID, snap)

	balance, err := readUint64(tokens, balanceKey(from, id))
	if err != nil {
		return xerrors.Errorf("failed to read balance: %v", err)
	}

	if balance < amount {
		return xerrors.Errorf("token %d: insufficient balance: have %d, need %d", id, balance, amount)
	}

	err = writeUint64(tokens, balanceKey(from, id), balance-amount)
	if err != nil {
		return xerrors.Errorf("failed to debit '%v': %v", from, err)
	}

	target, err := readUint64(tokens, balanceKey(to, id))
	if err != nil {
		return xerrors.Errorf("failed to read balance: %v", err)
	}

	err = writeUint64(tokens, balanceKey(to, id), target+amount)
	if err != nil {
		return xerrors.Errorf("failed to credit '%v': %v", to, err)
	}

	return nil
}

func balanceKey(owner access.Address, id uint64) []byte {
	key := make([]byte, 4+8, 4+8+1+len(owner))
	copy(key, "bal:")
	binary.BigEndian.PutUint64(key[4:], id)
	key = append(key, ':')
	key = append(key, []byte(owner)...)

	return key
}

func uriKey(id uint64) []byte {
	key := make([]byte, 4+8)
	copy(key, "uri:")
	binary.BigEndian.PutUint64(key[4:], id)

	return key
}

func operatorKey(owner, operator access.Address) []byte {
	return []byte("opr:" + owner.String() + ":" + operator.String())
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

func writeUint64(snap store.Writable, key []byte, value uint64) error {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, value)

	return snap.Set(key, buffer)
}
