package nko

import (
	"encoding/binary"

	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/store"
	"go.neoki.io/neoki/core/store/prefixed"
	"golang.org/x/xerrors"
)

// Ledger provides the balance and allowance operations of the NKO token. It
// is stateless, the balances live in the contract's namespace of the given
// snapshot, so other contracts can settle payments inside their own
// execution.
type Ledger struct{}

// NewLedger creates a new NKO ledger.
func NewLedger() Ledger {
	return Ledger{}
}

// BalanceOf returns the balance of the holder, zero when the holder is
// unknown.
func (Ledger) BalanceOf(st store.Readable, holder access.Address) (uint64, error) {
	return readUint64(prefixed.NewReadable(ContractUID, st), balanceKey(holder))
}

// Allowance returns the remaining amount the spender can move out of the
// owner's balance.
func (Ledger) Allowance(st store.Readable, owner, spender access.Address) (uint64, error) {
	return readUint64(prefixed.NewReadable(ContractUID, st), allowanceKey(owner, spender))
}

// Mint credits the recipient with new tokens.
func (Ledger) Mint(snap store.Snapshot, to access.Address, amount uint64) error {
	tokens := prefixed.NewSnapshot(ContractUID, snap)

	err := credit(tokens, balanceKey(to), amount)
	if err != nil {
		return xerrors.Errorf("failed to credit '%v': %v", to, err)
	}

	return nil
}

// Transfer moves tokens from one holder to another.
func (Ledger) Transfer(snap store.Snapshot, from, to access.Address, amount uint64) error {
	tokens := prefixed.NewSnapshot(ContractUID, snap)

	err := debit(tokens, balanceKey(from), amount)
	if err != nil {
		return xerrors.Errorf("failed to debit '%v': %v", from, err)
	}

	err = credit(tokens, balanceKey(to), amount)
	if err != nil {
		return xerrors.Errorf("failed to credit '%v': %v", to, err)
	}

	return nil
}

// Approve sets the amount the spender is allowed to move out of the owner's
// balance. The amount replaces any previous approval.
func (Ledger) Approve(snap store.Snapshot, owner, spender access.Address, amount uint64) error {
	tokens := prefixed.NewSnapshot(ContractUID, snap)

	err := writeUint64(tokens, allowanceKey(owner, spender), amount)
	if err != nil {
		return xerrors.Errorf("failed to set allowance: %v", err)
	}

	return nil
}

// TransferFrom moves tokens out of the owner's balance on behalf of the
// spender. The spender's allowance is consumed unless the spender is the
// owner.
func (l Ledger) TransferFrom(snap store.Snapshot, spender, from, to access.Address, amount uint64) error {
	if spender != from {
		tokens := prefixed.NewSnapshot(ContractUID, snap)

		key := allowanceKey(from, spender)

		allowance, err := readUint64(tokens, key)
		if err != nil {
			return xerrors.Errorf("failed to read allowance: %v", err)
		}

		if allowance < amount {
			return xerrors.Errorf("insufficient allowance: have %d, need %d", allowance, amount)
		}

		err = writeUint64(tokens, key, allowance-amount)
		if err != nil {
			return xerrors.Errorf("failed to update allowance: %v", err)
		}
	}

	return l.Transfer(snap, from, to, amount)
}

func balanceKey(holder access.Address) []byte {
	return []byte("bal:" + holder.String())
}

func allowanceKey(owner, spender access.Address) []byte {
	return []byte("alw:" + owner.String() + ":" + spender.String())
}

func debit(snap store.Snapshot, key []byte, amount uint64) error {
	balance, err := readUint64(snap, key)
	if err != nil {
		return err
	}

	if balance < amount {
		return xerrors.Errorf("insufficient balance: have %d, need %d", balance, amount)
	}

	return writeUint64(snap, key, balance-amount)
}

func credit(snap store.Snapshot, key []byte, amount uint64) error {
	balance, err := readUint64(snap, key)
	if err != nil {
		return err
	}

	if balance+amount < balance {
		return xerrors.New("balance overflow")
	}

	return writeUint64(snap, key, balance+amount)
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
