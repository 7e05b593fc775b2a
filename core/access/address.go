package access

// Address is a ledger address used as the identity of a transaction emitter
// or the recipient of assets. Contracts hold an address of their own so that
// they can appear as a party in a transfer.
//
// - implements access.Identity
type Address string

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a), nil
}

// Equal implements access.Identity.
func (a Address) Equal(other Identity) bool {
	addr, ok := other.(Address)

	return ok && addr == a
}

// String returns the address as a plain string.
func (a Address) String() string {
	return string(a)
}

// AddressOf extracts the address of an identity.
func AddressOf(ident Identity) (Address, bool) {
	addr, ok := ident.(Address)

	return addr, ok
}
