package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/internal/testing/fake"
)

var creds = access.NewContractCreds([]byte{0xaa}, "example", "mint")

const (
	alice = access.Address("alice")
	bob   = access.Address("bob")
)

func TestService_Match(t *testing.T) {
	srvc := NewService()

	snap := fake.NewSnapshot()

	err := srvc.Match(snap, creds, alice)
	require.EqualError(t, err, `"alice" is refused by rule 'example:mint'`)

	require.NoError(t, srvc.Grant(snap, creds, alice))

	err = srvc.Match(snap, creds, alice)
	require.NoError(t, err)

	// the whole group must be granted
	err = srvc.Match(snap, creds, alice, bob)
	require.EqualError(t, err, `"bob" is refused by rule 'example:mint'`)

	err = srvc.Match(fake.NewBadSnapshot(), creds, alice)
	require.EqualError(t, err, fake.Err("store failed"))
}

func TestService_Grant(t *testing.T) {
	srvc := NewService()

	snap := fake.NewSnapshot()

	require.NoError(t, srvc.Grant(snap, creds, alice, bob))
	require.NoError(t, srvc.Match(snap, creds, alice, bob))

	// granting twice is idempotent
	require.NoError(t, srvc.Grant(snap, creds, alice))
	require.NoError(t, srvc.Match(snap, creds, alice, bob))

	err := srvc.Grant(fake.NewBadSnapshot(), creds, alice)
	require.EqualError(t, err, fake.Err("store failed"))
}

func TestService_Revoke(t *testing.T) {
	srvc := NewService()

	snap := fake.NewSnapshot()

	require.NoError(t, srvc.Grant(snap, creds, alice, bob))
	require.NoError(t, srvc.Revoke(snap, creds, bob))

	require.NoError(t, srvc.Match(snap, creds, alice))

	err := srvc.Match(snap, creds, bob)
	require.EqualError(t, err, `"bob" is refused by rule 'example:mint'`)

	// revoking the last identity removes the rule
	require.NoError(t, srvc.Revoke(snap, creds, alice))

	value, err := snap.Get(makeKey(creds))
	require.NoError(t, err)
	require.Nil(t, value)

	err = srvc.Revoke(fake.NewBadSnapshot(), creds, alice)
	require.EqualError(t, err, fake.Err("store failed"))
}

func TestService_Rules_AreIsolated(t *testing.T) {
	srvc := NewService()

	snap := fake.NewSnapshot()

	other := access.NewContractCreds([]byte{0xaa}, "example", "admin")

	require.NoError(t, srvc.Grant(snap, creds, alice))

	err := srvc.Match(snap, other, alice)
	require.EqualError(t, err, `"alice" is refused by rule 'example:admin'`)
}
