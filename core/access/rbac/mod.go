// Package rbac implements an access service that stores, for each credential
// rule, the set of addresses granted to it. The set lives in the contract
// store so that grants follow the same transactional semantics as any other
// state change.
package rbac

import (
	"sort"
	"strings"

	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/store"
	"golang.org/x/xerrors"
)

// Service is a role-based implementation of an access service.
//
// - implements access.Service
type Service struct{}

// NewService creates a new role-based access service.
func NewService() Service {
	return Service{}
}

// Match implements access.Service. It returns nil only when every identity of
// the group is granted to the credential.
func (srvc Service) Match(st store.Readable, creds access.Credential, idents ...access.Identity) error {
	value, err := st.Get(makeKey(creds))
	if err != nil {
		return xerrors.Errorf("store failed: %v", err)
	}

	granted := parseSet(value)

	for _, ident := range idents {
		name, err := marshalIdentity(ident)
		if err != nil {
			return err
		}

		if _, found := granted[name]; !found {
			return xerrors.Errorf("%q is refused by rule '%s'", name, creds.GetRule())
		}
	}

	return nil
}

// Grant implements access.Service. It adds the group of identities to the
// credential's set.
func (srvc Service) Grant(snap store.Snapshot, creds access.Credential, idents ...access.Identity) error {
	key := makeKey(creds)

	value, err := snap.Get(key)
	if err != nil {
		return xerrors.Errorf("store failed: %v", err)
	}

	granted := parseSet(value)

	for _, ident := range idents {
		name, err := marshalIdentity(ident)
		if err != nil {
			return err
		}

		granted[name] = struct{}{}
	}

	err = snap.Set(key, formatSet(granted))
	if err != nil {
		return xerrors.Errorf("failed to store rule: %v", err)
	}

	return nil
}

// Revoke implements access.Service. It removes the group of identities from
// the credential's set.
func (srvc Service) Revoke(snap store.Snapshot, creds access.Credential, idents ...access.Identity) error {
	key := makeKey(creds)

	value, err := snap.Get(key)
	if err != nil {
		return xerrors.Errorf("store failed: %v", err)
	}

	granted := parseSet(value)

	for _, ident := range idents {
		name, err := marshalIdentity(ident)
		if err != nil {
			return err
		}

		delete(granted, name)
	}

	if len(granted) == 0 {
		err = snap.Delete(key)
		if err != nil {
			return xerrors.Errorf("failed to remove rule: %v", err)
		}

		return nil
	}

	err = snap.Set(key, formatSet(granted))
	if err != nil {
		return xerrors.Errorf("failed to store rule: %v", err)
	}

	return nil
}

func makeKey(creds access.Credential) []byte {
	key := creds.GetID()
	key = append(key, ':')
	key = append(key, []byte(creds.GetRule())...)

	return key
}

func marshalIdentity(ident access.Identity) (string, error) {
	text, err := ident.MarshalText()
	if err != nil {
		return "", xerrors.Errorf("failed to marshal identity: %v", err)
	}

	return string(text), nil
}

func parseSet(value []byte) map[string]struct{} {
	set := map[string]struct{}{}

	if len(value) == 0 {
		return set
	}

	for _, name := range strings.Split(string(value), ",") {
		set[name] = struct{}{}
	}

	return set
}

func formatSet(set map[string]struct{}) []byte {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}

	sort.Strings(names)

	return []byte(strings.Join(names, ","))
}
