package fake

import (
	"go.neoki.io/neoki/core/access"
	"go.neoki.io/neoki/core/store"
)

// AccessService is a fake implementation of an access service.
//
// - implements access.Service
type AccessService struct {
	Err  error
	Call *Call
}

// NewAccessService returns an access service that accepts everything.
func NewAccessService() AccessService {
	return AccessService{}
}

// NewBadAccessService returns an access service that refuses everything.
func NewBadAccessService() AccessService {
	return AccessService{Err: fakeErr}
}

// Match implements access.Service.
func (srvc AccessService) Match(st store.Readable, creds access.Credential, idents ...access.Identity) error {
	srvc.Call.Add("match", creds.GetRule())

	return srvc.Err
}

// Grant implements access.Service.
func (srvc AccessService) Grant(snap store.Snapshot, creds access.Credential, idents ...access.Identity) error {
	srvc.Call.Add("grant", creds.GetRule())

	return srvc.Err
}

// Revoke implements access.Service.
func (srvc AccessService) Revoke(snap store.Snapshot, creds access.Credential, idents ...access.Identity) error {
	srvc.Call.Add("revoke", creds.GetRule())

	return srvc.Err
}
