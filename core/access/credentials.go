package access

import "fmt"

// ContractCredential is the credential protecting one command of a contract.
// Its rule is the contract name joined to the command name, so each command
// can be granted independently.
//
// - implements access.Credential
type ContractCredential struct {
	id       []byte
	contract string
	command  string
}

// NewContractCreds returns the credential of the given contract command,
// stored under the provided identifier.
func NewContractCreds(id []byte, contract, command string) ContractCredential {
	return ContractCredential{
		id:       id,
		contract: contract,
		command:  command,
	}
}

// GetID implements access.Credential. It returns a copy of the credential
// identifier.
func (cc ContractCredential) GetID() []byte {
	return append([]byte{}, cc.id...)
}

// GetRule implements access.Credential. It returns the rule as
// "<contract>:<command>".
func (cc ContractCredential) GetRule() string {
	return fmt.Sprintf("%s:%s", cc.contract, cc.command)
}
