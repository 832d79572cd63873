package state

import "creditvault/native/governance"

// RolesGet loads the role registry, empty when unset.
func (t *Txn) RolesGet() (*governance.Roles, error) {
	roles := new(governance.Roles)
	ok, err := t.getJSON(keyRoles, roles)
	if err != nil {
		return nil, err
	}
	if !ok {
		roles = &governance.Roles{}
	}
	return roles, nil
}

// RolesPut stages the role registry.
func (t *Txn) RolesPut(roles *governance.Roles) error {
	if roles == nil {
		return errNilRecord
	}
	return t.putJSON(keyRoles, roles)
}

// ProposalNextID allocates the next proposal ID, starting at 1.
func (t *Txn) ProposalNextID() (uint64, error) {
	return t.nextCounter(keyProposalNext, 1)
}

// ProposalGet loads a borrower proposal.
func (t *Txn) ProposalGet(id uint64) (*governance.BorrowerProposal, bool, error) {
	proposal := new(governance.BorrowerProposal)
	ok, err := t.getJSON(proposalKey(id), proposal)
	if err != nil || !ok {
		return nil, false, err
	}
	return proposal, true, nil
}

// ProposalPut stages a borrower proposal write.
func (t *Txn) ProposalPut(proposal *governance.BorrowerProposal) error {
	if proposal == nil {
		return errNilRecord
	}
	return t.putJSON(proposalKey(proposal.ID), proposal)
}
