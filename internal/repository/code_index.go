package repository

import (
	"fmt"

	"care4kids/internal/codes"
)

// CodeIndex answers the generator's advisory availability checks across both
// code kinds, each backed by its own table.
type CodeIndex struct {
	invitations   *InvitationRepository
	registrations *RegistrationRepository
}

// NewCodeIndex creates a new code index
func NewCodeIndex(invitations *InvitationRepository, registrations *RegistrationRepository) *CodeIndex {
	return &CodeIndex{invitations: invitations, registrations: registrations}
}

// IsCodeActive reports whether a pending record of the given kind holds the code
func (c *CodeIndex) IsCodeActive(kind codes.Kind, code string) (bool, error) {
	switch kind {
	case codes.KindInvitation:
		return c.invitations.IsCodePending(code)
	case codes.KindChildRegistration:
		return c.registrations.IsCodePending(code)
	default:
		return false, fmt.Errorf("unknown code kind: %q", kind)
	}
}
