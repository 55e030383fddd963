package domain

// Identity is the acting subject established by the auth provider.
type Identity struct {
	SubjectID string
	Email     string
	Admin     bool
}

// Actor returns the audit label for the identity.
func (i Identity) Actor() string {
	if i.Email != "" {
		return i.Email
	}
	return i.SubjectID
}
