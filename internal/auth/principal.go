package auth

// Principal is the authenticated caller of a request. It is a value; nothing downstream can
// change who the request acts as.
type Principal struct {
	Subject string
	Role    string
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanActOn reports whether the principal may modify the account with the given roll number.
func (p Principal) CanActOn(rollNumber string) bool {
	return p.IsAdmin() || (p.Subject != "" && p.Subject == rollNumber)
}
