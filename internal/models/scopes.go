package models

// Scope constants define all valid scopes in the system
const (
	// ScopeUser is granted on successful email verification and marks
	// an account as usable.
	ScopeUser = "user"

	// ScopeAdmin grants administrative access.
	ScopeAdmin = "admin"
)

// AllValidScopes is the whitelist of all allowed scopes
var AllValidScopes = map[string]bool{
	ScopeUser:  true,
	ScopeAdmin: true,
}

// IsValidScope checks if a scope exists in the whitelist
func IsValidScope(scope string) bool {
	return AllValidScopes[scope]
}

// HasScope checks if a scopes array contains a required scope
func HasScope(scopes []string, required string) bool {
	for _, scope := range scopes {
		if scope == required {
			return true
		}
	}
	return false
}

// AddScope returns scopes with the given scope appended if not already
// present. The input slice is not modified.
func AddScope(scopes []string, scope string) []string {
	if HasScope(scopes, scope) {
		return scopes
	}
	out := make([]string, 0, len(scopes)+1)
	out = append(out, scopes...)
	return append(out, scope)
}
