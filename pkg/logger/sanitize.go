package logger

import "strings"

// Parameter names whose presence in a query string means the whole
// string stays out of the logs. Verification links carry the account
// nonce in the query, so "nonce" matters as much as "password" here.
var sensitiveParams = []string{
	"password",
	"nonce",
	"token",
	"secret",
	"auth",
	"email",
	"api_key",
	"apikey",
}

// SanitizeQueryString reports whether a raw query string carries a
// sensitive parameter and must be redacted wholesale.
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}

// SanitizedEmail masks an email address for logging, keeping the first
// character of the local part and the TLD. "alice@example.com" comes
// out as "a****@*******.com".
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "[invalid-email]"
	}
	if len(local) > 1 {
		local = local[:1] + strings.Repeat("*", len(local)-1)
	}
	if i := strings.LastIndex(domain, "."); i > 0 {
		domain = strings.Repeat("*", i) + domain[i:]
	}
	return local + "@" + domain
}
