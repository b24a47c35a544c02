package logger

import (
	"net/url"
	"strings"

	"github.com/BradenHooton/jardim/pkg/nationalid"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	// Mask username: keep first char, mask rest
	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Mask domain: keep TLD, mask the rest
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		// Mask all but the TLD
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizedNationalID masks all but the last two digits of a national ID
// (e.g., "***.***.***-44")
func SanitizedNationalID(raw string) string {
	digits := nationalid.Digits(raw)
	if len(digits) != nationalid.Length {
		return "[invalid-national-id]"
	}
	return "***.***.***-" + digits[9:]
}

// sensitiveParams are query parameters never logged verbatim
var sensitiveParams = map[string]bool{
	"password": true,
	"senha":    true,
	"token":    true,
	"secret":   true,
	"email":    true,
	"auth":     true,
}

// SanitizeQuery returns rawQuery fit for logging: national IDs keep their
// last two digits, other sensitive values are replaced by [REDACTED]. An
// unparseable query is redacted entirely.
func SanitizeQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "[REDACTED]"
	}
	for key, vals := range values {
		lower := strings.ToLower(key)
		for i, v := range vals {
			switch {
			case lower == "cpf":
				vals[i] = SanitizedNationalID(v)
			case sensitiveParams[lower]:
				vals[i] = "[REDACTED]"
			}
		}
	}
	encoded := values.Encode()
	if readable, err := url.QueryUnescape(encoded); err == nil {
		return readable
	}
	return encoded
}
