// Package credentials derives hosting-account usernames from customer
// domains, generates temporary passwords and maps plan ids to control
// panel packages and resource limits.
package credentials

import (
	"math/rand"
	"strings"
)

const (
	maxUsernameLen = 16
	suffixLen      = 4

	lowerAlnum      = "abcdefghijklmnopqrstuvwxyz0123456789"
	passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
)

// Username builds an account username from a domain: non-alphanumerics
// stripped, lowercased, a random 4-char suffix appended, capped at 16
// characters. Collision-resistant in practice but not guaranteed unique;
// callers retry on a remote "account exists" conflict.
func Username(domain string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(domain) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if base == "" {
		base = "site"
	}
	if len(base) > maxUsernameLen-suffixLen {
		base = base[:maxUsernameLen-suffixLen]
	}

	suffix := make([]byte, suffixLen)
	for i := range suffix {
		suffix[i] = lowerAlnum[rand.Intn(len(lowerAlnum))]
	}
	return base + string(suffix)
}

// Password draws length characters from a fixed charset. Passwords are
// temporary, delivered once and user-rotatable, so math/rand is used
// deliberately rather than crypto/rand.
func Password(length int) string {
	if length <= 0 {
		length = 12
	}
	out := make([]byte, length)
	for i := range out {
		out[i] = passwordCharset[rand.Intn(len(passwordCharset))]
	}
	return string(out)
}

// Plan lookup tables. An unrecognized plan id falls back to the basico
// values; that default is load-bearing, not an error.
var (
	packages = map[string]string{
		"basico":     "lw_basico",
		"intermedio": "lw_intermedio",
		"premium":    "lw_premium",
	}
	quotasMB = map[string]int{
		"basico":     2048,
		"intermedio": 5120,
		"premium":    10240,
	}
	bandwidthMB = map[string]int{
		"basico":     20480,
		"intermedio": 51200,
		"premium":    102400,
	}
	pricesARS = map[string]float64{
		"basico":     15000,
		"intermedio": 25000,
		"premium":    40000,
	}
)

func PackageFor(planID string) string {
	if pkg, ok := packages[planID]; ok {
		return pkg
	}
	return packages["basico"]
}

func QuotaFor(planID string) int {
	if q, ok := quotasMB[planID]; ok {
		return q
	}
	return quotasMB["basico"]
}

func BandwidthFor(planID string) int {
	if bw, ok := bandwidthMB[planID]; ok {
		return bw
	}
	return bandwidthMB["basico"]
}

func PriceFor(planID string) float64 {
	if p, ok := pricesARS[planID]; ok {
		return p
	}
	return pricesARS["basico"]
}

// KnownPackage reports whether pkg is one of the configured control
// panel packages.
func KnownPackage(pkg string) bool {
	for _, p := range packages {
		if p == pkg {
			return true
		}
	}
	return false
}
