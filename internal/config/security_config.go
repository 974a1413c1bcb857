package config

import (
	"net/netip"
	"strings"
)

type SecurityConfig interface {
	GetSessionSecret() string
	GetEnableRateLimiting() bool
	GetLoginRateLimit() float64
	GetLoginRateBurst() int
	GetTrustedProxies() TrustedProxies
}

type Security struct{}

var _ SecurityConfig = Security{}

// TrustedProxies are the peers whose X-Forwarded-For header is believed.
type TrustedProxies []netip.Prefix

func (p TrustedProxies) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range p {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// GetSessionSecret is the root key material for signing session and transit cookies.
func (Security) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "")
}

func (Security) GetEnableRateLimiting() bool {
	return GetEnv("RATE_LIMIT_ENABLED", "true") == "true"
}

// GetLoginRateLimit is the sustained number of login/callback requests per second per client IP.
func (Security) GetLoginRateLimit() float64 {
	return GetEnvFloat("LOGIN_RATE_LIMIT", 1)
}

func (Security) GetLoginRateBurst() int {
	return GetEnvInt("LOGIN_RATE_BURST", 10)
}

// GetTrustedProxies reads a comma separated TRUSTED_PROXIES list of addresses or CIDR ranges.
// Unparsable entries are ignored. Empty means X-Forwarded-For is never trusted.
func (Security) GetTrustedProxies() TrustedProxies {
	var proxies TrustedProxies
	for _, entry := range strings.Split(GetEnv("TRUSTED_PROXIES", ""), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			proxies = append(proxies, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return proxies
}
