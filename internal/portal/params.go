// Package portal extracts and validates captive-portal redirect parameters.
// Hotspot vendors duplicate parameters and leave unexpanded template
// placeholders in the query string, so for each name we keep the last value
// that passes validation.
package portal

import (
	"net"
	"net/url"
	"strings"
)

// RedirectParams are the usable values recovered from a captive-portal
// redirect query string.
type RedirectParams struct {
	ClientMAC   string
	APMAC       string
	LoginURL    string
	ContinueURL string
	GatewayIP   string
}

// Parameter aliases used by the vendors we see in the field.
var (
	clientMACKeys   = []string{"client_mac", "clientMac", "mac", "id"}
	apMACKeys       = []string{"ap_mac", "apMac", "called", "node_mac"}
	loginURLKeys    = []string{"login_url", "loginUrl", "link-login-only", "link_login_only"}
	continueURLKeys = []string{"continue_url", "continueUrl", "dst", "link-orig", "userurl"}
	gatewayKeys     = []string{"gateway_ip", "gw_address", "uamip"}
)

// ParseRedirect recovers redirect parameters from a query string.
func ParseRedirect(query url.Values) RedirectParams {
	return RedirectParams{
		ClientMAC:   normalizedPick(query, clientMACKeys, ValidMAC),
		APMAC:       normalizedPick(query, apMACKeys, ValidMAC),
		LoginURL:    pick(query, loginURLKeys, ValidURL),
		ContinueURL: pick(query, continueURLKeys, ValidURL),
		GatewayIP:   pick(query, gatewayKeys, ValidIP),
	}
}

// pick returns the last non-placeholder, validator-passing value across the
// given parameter names.
func pick(query url.Values, keys []string, valid func(string) bool) string {
	picked := ""
	for _, key := range keys {
		for _, v := range query[key] {
			v = strings.TrimSpace(v)
			if v == "" || IsPlaceholder(v) || !valid(v) {
				continue
			}
			picked = v
		}
	}
	return picked
}

func normalizedPick(query url.Values, keys []string, valid func(string) bool) string {
	v := pick(query, keys, valid)
	if v == "" {
		return ""
	}
	mac, _ := NormalizeMAC(v)
	return mac
}

// IsPlaceholder reports whether the value is an unexpanded vendor template
// such as "$(mac)", "%CLIENT_MAC%" or "{{ap_mac}}".
func IsPlaceholder(s string) bool {
	if strings.HasPrefix(s, "$(") || strings.HasPrefix(s, "${") {
		return true
	}
	if strings.HasPrefix(s, "%") && strings.HasSuffix(s, "%") {
		return true
	}
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return true
	}
	return false
}

// NormalizeMAC converts any accepted MAC spelling to uppercase colon form.
func NormalizeMAC(s string) (string, bool) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil || len(hw) != 6 {
		return "", false
	}
	return strings.ToUpper(strings.ReplaceAll(hw.String(), "-", ":")), true
}

// ValidMAC reports whether s parses as a 48-bit hardware address.
func ValidMAC(s string) bool {
	_, ok := NormalizeMAC(s)
	return ok
}

// ValidURL reports whether s is an absolute http(s) URL.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidIP reports whether s is a literal IP address.
func ValidIP(s string) bool {
	return net.ParseIP(s) != nil
}
