// Package phone canonicalizes raw phone input into a domain.PhoneKey.
package phone

import (
	"regexp"
	"strings"

	"github.com/lead-otp-gateway/internal/domain"
)

// CountryCode is the international prefix stripped from incoming numbers.
const CountryCode = "91"

// nationalLen is the length of an Indian national subscriber number.
const nationalLen = 10

var mobileRe = regexp.MustCompile(`^[6-9][0-9]{9}$`)

// Normalize strips formatting characters and the international prefix from raw,
// returning false when nothing usable remains. It does not validate the format.
func Normalize(raw string) (domain.PhoneKey, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if d == "" {
		return "", false
	}

	switch {
	case len(d) == nationalLen+4 && strings.HasPrefix(d, "00"+CountryCode):
		d = d[4:]
	case len(d) == nationalLen+2 && strings.HasPrefix(d, CountryCode):
		d = d[2:]
	case len(d) == nationalLen+1 && d[0] == '0':
		// trunk prefix
		d = d[1:]
	}
	return domain.PhoneKey(d), true
}

// IsMobile reports whether key matches the national mobile pattern:
// ten digits with a leading 6, 7, 8 or 9.
func IsMobile(key domain.PhoneKey) bool {
	return mobileRe.MatchString(string(key))
}

// International renders key in E.164 form for providers that need it.
func International(key domain.PhoneKey) string {
	return "+" + CountryCode + string(key)
}
