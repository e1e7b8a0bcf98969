package collector

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SerializeParams turns params into a deterministic string, keys are sorted.
func SerializeParams(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

// Identifier is the name based (v5, DNS namespace) uuid of the serialized params followed
// by every part, each trimmed and separated by '.'.
func Identifier(params map[string]string, parts ...string) string {
	var name strings.Builder
	name.WriteString(SerializeParams(params))
	for _, p := range parts {
		name.WriteByte('.')
		name.WriteString(strings.TrimSpace(p))
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name.String())).String()
}

// ValidAmount reports whether amount is a plain decimal number.
func ValidAmount(amount string) bool {
	if amount == "" {
		return false
	}
	_, err := decimal.NewFromString(amount)
	return err == nil
}
