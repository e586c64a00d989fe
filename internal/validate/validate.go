// Package validate checks user input before it reaches a transport.
package validate

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/ownding/headscale-console/internal/headscale"
)

// NameRe matches user, namespace and display names accepted by the console.
var NameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var numericRe = regexp.MustCompile(`^\d+$`)

// Name trims value and checks it against NameRe. Purely numeric names
// collide with numeric ids upstream and are rejected unless allowNumeric
// is set. Failures are *headscale.ValidationError.
func Name(field, value string, allowNumeric bool) (string, error) {
	value, err := headscale.RequireNonBlank(field, value)
	if err != nil {
		return "", err
	}
	if !allowNumeric && numericRe.MatchString(value) {
		return "", &headscale.ValidationError{Field: field, Message: "cannot be purely numeric, include at least one letter"}
	}
	if !NameRe.MatchString(value) {
		return "", &headscale.ValidationError{Field: field, Message: "may only contain letters, digits, underscores and hyphens"}
	}
	return value, nil
}

// HTTPURL ensures the URL uses http or https scheme and has a non-empty host.
func HTTPURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		// OK
	case "":
		return fmt.Errorf("URL missing scheme: %s", rawURL)
	default:
		return fmt.Errorf("URL scheme %q not allowed (only http/https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL missing host: %s", rawURL)
	}
	return nil
}
