package auth

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/repo-dashboard/internal/errors"
)

// ValidateRedirect accepts only local absolute paths. Scheme-relative ("//host") and
// backslash variants are rejected with ErrInvalidRedirect.
func ValidateRedirect(target string) error {
	if target == "" || !strings.HasPrefix(target, "/") {
		return errors.Wrapf(errors.ErrInvalidRedirect, "%q is not an absolute path", target)
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") || strings.ContainsAny(target, "\r\n") {
		return errors.Wrapf(errors.ErrInvalidRedirect, "%q", target)
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return errors.Wrapf(errors.ErrInvalidRedirect, "%q is not local", target)
	}
	return nil
}

// SafeRedirect returns target when it passes ValidateRedirect, otherwise "/".
func SafeRedirect(target string) string {
	if err := ValidateRedirect(target); err != nil {
		return "/"
	}
	return target
}
