// Package pkgname validates npm package names the way the registry itself
// does, plus the gateway's own "not a hash" rule.
package pkgname

import (
	"regexp"
	"strings"

	"github.com/a-h/pkggate/npm/apperror"
)

var hashRe = regexp.MustCompile(`^[a-f0-9]{32}$`)

// validNameRe matches a single (unscoped) name segment: lowercase letters
// and digits, plus hyphens, underscores and dots anywhere but the first
// character.
var validNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

const maxLength = 214

// Validate rejects names that look like a 32-character lowercase-hex hash
// and otherwise applies the registry's package-name rules (length, allowed
// characters, scoped form). Any failure is an *apperror.Error of Kind
// InvalidPackageName.
func Validate(name string) error {
	if hashRe.MatchString(name) {
		return apperror.InvalidPackageNamef(name, "cannot be a hash")
	}

	if name == "" {
		return apperror.InvalidPackageNamef(name, "name length must be greater than zero")
	}
	if len(name) > maxLength {
		return apperror.InvalidPackageNamef(name, "name can no longer contain more than 214 characters")
	}
	if name != strings.ToLower(name) {
		return apperror.InvalidPackageNamef(name, "name can no longer contain capital letters")
	}

	scope, rest, scoped := strings.Cut(strings.TrimPrefix(name, "@"), "/")
	if strings.HasPrefix(name, "@") {
		if !scoped || scope == "" || rest == "" {
			return apperror.InvalidPackageNamef(name, "scoped package name must be in the form @scope/name")
		}
		if !validNameRe.MatchString(scope) {
			return apperror.InvalidPackageNamef(name, "invalid scope")
		}
		if !validNameRe.MatchString(rest) {
			return apperror.InvalidPackageNamef(name, "invalid name")
		}
		return nil
	}

	if strings.ContainsRune(name, '/') {
		return apperror.InvalidPackageNamef(name, "name cannot contain a slash unless scoped")
	}
	if !validNameRe.MatchString(name) {
		return apperror.InvalidPackageNamef(name, "name contains invalid characters")
	}
	return nil
}
