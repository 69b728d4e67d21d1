// Package resolve maps a requested version string - a dist-tag, an exact
// version, or a semver range - to a concrete published version.
package resolve

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/a-h/pkggate/npm/apperror"
	"github.com/a-h/pkggate/npm/models"
)

// registryClient is the subset of *registry.Client that resolution needs;
// declared locally so this package doesn't import registry (which already
// imports models) and to keep it trivially testable with a fake.
type registryClient interface {
	GetVersionsAndTags(ctx context.Context, name string) (models.VersionsAndTags, error)
	GetPackageConfig(ctx context.Context, name, version string) (*models.PackageConfig, error)
}

// Result is the outcome of resolving a version.
type Result struct {
	// Version is the concrete, resolved version.
	Version string
	// Redirected is true if Version differs from the version the caller
	// asked for (a dist-tag, range, or otherwise non-canonical string).
	Redirected bool
	Config     models.PackageConfig
}

// Resolve resolves requested against name's published versions and
// dist-tags, per the precedence: exact dist-tag substitution, then exact
// version match, then maximum-satisfying semver range.
func Resolve(ctx context.Context, client registryClient, name, requested string) (Result, error) {
	vt, err := client.GetVersionsAndTags(ctx, name)
	if err != nil {
		return Result{}, apperror.Wrap(apperror.NotFoundPackage, fmt.Sprintf("failed to load versions for %q", name), err)
	}

	candidate := requested
	if tag, ok := vt.Tags[requested]; ok {
		candidate = tag
	}

	resolved, ok := maxSatisfying(candidate, vt.Versions)
	if !ok {
		return Result{}, apperror.New(apperror.NotFoundPackage, fmt.Sprintf("no version of %q satisfies %q", name, requested))
	}

	cfg, err := client.GetPackageConfig(ctx, name, resolved)
	if err != nil {
		return Result{}, apperror.Wrap(apperror.UnableGetConfigForPackage, fmt.Sprintf("failed to load config for %s@%s", name, resolved), err)
	}
	if cfg == nil {
		return Result{}, apperror.New(apperror.UnableGetConfigForPackage, fmt.Sprintf("missing config for %s@%s", name, resolved))
	}

	return Result{
		Version:    resolved,
		Redirected: resolved != requested,
		Config:     *cfg,
	}, nil
}

// maxSatisfying returns candidate itself if it names a published version
// exactly, else the maximum published version satisfying candidate parsed
// as a semver range.
func maxSatisfying(candidate string, versions []string) (string, bool) {
	for _, v := range versions {
		if v == candidate {
			return v, true
		}
	}

	constraint, err := semver.NewConstraint(candidate)
	if err != nil {
		return "", false
	}

	var best *semver.Version
	var bestRaw string
	for _, v := range versions {
		parsed, err := semver.NewVersion(v)
		if err != nil {
			continue
		}
		if !constraint.Check(parsed) {
			continue
		}
		if best == nil || parsed.Compare(best) > 0 {
			best = parsed
			bestRaw = v
		}
	}
	if best == nil {
		return "", false
	}
	return bestRaw, true
}
