// Package rewrite parses a JavaScript module and rewrites every import/export
// specifier into an absolute gateway URL pinned to a dependency version,
// using esbuild's resolver hook rather than a hand-rolled AST walk.
package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/a-h/pkggate/npm/apperror"
)

// DefaultOrigin is the compile-time default ORIGIN used when rewriting bare
// specifiers, overridable per gateway instance.
const DefaultOrigin = "https://www.unpkg-compatible-gateway.example"

var absoluteURLRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
var bareSpecifierRe = regexp.MustCompile(`^((?:@[^/]+/)?[^/]+)(/.*)?$`)

// Rewrite parses source as an ES module and rewrites the specifier of every
// static import, dynamic import(), "export * from", and "export { ... } from"
// into an absolute URL rooted at origin, consulting dependencies to pin bare
// specifiers to a version. It is pure: identical input always produces
// identical output.
func Rewrite(source []byte, origin string, dependencies map[string]any) (string, error) {
	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   string(source),
			Loader:     api.LoaderJS,
			ResolveDir: ".",
		},
		Bundle:   true,
		Write:    false,
		Format:   api.FormatESModule,
		Platform: api.PlatformBrowser,
		LogLevel: api.LogLevelSilent,
		Plugins: []api.Plugin{
			specifierRewritePlugin(origin, dependencies),
		},
	})

	if len(result.Errors) > 0 {
		msgs := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			msgs[i] = e.Text
		}
		return "", apperror.Wrap(apperror.UnableGenerateModule, "failed to rewrite module", fmt.Errorf("%s", strings.Join(msgs, "; ")))
	}
	if len(result.OutputFiles) == 0 {
		return "", apperror.New(apperror.UnableGenerateModule, "rewrite produced no output")
	}
	return string(result.OutputFiles[0].Contents), nil
}

func specifierRewritePlugin(origin string, dependencies map[string]any) api.Plugin {
	return api.Plugin{
		Name: "specifier-rewrite",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				// The entry document itself (the Stdin contents) is resolved
				// once with an empty Importer; let esbuild handle it normally.
				if args.Importer == "" && args.Kind == api.ResolveEntryPoint {
					return api.OnResolveResult{}, nil
				}
				return api.OnResolveResult{
					Path:     RewriteSpecifier(args.Path, origin, dependencies),
					External: true,
				}, nil
			})
		},
	}
}

// RewriteSpecifier applies the rewrite rule to a single specifier string.
// Malformed specifiers are returned unchanged.
func RewriteSpecifier(spec, origin string, dependencies map[string]any) string {
	if absoluteURLRe.MatchString(spec) || strings.HasPrefix(spec, "//") {
		return spec
	}

	if !strings.HasPrefix(spec, ".") && !strings.HasPrefix(spec, "/") {
		m := bareSpecifierRe.FindStringSubmatch(spec)
		if m == nil {
			return spec
		}
		pkg, subpath := m[1], m[2]
		version := "latest"
		if v, ok := dependencies[pkg]; ok {
			if s, ok := v.(string); ok && s != "" {
				version = s
			}
		}
		return fmt.Sprintf("%s/%s@%s%s?module", origin, pkg, version, subpath)
	}

	return spec + "?module"
}
