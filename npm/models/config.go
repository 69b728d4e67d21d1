package models

import "encoding/json"

// PackageConfig is a single version's npm manifest (package.json), kept as
// an untyped JSON tree since the gateway only ever reads a handful of
// well-known top-level keys out of it.
type PackageConfig struct {
	raw map[string]any
}

// ParsePackageConfig decodes a package.json document.
func ParsePackageConfig(data []byte) (cfg PackageConfig, err error) {
	if err = json.Unmarshal(data, &cfg.raw); err != nil {
		return PackageConfig{}, err
	}
	return cfg, nil
}

// MarshalJSON encodes the config as its underlying JSON object.
func (c PackageConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.raw)
}

// UnmarshalJSON decodes a package.json document into c.
func (c *PackageConfig) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &c.raw)
}

// GetStr returns the string value of a top-level key, and whether it was
// present and a string.
func (c PackageConfig) GetStr(key string) (value string, ok bool) {
	if c.raw == nil {
		return "", false
	}
	v, exists := c.raw[key]
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Dependencies returns "dependencies" merged over "peerDependencies":
// dependencies wins on key conflict, and object values are merged
// recursively rather than replaced wholesale.
func (c PackageConfig) Dependencies() map[string]any {
	peer, _ := c.raw["peerDependencies"].(map[string]any)
	deps, _ := c.raw["dependencies"].(map[string]any)
	return mergeJSON(peer, deps)
}

// mergeJSON merges b over a: keys in b win, nested objects merge
// recursively, and any other value type is simply overwritten.
func mergeJSON(a, b map[string]any) map[string]any {
	if a == nil && b == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		av, exists := out[k]
		if !exists {
			out[k] = bv
			continue
		}
		aObj, aIsObj := av.(map[string]any)
		bObj, bIsObj := bv.(map[string]any)
		if aIsObj && bIsObj {
			out[k] = mergeJSON(aObj, bObj)
			continue
		}
		out[k] = bv
	}
	return out
}
