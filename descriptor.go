package modhost

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

var (
	codePattern    = regexp.MustCompile(`^[a-z][a-z0-9_-]*(/[a-z][a-z0-9_-]*)+$`)
	versionPattern = regexp.MustCompile(`^(\*|0|[1-9][0-9]*)(\.(\*|0|[1-9][0-9]*)){0,2}$`)
)

// Requirement is one entry of a descriptor's ordered requires list.
// Constraint is a version pattern; any segment may be a wildcard and
// omitted trailing segments match anything ("1.2" accepts "1.2.9").
// An empty constraint accepts every version.
type Requirement struct {
	Code       string `yaml:"code"`
	Constraint string `yaml:"version,omitempty"`
}

// Descriptor is the immutable metadata of one installable module,
// parsed once from its on-disk declaration. Metadata is opaque to the
// core and disclosed only to callers holding the descriptor reference.
type Descriptor struct {
	Code     string
	Version  string
	Author   string
	APIName  string
	Requires []Requirement
	metadata map[string]any
}

type descriptorFile struct {
	Code     string         `yaml:"code"`
	Version  string         `yaml:"version"`
	Author   string         `yaml:"author,omitempty"`
	API      string         `yaml:"api,omitempty"`
	Requires []Requirement  `yaml:"requires,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// ParseDescriptor parses and validates one YAML module declaration.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var df descriptorFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeclarationInvalid, err)
	}
	return newDescriptor(df)
}

func newDescriptor(df descriptorFile) (*Descriptor, error) {
	if !codePattern.MatchString(df.Code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModuleCode, df.Code)
	}
	if !versionPattern.MatchString(df.Version) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, df.Version)
	}
	for _, req := range df.Requires {
		if !codePattern.MatchString(req.Code) {
			return nil, fmt.Errorf("%w: requires %q", ErrInvalidModuleCode, req.Code)
		}
		if req.Constraint != "" && !versionPattern.MatchString(req.Constraint) {
			return nil, fmt.Errorf("%w: %q for %s", ErrInvalidConstraint, req.Constraint, req.Code)
		}
	}
	return &Descriptor{
		Code:     df.Code,
		Version:  df.Version,
		Author:   df.Author,
		APIName:  df.API,
		Requires: df.Requires,
		metadata: df.Metadata,
	}, nil
}

// Vendor returns the leading segment of the module code.
func (d *Descriptor) Vendor() string {
	code := d.Code
	if i := strings.IndexByte(code, '/'); i >= 0 {
		return code[:i]
	}
	return code
}

// Satisfies reports whether the descriptor's version matches the given
// constraint. Wildcard segments and omitted trailing segments match any
// value.
func (d *Descriptor) Satisfies(constraint string) bool {
	return versionSatisfies(d.Version, constraint)
}

func versionSatisfies(version, constraint string) bool {
	if constraint == "" || constraint == "*" {
		return true
	}
	vsegs := strings.Split(version, ".")
	csegs := strings.Split(constraint, ".")
	for i, c := range csegs {
		if c == "*" {
			continue
		}
		if i >= len(vsegs) {
			// A declared version shorter than the constraint matches only
			// when every remaining constraint segment is zero, so "1.4"
			// satisfies "1.4.0" but not "1.4.1".
			if c != "0" {
				return false
			}
			continue
		}
		if vsegs[i] != c && vsegs[i] != "*" {
			return false
		}
	}
	return true
}

// Meta returns a raw metadata value and whether it was declared.
func (d *Descriptor) Meta(key string) (any, bool) {
	v, ok := d.metadata[key]
	return v, ok
}

// MetaString returns a metadata value coerced to a string.
func (d *Descriptor) MetaString(key string) (string, bool) {
	v, err := d.metaAs(key, reflect.TypeOf(""))
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// MetaInt returns a metadata value coerced to an int.
func (d *Descriptor) MetaInt(key string) (int, bool) {
	v, err := d.metaAs(key, reflect.TypeOf(int(0)))
	if err != nil {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

// MetaBool returns a metadata value coerced to a bool.
func (d *Descriptor) MetaBool(key string) (bool, bool) {
	v, err := d.metaAs(key, reflect.TypeOf(false))
	if err != nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (d *Descriptor) metaAs(key string, t reflect.Type) (any, error) {
	raw, ok := d.metadata[key]
	if !ok {
		return nil, fmt.Errorf("metadata key %q not declared", key)
	}
	converted, err := cast.FromType(fmt.Sprintf("%v", raw), t)
	if err != nil {
		return nil, fmt.Errorf("cannot convert metadata %q to %v: %w", key, t, err)
	}
	return converted, nil
}
