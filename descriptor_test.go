package modhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	d, err := ParseDescriptor([]byte(`
code: acme/catalog
version: "1.4.2"
author: Acme Corp
api: catalog
requires:
  - code: acme/core
    version: "1"
  - code: acme/search
metadata:
  weight: 10
  beta: true
  region: eu-west
`))
	require.NoError(t, err)

	assert.Equal(t, "acme/catalog", d.Code)
	assert.Equal(t, "acme", d.Vendor())
	assert.Equal(t, "catalog", d.APIName)
	require.Len(t, d.Requires, 2)
	assert.Equal(t, "acme/core", d.Requires[0].Code)
	assert.Equal(t, "1", d.Requires[0].Constraint)
	assert.Empty(t, d.Requires[1].Constraint)
}

func TestParseDescriptorRejectsBadInput(t *testing.T) {
	testcases := []struct {
		name string
		yaml string
		want error
	}{
		{"missing vendor segment", "code: catalog\nversion: \"1.0\"", ErrInvalidModuleCode},
		{"uppercase code", "code: Acme/catalog\nversion: \"1.0\"", ErrInvalidModuleCode},
		{"empty version", "code: acme/catalog\nversion: \"\"", ErrInvalidVersion},
		{"leading zero version", "code: acme/catalog\nversion: \"01.2\"", ErrInvalidVersion},
		{"bad requires code", "code: acme/catalog\nversion: \"1\"\nrequires:\n  - code: \"no spaces\"", ErrInvalidModuleCode},
		{"bad constraint", "code: acme/catalog\nversion: \"1\"\nrequires:\n  - code: acme/core\n    version: \"1.x\"", ErrInvalidConstraint},
		{"not yaml", "{{{", ErrDeclarationInvalid},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDescriptor([]byte(tc.yaml))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVersionSatisfies(t *testing.T) {
	testcases := []struct {
		version    string
		constraint string
		want       bool
	}{
		{"1.4.2", "", true},
		{"1.4.2", "*", true},
		{"1.4.2", "1", true},
		{"1.4.2", "1.4", true},
		{"1.4.2", "1.4.2", true},
		{"1.4.2", "1.*.2", true},
		{"1.4.2", "2", false},
		{"1.4.2", "1.5", false},
		{"1.4", "1.4.0", true},
		{"1.4", "1.4.1", false},
		{"2.0.0", "*.0", true},
	}

	for _, tc := range testcases {
		got := versionSatisfies(tc.version, tc.constraint)
		assert.Equal(t, tc.want, got, "%s vs %s", tc.version, tc.constraint)
	}
}

func TestDescriptorMetadataAccessors(t *testing.T) {
	d, err := ParseDescriptor([]byte(`
code: acme/catalog
version: "1"
metadata:
  weight: "10"
  beta: true
  region: eu-west
`))
	require.NoError(t, err)

	n, ok := d.MetaInt("weight")
	require.True(t, ok)
	assert.Equal(t, 10, n)

	b, ok := d.MetaBool("beta")
	require.True(t, ok)
	assert.True(t, b)

	s, ok := d.MetaString("region")
	require.True(t, ok)
	assert.Equal(t, "eu-west", s)

	_, ok = d.Meta("absent")
	assert.False(t, ok)
	_, ok = d.MetaInt("region")
	assert.False(t, ok)
}
