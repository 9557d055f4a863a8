package modhost

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DeclarationFileName is the per-module declaration file looked up by
// the scanner.
const DeclarationFileName = "module.yaml"

// Declaration is one scanned module declaration: the parsed descriptor
// plus any routes and scripts declared directly in the file. Declared
// routes are registered before the controller's Init hook runs, so
// declaration-only modules (no Go controller) still contribute to the
// routable surface.
type Declaration struct {
	Descriptor *Descriptor
	// Dir is the module's base location on disk, handed to the
	// controller loader as the handler namespace root.
	Dir string

	routes  *yaml.Node
	scripts map[string]string
}

type declarationFile struct {
	descriptorFile `yaml:",inline"`
	Routes         yaml.Node         `yaml:"routes,omitempty"`
	Scripts        map[string]string `yaml:"scripts,omitempty"`
}

// ParseDeclaration parses one module.yaml document.
func ParseDeclaration(data []byte) (*Declaration, error) {
	var df declarationFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeclarationInvalid, err)
	}
	desc, err := newDescriptor(df.descriptorFile)
	if err != nil {
		return nil, err
	}
	decl := &Declaration{Descriptor: desc, scripts: df.Scripts}
	if !df.Routes.IsZero() {
		routes := df.Routes
		decl.routes = &routes
	}
	return decl, nil
}

// ScanDeclarations walks a directory tree for module.yaml files and
// parses each into a Declaration. Scan order is the deterministic
// lexical walk order. Invalid declarations do not abort the scan; they
// are reported in the joined error while valid siblings are returned,
// matching the module-level failure discipline of the lifecycle.
func ScanDeclarations(root string) ([]*Declaration, error) {
	var decls []*Declaration
	var problems []error

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != DeclarationFileName {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			problems = append(problems, fmt.Errorf("read %s: %w", path, err))
			return nil
		}
		decl, err := ParseDeclaration(data)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		decl.Dir = filepath.Dir(path)
		decls = append(decls, decl)
		return nil
	})
	if walkErr != nil {
		return decls, fmt.Errorf("scan %s: %w", root, walkErr)
	}
	return decls, errors.Join(problems...)
}
