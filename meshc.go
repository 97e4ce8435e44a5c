// Package meshc stages mesh index-conversion tables into block-local
// storage for mesh-for kernels.
//
// Mesh-for tasks repeatedly convert patch-local element indices into
// global ones by reading a table in global memory. meshc copies the
// active slice of each selected table into the group's block-local
// storage once per group and redirects the conversions to that copy.
//
// Example usage:
//
//	prog, err := desc.Decode(f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := meshc.Compile(prog.Kernel, meshc.DefaultOptions()); err != nil {
//	    log.Fatal(err)
//	}
//	ir.Fprint(os.Stdout, prog.Kernel)
package meshc

import (
	"fmt"
	"io"

	"github.com/gogpu/meshc/desc"
	"github.com/gogpu/meshc/ir"
	"github.com/gogpu/meshc/transform"
)

// CompileOptions configures compilation.
type CompileOptions struct {
	// Validate enables IR validation before and after the transform
	Validate bool

	// Transform configures the localization pass
	Transform transform.Options
}

// DefaultOptions returns sensible default options.
func DefaultOptions() CompileOptions {
	return CompileOptions{
		Validate:  true,
		Transform: transform.DefaultOptions(),
	}
}

// Compile localizes the index mappings of root in place.
//
// The compilation pipeline is:
//  1. Validate the split IR (if enabled)
//  2. Localize index mappings and type check
//  3. Validate the transformed IR (if enabled)
func Compile(root ir.Node, opts CompileOptions) error {
	if opts.Validate {
		if err := validate(root); err != nil {
			return fmt.Errorf("input validation: %w", err)
		}
	}

	if err := transform.MakeMeshIndexMappingLocal(root, opts.Transform); err != nil {
		return fmt.Errorf("localization error: %w", err)
	}

	if opts.Validate {
		if err := validate(root); err != nil {
			return fmt.Errorf("output validation: %w", err)
		}
	}
	return nil
}

// CompileDescription decodes a JSON kernel description and compiles it.
func CompileDescription(r io.Reader, opts CompileOptions) (*desc.Program, error) {
	prog, err := desc.Decode(r)
	if err != nil {
		return nil, err
	}
	if err := Compile(prog.Kernel, opts); err != nil {
		return nil, err
	}
	return prog, nil
}

// Validate validates an IR tree.
//
// Validation checks include:
//   - Reference validity (all operands point to live statements)
//   - Ownership (every statement is owned by exactly one block)
//   - Ordering (operands are defined before use)
//   - Block-local slot layout
//
// Returns a slice of validation errors. If the slice is empty, validation passed.
func Validate(root ir.Node) ([]ir.ValidationError, error) {
	return ir.Validate(root)
}

func validate(root ir.Node) error {
	validationErrors, err := ir.Validate(root)
	if err != nil {
		return err
	}
	if len(validationErrors) > 0 {
		return fmt.Errorf("validation failed: %w", &validationErrors[0])
	}
	return nil
}
