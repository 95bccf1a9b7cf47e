// Package cueschema loads a schema catalog and extension definitions from
// CUE files.
//
// A schema document has two top-level structs:
//
//	type: Order: {
//		kind: "entity"                 // entity | abstract | embedded
//		visibility: #"self.Customer.Region == "EU""#
//		properties: {
//			Number: type: "string"
//			Total: {type: "decimal", format: "C2", unit: "EUR"}
//			Customer: {type: "Customer", lite: true}
//			Lines: {type: "OrderLine", collection: "mlist", ordered: true}
//		}
//	}
//	extension: Order: TotalWithTax: {expression: "self.Total * 1.21", format: "C2"}
//
// Expressions and visibility predicates are CEL over "self". Field order
// in the CUE source is the declaration order of the catalog.
package cueschema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/qtoken/internal/extension"
	"github.com/roach88/qtoken/internal/schema"
)

// Error codes shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeInvalidKind       = "E101" // Unknown type kind
	ErrCodeUnknownType       = "E102" // Property or extension refers to an undeclared type
	ErrCodeInvalidProperty   = "E103" // Property rejected by the catalog
	ErrCodeInvalidExpression = "E104" // CEL expression does not compile
	ErrCodeInvalidExtension  = "E105" // Extension rejected by the registry
)

// LoadError is a schema document that cannot be loaded.
type LoadError struct {
	Code    string
	Field   string // CUE path of the offending value, if known
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// IsLoadError reports whether err is a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Result is a loaded schema. Catalog and Extensions are frozen.
type Result struct {
	Catalog    *schema.Catalog
	Extensions *extension.Registry
	FileCount  int
}

// LoadDir loads every .cue file of dir as one CUE instance.
func LoadDir(dir string) (*Result, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, cueError(ErrCodeBuildFailed, err)
	}

	res, err := Compile(value)
	if err != nil {
		return nil, err
	}
	res.FileCount = len(files)
	return res, nil
}

// LoadString compiles a single CUE document.
func LoadString(src string) (*Result, error) {
	value := cuecontext.New().CompileString(src)
	if err := value.Err(); err != nil {
		return nil, cueError(ErrCodeBuildFailed, err)
	}
	return Compile(value)
}

// FindCUEFiles walks dir and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// cueError converts a CUE error into a LoadError positioned at the first
// reported error.
func cueError(code string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		le.Pos = pos[0]
	}
	return le
}

// lookup returns the field at path of v, or a zero Value.
func lookup(v cue.Value, path string) cue.Value {
	return v.LookupPath(cue.ParsePath(path))
}
