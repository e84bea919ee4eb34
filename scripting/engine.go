// Package scripting checks document-level JavaScript before it is
// embedded in the PDF name tree. A script that does not even parse is
// dead weight in the output file; the writer uses an Engine to catch
// that early.
package scripting

// Engine validates JavaScript source.
type Engine interface {
	// Validate returns an error when the named script fails to compile.
	Validate(name, source string) error
}
