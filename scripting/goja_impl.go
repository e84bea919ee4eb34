package scripting

import (
	"fmt"

	"github.com/dop251/goja"
)

// GojaEngine validates scripts by compiling them with the goja
// JavaScript engine. Compilation only; nothing is executed.
type GojaEngine struct{}

func NewEngine() *GojaEngine { return &GojaEngine{} }

func (e *GojaEngine) Validate(name, source string) error {
	if _, err := goja.Compile(name, source, false); err != nil {
		return fmt.Errorf("script %q: %w", name, err)
	}
	return nil
}

// NopEngine accepts every script.
type NopEngine struct{}

func (NopEngine) Validate(string, string) error { return nil }
