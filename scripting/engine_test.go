package scripting

import (
	"strings"
	"testing"
)

func TestGojaValidate(t *testing.T) {
	e := NewEngine()
	if err := e.Validate("ok", "var total = 0; for (var i = 0; i < 3; i++) total += i;"); err != nil {
		t.Errorf("valid script rejected: %v", err)
	}
	err := e.Validate("broken", "function (")
	if err == nil {
		t.Fatal("syntax error accepted")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error does not name the script: %v", err)
	}
}

func TestNopEngine(t *testing.T) {
	if err := (NopEngine{}).Validate("x", "not even javascript ]["); err != nil {
		t.Errorf("nop engine returned %v", err)
	}
}
