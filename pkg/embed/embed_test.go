package embed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestEvalBasics(t *testing.T) {
	var out bytes.Buffer
	in := New(WithOutput(&out))

	if _, err := in.Eval(`print "ok";`); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if out.String() != "ok\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestCompileErrorCarriesDiagnostics(t *testing.T) {
	in := New(WithOutput(&bytes.Buffer{}))

	_, err := in.Eval("fun f( { }")
	if err == nil {
		t.Fatal("expected compile error")
	}
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("error type = %T, want *CompileError", err)
	}
	if len(ce.Diags) == 0 {
		t.Fatal("no diagnostics attached")
	}

	var rendered bytes.Buffer
	ce.Render(&rendered)
	if !strings.Contains(rendered.String(), "error[P002]") {
		t.Errorf("rendered diagnostics missing code:\n%s", rendered.String())
	}
	if !strings.Contains(rendered.String(), "^") {
		t.Errorf("rendered diagnostics missing caret:\n%s", rendered.String())
	}
}

func TestScriptReusableAcrossRuns(t *testing.T) {
	var out bytes.Buffer
	in := New(WithOutput(&out))

	s, err := in.Compile("print counter; counter = counter + 1;")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer s.Close()
	in.SetGlobal("counter", Number(0))

	for i := 0; i < 3; i++ {
		if _, err := in.Run(s); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if out.String() != "0\n1\n2\n" {
		t.Errorf("output = %q, want %q", out.String(), "0\n1\n2\n")
	}
}

func TestClosedScriptRejected(t *testing.T) {
	in := New(WithOutput(&bytes.Buffer{}))
	s, err := in.Compile("print 1;")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s.Close()
	if _, err := in.Run(s); err == nil {
		t.Error("running a closed script should fail")
	}
}

func TestScriptBoundToItsInterpreter(t *testing.T) {
	a := New(WithOutput(&bytes.Buffer{}))
	b := New(WithOutput(&bytes.Buffer{}))

	s, err := a.Compile("print 1;")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer s.Close()

	if _, err := b.Run(s); err == nil {
		t.Error("script compiled on one interpreter must not run on another")
	}
}

func TestInterpretersAreIsolated(t *testing.T) {
	a := New(WithOutput(&bytes.Buffer{}))
	b := New(WithOutput(&bytes.Buffer{}))

	if a.ID() == b.ID() {
		t.Error("instance ids must differ")
	}

	if _, err := a.Eval("var shared = 1;"); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if _, ok := b.Globals()["shared"]; ok {
		t.Error("global leaked between interpreter instances")
	}
}

func TestRegisterNative(t *testing.T) {
	var out bytes.Buffer
	in := New(WithOutput(&out))

	in.RegisterNative("clampHundred", 1, func(args []Value) (Value, error) {
		n := args[0].AsNumber()
		if n > 100 {
			n = 100
		}
		return Number(n), nil
	})

	if _, err := in.Eval("print clampHundred(250); print clampHundred(7);"); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if out.String() != "100\n7\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestNativeErrorSurfacesAsRuntimeError(t *testing.T) {
	in := New(WithOutput(&bytes.Buffer{}))
	sentinel := errors.New("backend offline")
	in.RegisterNative("fetch", 0, func(args []Value) (Value, error) {
		return Nil(), sentinel
	})

	_, err := in.Eval("fetch();")
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("error type = %T, want *RuntimeError", err)
	}
	if !errors.Is(err, sentinel) {
		t.Error("host error lost from the chain")
	}
}

func TestStrictOption(t *testing.T) {
	in := New(WithOutput(&bytes.Buffer{}), WithStrict())
	var ce *CompileError
	if _, err := in.Eval("undeclared = 1;"); !errors.As(err, &ce) {
		t.Errorf("strict interpreter should reject at compile time, got %T", err)
	}

	lenient := New(WithOutput(&bytes.Buffer{}))
	var re *RuntimeError
	if _, err := lenient.Eval("undeclared = 1;"); !errors.As(err, &re) {
		t.Errorf("lenient mode should fail at run time, got %T", err)
	}
}

// A strict interpreter runs many scripts over its lifetime; globals from
// earlier scripts, SetGlobal and RegisterNative are all assignable later.
func TestStrictAcceptsKnownGlobals(t *testing.T) {
	var out bytes.Buffer
	in := New(WithOutput(&out), WithStrict())

	if _, err := in.Eval("var x = 1;"); err != nil {
		t.Fatalf("declaring script failed: %v", err)
	}
	if _, err := in.Eval("x = x + 2; print x;"); err != nil {
		t.Fatalf("assignment to earlier script's global rejected: %v", err)
	}
	if out.String() != "3\n" {
		t.Errorf("output = %q, want %q", out.String(), "3\n")
	}

	in.SetGlobal("fromHost", Number(5))
	if _, err := in.Eval("fromHost = fromHost + 1;"); err != nil {
		t.Errorf("assignment to host global rejected: %v", err)
	}

	in.RegisterNative("ident", 1, func(args []Value) (Value, error) {
		return args[0], nil
	})
	if _, err := in.Eval("ident = nil;"); err != nil {
		t.Errorf("assignment to registered native rejected: %v", err)
	}

	var ce *CompileError
	if _, err := in.Eval("neverDeclared = 1;"); !errors.As(err, &ce) {
		t.Errorf("truly undeclared name accepted, got %T", err)
	}
}

// Strings only the host holds are not GC roots, so a collection can detach
// them from the intern table. Handing them back through SetGlobal must keep
// content equality working against fresh literals.
func TestHostHeldStringStaysInterned(t *testing.T) {
	var out bytes.Buffer
	in := New(WithOutput(&out))
	held := in.String("sentinel-content")

	// Churn enough garbage to force several collection cycles while held
	// is unreachable from the interpreter's point of view.
	_, err := in.Eval(`
var acc = "";
for (var i = 0; i < 2000; i = i + 1) {
  acc = acc + "block of text to inflate allocation ";
  if (i > 100) { acc = ""; }
}
`)
	if err != nil {
		t.Fatalf("churn script failed: %v", err)
	}

	in.SetGlobal("g", held)
	if _, err := in.Eval(`print g == "sentinel-content";`); err != nil {
		t.Fatalf("comparison script failed: %v", err)
	}
	if out.String() != "true\n" {
		t.Errorf("output = %q, want %q", out.String(), "true\n")
	}

	// The same guarantee holds for strings coming back from native calls.
	in.RegisterNative("sentinel", 0, func([]Value) (Value, error) {
		return held, nil
	})
	out.Reset()
	if _, err := in.Eval(`print sentinel() == "sentinel-content";`); err != nil {
		t.Fatalf("native comparison script failed: %v", err)
	}
	if out.String() != "true\n" {
		t.Errorf("native result output = %q, want %q", out.String(), "true\n")
	}
}

func TestBudgetOption(t *testing.T) {
	limit := errors.New("over budget")
	in := New(WithOutput(&bytes.Buffer{}), WithBudget(func(executed uint64) error {
		if executed > 5_000 {
			return limit
		}
		return nil
	}))

	_, err := in.Eval("while (true) { 1 + 1; }")
	if !errors.Is(err, limit) {
		t.Errorf("err = %v, want budget error", err)
	}
}

func TestContextOption(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := New(WithOutput(&bytes.Buffer{}), WithContext(ctx))

	_, err := in.Eval("while (true) { 1 + 1; }")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDisassembleListsNestedFunctions(t *testing.T) {
	in := New(WithOutput(&bytes.Buffer{}))
	s, err := in.Compile("fun f() { fun g() { return 1; } return g; }")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer s.Close()

	var out bytes.Buffer
	s.Disassemble(&out)
	listing := out.String()
	for _, want := range []string{"== <script> ==", "== f ==", "== g =="} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	in := New(WithOutput(&bytes.Buffer{}))

	v, err := in.ToValue(map[string]any{
		"name":   "mono",
		"count":  3,
		"ratio":  0.5,
		"flags":  []any{true, false},
		"nested": map[string]any{"k": "v"},
	})
	if err != nil {
		t.Fatalf("ToValue: %v", err)
	}

	back, err := FromValue(v)
	if err != nil {
		t.Fatalf("FromValue: %v", err)
	}
	m, ok := back.(map[string]any)
	if !ok {
		t.Fatalf("round trip type = %T, want map", back)
	}
	if m["name"] != "mono" || m["count"] != 3.0 || m["ratio"] != 0.5 {
		t.Errorf("scalars mangled: %v", m)
	}
	flags, ok := m["flags"].([]any)
	if !ok || len(flags) != 2 || flags[0] != true || flags[1] != false {
		t.Errorf("slice mangled: %v", m["flags"])
	}
	nested, ok := m["nested"].(map[string]any)
	if !ok || nested["k"] != "v" {
		t.Errorf("nested map mangled: %v", m["nested"])
	}
}

func TestMarshalledValuesVisibleInScripts(t *testing.T) {
	var out bytes.Buffer
	in := New(WithOutput(&out))

	cfg, err := in.ToValue(map[string]any{"limit": 10})
	if err != nil {
		t.Fatalf("ToValue: %v", err)
	}
	in.SetGlobal("config", cfg)

	if _, err := in.Eval(`print config["limit"] * 2;`); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if out.String() != "20\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestMarshalRejectsUnsupported(t *testing.T) {
	in := New(WithOutput(&bytes.Buffer{}))
	if _, err := in.ToValue(make(chan int)); err == nil {
		t.Error("channels should not convert")
	}
	if _, err := in.ToValue(map[int]string{1: "x"}); err == nil {
		t.Error("non-string map keys should not convert")
	}
}

// Fixture harness: every case in testdata/scripts.yaml runs on a fresh
// interpreter and asserts either output or a failure class.

type fixtureCase struct {
	Name         string `yaml:"name"`
	Source       string `yaml:"source"`
	Output       string `yaml:"output"`
	CompileError string `yaml:"compile_error"`
	RuntimeError string `yaml:"runtime_error"`
}

type fixtureFile struct {
	Cases []fixtureCase `yaml:"cases"`
}

func TestScriptFixtures(t *testing.T) {
	raw, err := os.ReadFile("testdata/scripts.yaml")
	if err != nil {
		t.Fatalf("reading fixtures: %v", err)
	}
	var file fixtureFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		t.Fatalf("parsing fixtures: %v", err)
	}
	if len(file.Cases) == 0 {
		t.Fatal("fixture file is empty")
	}

	for _, fc := range file.Cases {
		t.Run(fc.Name, func(t *testing.T) {
			var out bytes.Buffer
			in := New(WithOutput(&out))
			_, err := in.Eval(fc.Source)

			switch {
			case fc.CompileError != "":
				var ce *CompileError
				if !errors.As(err, &ce) {
					t.Fatalf("expected compile error, got %v", err)
				}
				found := false
				for _, d := range ce.Diags {
					if d.Code == fc.CompileError {
						found = true
					}
				}
				if !found {
					t.Errorf("expected code %s in %v", fc.CompileError, ce.Diags)
				}

			case fc.RuntimeError != "":
				var re *RuntimeError
				if !errors.As(err, &re) {
					t.Fatalf("expected runtime error, got %v", err)
				}
				if re.Kind.String() != fc.RuntimeError {
					t.Errorf("kind = %s, want %s", re.Kind, fc.RuntimeError)
				}

			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if out.String() != fc.Output {
					t.Errorf("output = %q, want %q", out.String(), fc.Output)
				}
			}
		})
	}
}

func ExampleInterp_Eval() {
	in := New(WithOutput(os.Stdout))
	in.RegisterNative("double", 1, func(args []Value) (Value, error) {
		return Number(args[0].AsNumber() * 2), nil
	})
	if _, err := in.Eval("print double(21);"); err != nil {
		fmt.Println(err)
	}
	// Output: 42
}
