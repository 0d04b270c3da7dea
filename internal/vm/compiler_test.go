package vm

import (
	"strings"
	"testing"

	"github.com/monolang/mono/internal/diagnostics"
)

func compileSource(t *testing.T, src string) (*ObjFunction, []*diagnostics.Error) {
	t.Helper()
	return Compile(src, NewHeap(), Options{})
}

func TestCompileValidPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"expression statement", "1 + 2 * 3;"},
		{"var declaration", "var x = 10; print x;"},
		{"uninitialized var", "var x; print x;"},
		{"block scoping", "var a = 1; { var a = 2; print a; } print a;"},
		{"if else", "if (true) { print 1; } else { print 2; }"},
		{"while", "var i = 0; while (i < 3) { i = i + 1; } print i;"},
		{"for", "for (var i = 0; i < 3; i = i + 1) { print i; }"},
		{"for without clauses", "for (;;) { print 1; }"},
		{"function declaration", "fun f(a, b) { return a + b; } print f(1, 2);"},
		{"anonymous function", "var f = fun(x) { return x; }; print f(1);"},
		{"closure capture", "fun outer() { var n = 0; fun inner() { return n; } return inner; }"},
		{"logical operators", "print true and false or 1 < 2;"},
		{"array literal", "var a = [1, 2, 3]; print a[0];"},
		{"array assignment", "var a = [1]; a[0] = 2;"},
		{"table literal", `var t = {"k": 1, other: 2}; print t["k"];`},
		{"trailing commas", `var a = [1, 2,]; var t = {"k": 1,};`},
		{"string escapes", `print "a\nb";`},
		{"comments", "// line\n/* block */ print 1;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, errs := compileSource(t, tt.src)
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if fn == nil {
				t.Fatal("expected a compiled function")
			}
			if fn.Name != "<script>" {
				t.Errorf("top-level function name = %q, want <script>", fn.Name)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"missing semicolon", "print 1", diagnostics.ErrP002},
		{"unexpected token", "var = 1;", diagnostics.ErrP002},
		{"invalid assignment target", "1 + 2 = 3;", diagnostics.ErrP003},
		{"unbalanced paren in params", "fun f( { }", diagnostics.ErrP002},
		{"top-level return", "return 1;", diagnostics.ErrP001},
		{"duplicate local", "{ var a = 1; var a = 2; }", diagnostics.ErrR001},
		{"own initializer", "{ var a = 1; { var a = a; } }", diagnostics.ErrR002},
		{"lexer error surfaces", "var x = @;", diagnostics.ErrL001},
		{"unterminated string", `print "abc`, diagnostics.ErrL001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, errs := compileSource(t, tt.src)
			if fn != nil {
				t.Fatal("errors must not come with a function")
			}
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			found := false
			for _, e := range errs {
				if e.Code == tt.code {
					found = true
				}
			}
			if !found {
				t.Errorf("expected code %s in %v", tt.code, errs)
			}
		})
	}
}

// Panic-mode recovery: independent errors in separate statements are all
// reported in one compile.
func TestCompileReportsMultipleErrors(t *testing.T) {
	src := `
var = 1;
print 2;
var x 3;
fun ( ) {}
`
	fn, errs := compileSource(t, src)
	if fn != nil {
		t.Fatal("expected compilation to fail")
	}
	if len(errs) < 3 {
		t.Fatalf("expected at least 3 errors, got %d: %v", len(errs), errs)
	}

	// Errors arrive in source order.
	for i := 1; i < len(errs); i++ {
		if errs[i].Line < errs[i-1].Line {
			t.Errorf("errors out of order: %v before %v", errs[i-1], errs[i])
		}
	}
}

func TestCompileSuppressesCascades(t *testing.T) {
	// One broken statement should produce one error, not one per token.
	_, errs := compileSource(t, "var = = = = 1;")
	if len(errs) != 1 {
		t.Fatalf("expected 1 error after panic-mode suppression, got %d: %v", len(errs), errs)
	}
}

func TestStrictModeAssignment(t *testing.T) {
	heap := NewHeap()

	if _, errs := Compile("x = 1;", heap, Options{Strict: true}); len(errs) == 0 {
		t.Fatal("strict mode should reject assignment to undeclared variable")
	} else if errs[0].Code != diagnostics.ErrR003 {
		t.Errorf("code = %s, want %s", errs[0].Code, diagnostics.ErrR003)
	}

	if _, errs := Compile("var x; x = 1;", heap, Options{Strict: true}); len(errs) != 0 {
		t.Errorf("declared assignment should pass strict mode: %v", errs)
	}

	if _, errs := Compile("x = 1;", heap, Options{}); len(errs) != 0 {
		t.Errorf("lenient mode defers undeclared assignment to run time: %v", errs)
	}

	// Globals owned by the embedding interpreter are seeded into the
	// compile, so scripts after the first can assign to them.
	seeded := Options{Strict: true, KnownGlobals: []string{"x"}}
	if _, errs := Compile("x = 2;", heap, seeded); len(errs) != 0 {
		t.Errorf("known global should pass strict mode: %v", errs)
	}
	if _, errs := Compile("y = 2;", heap, seeded); len(errs) == 0 {
		t.Error("strict mode should still reject names outside the seed")
	}
}

func TestNestingDepthBound(t *testing.T) {
	deep := strings.Repeat("(", 200) + "1" + strings.Repeat(")", 200)
	_, errs := compileSource(t, "print "+deep+";")
	if len(errs) == 0 {
		t.Fatal("expected nesting depth error")
	}
	if errs[0].Code != diagnostics.ErrP006 {
		t.Errorf("code = %s, want %s", errs[0].Code, diagnostics.ErrP006)
	}

	shallow := strings.Repeat("(", 20) + "1" + strings.Repeat(")", 20)
	if _, errs := compileSource(t, "print "+shallow+";"); len(errs) != 0 {
		t.Errorf("shallow nesting should compile: %v", errs)
	}
}

func TestUpvalueResolution(t *testing.T) {
	src := `
fun outer() {
  var a = 1;
  fun middle() {
    fun inner() {
      return a;
    }
    return inner;
  }
  return middle;
}
`
	fn, errs := compileSource(t, src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	outer := findFunctionConstant(t, fn.Chunk, "outer")
	middle := findFunctionConstant(t, outer.Chunk, "middle")
	inner := findFunctionConstant(t, middle.Chunk, "inner")

	// inner reaches a through middle, so both carry one upvalue.
	if middle.UpvalueCount != 1 {
		t.Errorf("middle upvalues = %d, want 1", middle.UpvalueCount)
	}
	if inner.UpvalueCount != 1 {
		t.Errorf("inner upvalues = %d, want 1", inner.UpvalueCount)
	}
	if outer.UpvalueCount != 0 {
		t.Errorf("outer upvalues = %d, want 0", outer.UpvalueCount)
	}
}

func findFunctionConstant(t *testing.T, chunk *Chunk, name string) *ObjFunction {
	t.Helper()
	for _, c := range chunk.Constants {
		if c.Type == ValObj {
			if fn, ok := c.Obj.(*ObjFunction); ok && fn.Name == name {
				return fn
			}
		}
	}
	t.Fatalf("function constant %q not found", name)
	return nil
}

func TestConstantPoolDeduplication(t *testing.T) {
	fn, errs := compileSource(t, `print "a" + "a" + "a"; print 7 + 7;`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	strs, nums := 0, 0
	for _, c := range fn.Chunk.Constants {
		switch {
		case c.IsString() && c.AsString().Chars == "a":
			strs++
		case c.IsNumber() && c.AsNumber() == 7:
			nums++
		}
	}
	if strs != 1 {
		t.Errorf("string constant duplicated %d times", strs)
	}
	if nums != 1 {
		t.Errorf("number constant duplicated %d times", nums)
	}
}
