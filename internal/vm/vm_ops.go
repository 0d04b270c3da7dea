package vm

import "math"

// typeName names a value's runtime type for error messages.
func typeName(v Value) string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBool:
		return "bool"
	case ValNumber:
		return "number"
	case ValObj:
		switch v.Obj.Type() {
		case ObjStringType:
			return "string"
		case ObjFunctionType, ObjClosureType, ObjNativeType:
			return "function"
		case ObjArrayType:
			return "array"
		case ObjTableType:
			return "table"
		default:
			return "object"
		}
	default:
		return "unknown"
	}
}

// addOp implements OP_ADD: numeric addition, or concatenation when both
// operands are strings. The concatenated result goes through the intern
// table like every other string.
func (vm *VM) addOp() error {
	b := vm.peek(0)
	a := vm.peek(1)

	switch {
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(NumberVal(a.AsNumber() + b.AsNumber()))
		return nil
	case a.IsString() && b.IsString():
		vm.pop()
		vm.pop()
		vm.push(ObjVal(vm.heap.NewString(a.AsString().Chars + b.AsString().Chars)))
		return nil
	default:
		return vm.runtimeError(TypeError,
			"operands of '+' must be two numbers or two strings, got %s and %s",
			typeName(a), typeName(b))
	}
}

func (vm *VM) arithmeticOp(op Opcode) error {
	b := vm.peek(0)
	a := vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError(TypeError, "operands of '%s' must be numbers, got %s and %s",
			arithmeticSymbol(op), typeName(a), typeName(b))
	}
	vm.pop()
	vm.pop()

	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case OP_SUB:
		vm.push(NumberVal(x - y))
	case OP_MUL:
		vm.push(NumberVal(x * y))
	case OP_DIV:
		// IEEE-754 semantics: division by zero yields Inf/NaN, not an error.
		vm.push(NumberVal(x / y))
	}
	return nil
}

func (vm *VM) compareOp(op Opcode) error {
	b := vm.peek(0)
	a := vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError(TypeError, "operands of '%s' must be numbers, got %s and %s",
			compareSymbol(op), typeName(a), typeName(b))
	}
	vm.pop()
	vm.pop()

	x, y := a.AsNumber(), b.AsNumber()
	var res bool
	switch op {
	case OP_LT:
		res = x < y
	case OP_LE:
		res = x <= y
	case OP_GT:
		res = x > y
	case OP_GE:
		res = x >= y
	}
	vm.push(BoolVal(res))
	return nil
}

func arithmeticSymbol(op Opcode) string {
	switch op {
	case OP_SUB:
		return "-"
	case OP_MUL:
		return "*"
	case OP_DIV:
		return "/"
	}
	return op.String()
}

func compareSymbol(op Opcode) string {
	switch op {
	case OP_LT:
		return "<"
	case OP_LE:
		return "<="
	case OP_GT:
		return ">"
	case OP_GE:
		return ">="
	}
	return op.String()
}

// indexGet implements OP_GET_INDEX for arrays (number index) and tables
// (string key).
func (vm *VM) indexGet() error {
	index := vm.peek(0)
	container := vm.peek(1)

	if !container.IsObj() {
		return vm.runtimeError(TypeError, "%s is not indexable", typeName(container))
	}

	switch obj := container.Obj.(type) {
	case *ObjArray:
		i, err := vm.arrayIndex(index, len(obj.Elements))
		if err != nil {
			return err
		}
		vm.pop()
		vm.pop()
		vm.push(obj.Elements[i])
		return nil
	case *ObjTable:
		if !index.IsString() {
			return vm.runtimeError(TypeError, "table key must be a string, got %s", typeName(index))
		}
		vm.pop()
		vm.pop()
		if v, ok := obj.Entries[index.AsString()]; ok {
			vm.push(v)
		} else {
			vm.push(NilVal())
		}
		return nil
	default:
		return vm.runtimeError(TypeError, "%s is not indexable", typeName(container))
	}
}

// indexSet implements OP_SET_INDEX. Stack: container, index, value. The
// assigned value stays on the stack as the expression result.
func (vm *VM) indexSet() error {
	value := vm.peek(0)
	index := vm.peek(1)
	container := vm.peek(2)

	if !container.IsObj() {
		return vm.runtimeError(TypeError, "%s is not indexable", typeName(container))
	}

	switch obj := container.Obj.(type) {
	case *ObjArray:
		i, err := vm.arrayIndex(index, len(obj.Elements))
		if err != nil {
			return err
		}
		obj.Elements[i] = value
	case *ObjTable:
		if !index.IsString() {
			return vm.runtimeError(TypeError, "table key must be a string, got %s", typeName(index))
		}
		obj.Entries[index.AsString()] = value
	default:
		return vm.runtimeError(TypeError, "%s is not indexable", typeName(container))
	}

	vm.pop()
	vm.pop()
	vm.pop()
	vm.push(value)
	return nil
}

// arrayIndex validates a numeric index against an array length.
func (vm *VM) arrayIndex(index Value, length int) (int, error) {
	if !index.IsNumber() {
		return 0, vm.runtimeError(TypeError, "array index must be a number, got %s", typeName(index))
	}
	f := index.AsNumber()
	if math.Trunc(f) != f || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, vm.runtimeError(IndexError, "array index must be an integer, got %s", formatNumber(f))
	}
	i := int(f)
	if i < 0 || i >= length {
		return 0, vm.runtimeError(IndexError, "array index %d out of bounds for length %d", i, length)
	}
	return i, nil
}
