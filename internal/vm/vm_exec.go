package vm

import (
	"errors"
	"fmt"
)

var errStackOverflow = errors.New("stack overflow")

// dispatch is the main interpreter loop. One instruction executes
// atomically with respect to the collector: the GC trigger, context poll
// and budget hook all sit between instructions.
func (vm *VM) dispatch() (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, errStackOverflow) {
				result = NilVal()
				err = vm.runtimeError(OverflowError, "value stack overflow")
				return
			}
			panic(r)
		}
	}()

	opsSinceCheck := 0

	for {
		if vm.heap.ShouldCollect() {
			vm.collectGarbage()
		}

		vm.executed++
		if vm.budget != nil {
			if berr := vm.budget(vm.executed); berr != nil {
				rerr := vm.runtimeError(HostError, "execution budget exhausted: %s", berr)
				rerr.Cause = berr
				return NilVal(), rerr
			}
		}
		opsSinceCheck++
		if opsSinceCheck >= checkInterval {
			opsSinceCheck = 0
			if vm.ctx != nil {
				select {
				case <-vm.ctx.Done():
					rerr := vm.runtimeError(HostError, "execution cancelled: %s", vm.ctx.Err())
					rerr.Cause = vm.ctx.Err()
					return NilVal(), rerr
				default:
				}
			}
		}

		op := Opcode(vm.readByte())

		switch op {
		case OP_CONST:
			vm.push(vm.readConstant())

		case OP_NIL:
			vm.push(NilVal())
		case OP_TRUE:
			vm.push(BoolVal(true))
		case OP_FALSE:
			vm.push(BoolVal(false))

		case OP_POP:
			vm.pop()

		case OP_GET_LOCAL:
			slot := int(vm.readByte())
			vm.push(vm.stack[vm.frame.base+1+slot])
		case OP_SET_LOCAL:
			slot := int(vm.readByte())
			vm.stack[vm.frame.base+1+slot] = vm.peek(0)

		case OP_DEFINE_GLOBAL:
			name := vm.readConstant().AsString()
			vm.globals[name] = vm.peek(0)
			vm.pop()
		case OP_GET_GLOBAL:
			name := vm.readConstant().AsString()
			v, ok := vm.globals[name]
			if !ok {
				return NilVal(), vm.runtimeError(UndefinedError, "undefined variable '%s'", name.Chars)
			}
			vm.push(v)
		case OP_SET_GLOBAL:
			name := vm.readConstant().AsString()
			if _, ok := vm.globals[name]; !ok {
				return NilVal(), vm.runtimeError(UndefinedError, "undefined variable '%s'", name.Chars)
			}
			vm.globals[name] = vm.peek(0)

		case OP_GET_UPVALUE:
			idx := int(vm.readByte())
			uv := vm.frame.closure.Upvalues[idx]
			if uv.IsOpen() {
				vm.push(vm.stack[uv.Location])
			} else {
				vm.push(uv.Closed)
			}
		case OP_SET_UPVALUE:
			idx := int(vm.readByte())
			uv := vm.frame.closure.Upvalues[idx]
			if uv.IsOpen() {
				vm.stack[uv.Location] = vm.peek(0)
			} else {
				uv.Closed = vm.peek(0)
			}

		case OP_EQ:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(a.Equals(b)))
		case OP_NE:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(!a.Equals(b)))

		case OP_LT, OP_LE, OP_GT, OP_GE:
			if err := vm.compareOp(op); err != nil {
				return NilVal(), err
			}

		case OP_ADD:
			if err := vm.addOp(); err != nil {
				return NilVal(), err
			}
		case OP_SUB, OP_MUL, OP_DIV:
			if err := vm.arithmeticOp(op); err != nil {
				return NilVal(), err
			}

		case OP_NOT:
			vm.push(BoolVal(!vm.pop().Truthy()))
		case OP_NEG:
			if !vm.peek(0).IsNumber() {
				return NilVal(), vm.runtimeError(TypeError, "operand of '-' must be a number, got %s", typeName(vm.peek(0)))
			}
			vm.push(NumberVal(-vm.pop().AsNumber()))

		case OP_PRINT:
			fmt.Fprintln(vm.output, vm.pop().Inspect())

		case OP_JUMP:
			offset := vm.readU16()
			vm.frame.ip += offset
		case OP_JUMP_IF_FALSE:
			offset := vm.readU16()
			if !vm.peek(0).Truthy() {
				vm.frame.ip += offset
			}
		case OP_LOOP:
			offset := vm.readU16()
			vm.frame.ip -= offset

		case OP_CALL:
			argCount := int(vm.readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return NilVal(), err
			}

		case OP_CLOSURE:
			fn := vm.readConstant().Obj.(*ObjFunction)
			closure := vm.heap.NewClosure(fn)
			vm.push(ObjVal(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte() == 1
				index := int(vm.readByte())
				if isLocal {
					closure.Upvalues[i] = vm.captureUpvalue(vm.frame.base + 1 + index)
				} else {
					closure.Upvalues[i] = vm.frame.closure.Upvalues[index]
				}
			}

		case OP_CLOSE_UPVALUE:
			vm.closeUpvalues(vm.sp - 1)
			vm.pop()

		case OP_RETURN:
			returned := vm.pop()
			frame := vm.frame

			vm.closeUpvalues(frame.base + 1)
			vm.frameCount--
			if vm.frameCount == 0 {
				// Top-level return: the script's terminal value.
				return returned, nil
			}

			// The returned value replaces the callee's entire stack region,
			// including the callee object itself.
			vm.sp = frame.base
			vm.push(returned)
			vm.frame = &vm.frames[vm.frameCount-1]

		case OP_MAKE_ARRAY:
			count := int(vm.readByte())
			elements := make([]Value, count)
			for i := count - 1; i >= 0; i-- {
				elements[i] = vm.pop()
			}
			vm.push(ObjVal(vm.heap.NewArray(elements)))

		case OP_MAKE_TABLE:
			count := int(vm.readByte())
			table := vm.heap.NewTable()
			base := vm.sp - count*2
			for i := 0; i < count; i++ {
				key := vm.stack[base+i*2]
				val := vm.stack[base+i*2+1]
				if !key.IsString() {
					return NilVal(), vm.runtimeError(TypeError, "table key must be a string, got %s", typeName(key))
				}
				table.Entries[key.AsString()] = val
			}
			vm.sp = base
			vm.push(ObjVal(table))

		case OP_GET_INDEX:
			if err := vm.indexGet(); err != nil {
				return NilVal(), err
			}
		case OP_SET_INDEX:
			if err := vm.indexSet(); err != nil {
				return NilVal(), err
			}

		default:
			return NilVal(), vm.runtimeError(TypeError, "unknown opcode %d", op)
		}
	}
}
