package vm

// callValue dispatches OP_CALL based on callee type.
func (vm *VM) callValue(callee Value, argCount int) error {
	if callee.IsObj() {
		switch fn := callee.Obj.(type) {
		case *ObjClosure:
			return vm.callClosure(fn, argCount)
		case *ObjFunction:
			// Bare functions occur only for zero-upvalue constants; wrap
			// so the frame layout is uniform.
			return vm.callClosure(vm.heap.NewClosure(fn), argCount)
		case *ObjNative:
			return vm.callNative(fn, argCount)
		}
	}
	return vm.runtimeError(TypeError, "can only call functions, got %s", typeName(callee))
}

// callClosure pushes a frame for a compiled function. Arity must match
// exactly: there is no truncation, padding or partial application.
func (vm *VM) callClosure(closure *ObjClosure, argCount int) error {
	fn := closure.Function

	if argCount != fn.Arity {
		name := fn.Name
		if name == "" {
			name = "<anonymous>"
		}
		return vm.runtimeError(ArityError, "%s expects %d arguments, got %d", name, fn.Arity, argCount)
	}

	if vm.frameCount >= MaxFrames {
		return vm.runtimeError(OverflowError, "call stack overflow (depth %d)", vm.frameCount)
	}
	if vm.frameCount >= len(vm.frames) {
		grown := make([]CallFrame, len(vm.frames)*2)
		copy(grown, vm.frames[:vm.frameCount])
		vm.frames = grown
	}

	vm.frames[vm.frameCount] = CallFrame{
		closure: closure,
		ip:      0,
		base:    vm.sp - argCount - 1, // callee slot; args are the frame's first locals
	}
	vm.frameCount++
	vm.frame = &vm.frames[vm.frameCount-1]
	return nil
}

// callNative invokes a host callable. Its arguments are popped along with
// the callee and the result takes their place. A host error surfaces as a
// HostError runtime error carrying the host's message.
func (vm *VM) callNative(native *ObjNative, argCount int) error {
	if argCount != native.Arity {
		return vm.runtimeError(ArityError, "%s expects %d arguments, got %d", native.Name, native.Arity, argCount)
	}

	args := make([]Value, argCount)
	copy(args, vm.stack[vm.sp-argCount:vm.sp])

	result, err := native.Fn(args)
	if err != nil {
		rerr := vm.runtimeError(HostError, "%s: %s", native.Name, err)
		rerr.Cause = err
		return rerr
	}

	vm.sp -= argCount + 1
	// Host results may carry strings the collector already purged from the
	// intern table; canonicalize before they mix with script values.
	vm.push(vm.heap.Intern(result))
	return nil
}
