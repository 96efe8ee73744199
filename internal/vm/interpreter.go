package vm

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Interpreter is the fetch-decode-execute loop of §4.4: one per Program,
// sharing its Stack and Heap. Grounded on the teacher's LightVM.Execute
// switch-dispatch loop (virtual_machine.go), generalized from a flat byte
// program to a frame-relative register machine.
type Interpreter struct {
	prog   *Program
	stack  *Stack
	heap   *Heap
	logger *logrus.Logger

	output []string
}

func NewInterpreter(p *Program, logger *logrus.Logger) *Interpreter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Interpreter{prog: p, stack: p.stack, heap: p.Heap, logger: logger}
}

// execLoop runs f's instructions from pc 0 against the frame the caller has
// already opened on the stack (via Stack.OpenFrame), until Return, Stop, or
// falling off the end (equivalent to Stop, per §4.4's terminal states).
// returned reports whether a Return instruction produced retWord; retWord
// is zero when the frame stopped without a value.
func (it *Interpreter) execLoop(f *Frame) (retWord Word, returned bool, err error) {
	code := f.Code
	pc := 0
	for pc < len(code) {
		ins := code[pc]
		switch ins.Op {

		case OpNop:
			pc++

		// --- Load/store globals (§4.4 group 1) ---
		case OpLoadGlobalObj:
			slot := int(ins.B)
			t := it.prog.Global.Symbols[slot].Type
			it.stack.WriteRegister(int16(ins.A), it.stack.GlobalRead(slot), t)
			pc++
		case OpLoadGlobalIntern:
			it.stack.writeRegisterRaw(int16(ins.A), it.stack.GlobalRead(int(ins.B)))
			pc++
		case OpStoreGlobalObj:
			slot := int(ins.A)
			t := it.prog.Global.Symbols[slot].Type
			it.stack.GlobalWrite(slot, it.stack.ReadRegister(ins.B), t)
			pc++
		case OpStoreGlobalIntern:
			it.stack.globalWriteRaw(int(ins.A), it.stack.ReadRegister(ins.B))
			pc++

		// --- Local copy (§4.4 group 2) ---
		case OpStoreLocalIntern:
			it.stack.writeRegisterRaw(int16(ins.A), it.stack.ReadRegister(ins.B))
			pc++
		case OpStoreLocalObj:
			it.stack.WriteRegister(ins.B, it.stack.ReadRegister(ins.C), TypeID(ins.A))
			pc++

		// --- Member access (§4.4 group 3) ---
		case OpGetStructMember:
			s := structOf(it.stack.ReadRegister(ins.B))
			idx := int(ins.C)
			it.stack.WriteRegister(int16(ins.A), s.Fields[idx], s.Layout.Elems[idx])
			pc++

		// --- Element lookup (§4.4 group 4) ---
		case OpLookupString:
			coll := it.stack.ReadRegister(ins.B)
			i := int(it.stack.ReadRegister(ins.C).Int())
			ba := stringOf(coll)
			if i < 0 || i >= len(ba.Bytes) {
				return Word{}, false, NewRuntimeError("index_out_of_range", "string index %d out of range [0,%d)", i, len(ba.Bytes))
			}
			it.stack.WriteRegister(int16(ins.A), it.heap.AllocString(ba.Bytes[i:i+1]), it.heap.interner.IDString)
			pc++
		case OpLookupJson:
			coll := it.stack.ReadRegister(ins.B)
			j := jsonOf(coll)
			var result *JSONVal
			switch j.Kind {
			case JSONKindObject:
				key := stringOf(it.stack.ReadRegister(ins.C)).String()
				v, ok := j.field(key)
				if !ok {
					return Word{}, false, NewRuntimeError("key_not_found", "json object has no key %q", key)
				}
				result = v
			case JSONKindArray:
				i := int(it.stack.ReadRegister(ins.C).Int())
				if i < 0 || i >= len(j.Arr) {
					return Word{}, false, NewRuntimeError("index_out_of_range", "json array index %d out of range [0,%d)", i, len(j.Arr))
				}
				result = j.Arr[i]
			default:
				typeMismatch("lookup_json: node kind %v is not indexable", j.Kind)
			}
			it.stack.WriteRegister(int16(ins.A), it.heap.AllocJSON(result), it.heap.interner.IDJSON)
			pc++
		case OpLookupVector:
			coll := it.stack.ReadRegister(ins.B)
			i := int(it.stack.ReadRegister(ins.C).Int())
			n := it.heap.VectorLen(coll)
			if i < 0 || i >= n {
				return Word{}, false, NewRuntimeError("index_out_of_range", "vector index %d out of range [0,%d)", i, n)
			}
			elem := it.heap.VectorElemType(coll)
			it.stack.WriteRegister(int16(ins.A), it.heap.VectorGet(coll, i), elem)
			pc++
		case OpLookupDict:
			coll := it.stack.ReadRegister(ins.B)
			key := stringOf(it.stack.ReadRegister(ins.C)).String()
			v, lookupErr := it.heap.DictGet(coll, key)
			if lookupErr != nil {
				return Word{}, false, lookupErr
			}
			it.stack.WriteRegister(int16(ins.A), v, it.heap.DictValType(coll))
			pc++

		// --- Function call (§4.4 group 5) ---
		case OpCall:
			if callErr := it.execCall(ins); callErr != nil {
				return Word{}, false, callErr
			}
			pc++

		// --- Arithmetic (§4.4 group 6) ---
		case OpAddBool:
			it.stack.writeRegisterRaw(int16(ins.A), WordBool(it.stack.ReadRegister(ins.B).Bool() || it.stack.ReadRegister(ins.C).Bool()))
			pc++
		case OpAddInt:
			it.stack.writeRegisterRaw(int16(ins.A), WordInt(it.stack.ReadRegister(ins.B).Int()+it.stack.ReadRegister(ins.C).Int()))
			pc++
		case OpAddFloat:
			it.stack.writeRegisterRaw(int16(ins.A), WordFloat(it.stack.ReadRegister(ins.B).Float()+it.stack.ReadRegister(ins.C).Float()))
			pc++
		case OpAddString:
			lhs := stringOf(it.stack.ReadRegister(ins.B))
			rhs := stringOf(it.stack.ReadRegister(ins.C))
			cat := append(append([]byte(nil), lhs.Bytes...), rhs.Bytes...)
			it.stack.WriteRegister(int16(ins.A), it.heap.AllocString(cat), it.heap.interner.IDString)
			pc++
		case OpAddVector:
			lhs := it.stack.ReadRegister(ins.B)
			rhs := it.stack.ReadRegister(ins.C)
			elem := it.heap.VectorElemType(lhs)
			items := append(append([]Word(nil), it.heap.VectorToSlice(lhs)...), it.heap.VectorToSlice(rhs)...)
			it.stack.WriteRegister(int16(ins.A), it.heap.AllocVector(elem, items), it.heap.interner.Peek(lhs.Obj().Type()))
			pc++
		case OpSubInt:
			it.stack.writeRegisterRaw(int16(ins.A), WordInt(it.stack.ReadRegister(ins.B).Int()-it.stack.ReadRegister(ins.C).Int()))
			pc++
		case OpSubFloat:
			it.stack.writeRegisterRaw(int16(ins.A), WordFloat(it.stack.ReadRegister(ins.B).Float()-it.stack.ReadRegister(ins.C).Float()))
			pc++
		case OpMulInt:
			it.stack.writeRegisterRaw(int16(ins.A), WordInt(it.stack.ReadRegister(ins.B).Int()*it.stack.ReadRegister(ins.C).Int()))
			pc++
		case OpMulFloat:
			it.stack.writeRegisterRaw(int16(ins.A), WordFloat(it.stack.ReadRegister(ins.B).Float()*it.stack.ReadRegister(ins.C).Float()))
			pc++
		case OpDivInt:
			rhs := it.stack.ReadRegister(ins.C).Int()
			if rhs == 0 {
				return Word{}, false, NewRuntimeError("divide_by_zero", "integer division by zero")
			}
			it.stack.writeRegisterRaw(int16(ins.A), WordInt(it.stack.ReadRegister(ins.B).Int()/rhs))
			pc++
		case OpDivFloat:
			rhs := it.stack.ReadRegister(ins.C).Float()
			if rhs == 0 {
				return Word{}, false, NewRuntimeError("divide_by_zero", "floating point division by zero")
			}
			it.stack.writeRegisterRaw(int16(ins.A), WordFloat(it.stack.ReadRegister(ins.B).Float()/rhs))
			pc++
		case OpRemInt:
			rhs := it.stack.ReadRegister(ins.C).Int()
			if rhs == 0 {
				return Word{}, false, NewRuntimeError("divide_by_zero", "integer remainder by zero")
			}
			it.stack.writeRegisterRaw(int16(ins.A), WordInt(it.stack.ReadRegister(ins.B).Int()%rhs))
			pc++
		case OpAndBool:
			it.stack.writeRegisterRaw(int16(ins.A), WordBool(it.stack.ReadRegister(ins.B).Bool() && it.stack.ReadRegister(ins.C).Bool()))
			pc++
		case OpOrBool:
			it.stack.writeRegisterRaw(int16(ins.A), WordBool(it.stack.ReadRegister(ins.B).Bool() || it.stack.ReadRegister(ins.C).Bool()))
			pc++

		// --- Comparison: typed-generic, writes back into register B
		// (§4.4 group 7; there is no 4th operand slot once A holds the type
		// id, so the result overwrites the left-hand operand's register) ---
		case OpCmpLE:
			t := TypeID(ins.A)
			r := it.heap.Compare(CompareLessEq, t, it.stack.ReadRegister(ins.B), it.stack.ReadRegister(ins.C))
			it.stack.writeRegisterRaw(ins.B, WordBool(r))
			pc++
		case OpCmpL:
			t := TypeID(ins.A)
			r := it.heap.Compare(CompareLess, t, it.stack.ReadRegister(ins.B), it.stack.ReadRegister(ins.C))
			it.stack.writeRegisterRaw(ins.B, WordBool(r))
			pc++
		case OpEq:
			t := TypeID(ins.A)
			r := it.heap.Compare(CompareEq, t, it.stack.ReadRegister(ins.B), it.stack.ReadRegister(ins.C))
			it.stack.writeRegisterRaw(ins.B, WordBool(r))
			pc++
		case OpNeq:
			t := TypeID(ins.A)
			r := it.heap.Compare(CompareNeq, t, it.stack.ReadRegister(ins.B), it.stack.ReadRegister(ins.C))
			it.stack.writeRegisterRaw(ins.B, WordBool(r))
			pc++

		// --- Comparison: int-specialized, genuine 3-register form ---
		case OpCmpLEInt:
			it.stack.writeRegisterRaw(int16(ins.A), WordBool(it.stack.ReadRegister(ins.B).Int() <= it.stack.ReadRegister(ins.C).Int()))
			pc++
		case OpCmpLInt:
			it.stack.writeRegisterRaw(int16(ins.A), WordBool(it.stack.ReadRegister(ins.B).Int() < it.stack.ReadRegister(ins.C).Int()))
			pc++
		case OpEqInt:
			it.stack.writeRegisterRaw(int16(ins.A), WordBool(it.stack.ReadRegister(ins.B).Int() == it.stack.ReadRegister(ins.C).Int()))
			pc++
		case OpNeqInt:
			it.stack.writeRegisterRaw(int16(ins.A), WordBool(it.stack.ReadRegister(ins.B).Int() != it.stack.ReadRegister(ins.C).Int()))
			pc++

		// --- Constructors (§4.4 group 8) ---
		case OpNew1:
			destType := TypeID(ins.A)
			srcVal := it.stack.ReadRegister(ins.B)
			it.stack.WriteRegister(ins.C, it.castScalar(destType, srcVal), destType)
			pc++
		case OpNewVector:
			elem := TypeID(ins.A)
			first := ins.B
			n := int(ins.C)
			items := make([]Word, n)
			for i := 0; i < n; i++ {
				items[i] = it.stack.ReadRegister(first + int16(i))
			}
			it.stack.WriteRegister(first, it.heap.AllocVector(elem, items), it.heap.interner.IDUndefined)
			pc++
		case OpNewDict:
			val := TypeID(ins.A)
			first := ins.B
			n := int(ins.C)
			entries := make(map[string]Word, n)
			for i := 0; i < n; i++ {
				k := stringOf(it.stack.ReadRegister(first + int16(2*i))).String()
				entries[k] = it.stack.ReadRegister(first + int16(2*i+1))
			}
			it.stack.WriteRegister(first, it.heap.AllocDict(val, entries), it.heap.interner.IDUndefined)
			pc++
		case OpNewStruct:
			structType := TypeID(ins.A)
			first := ins.B
			n := int(ins.C)
			variant := it.heap.interner.GetVariant(it.heap.interner.Peek(structType))
			layout := &StructLayout{Type: it.heap.interner.Peek(structType), Elems: variant.FieldTypes, Names: variant.FieldNames}
			fields := make([]Word, n)
			for i := 0; i < n; i++ {
				fields[i] = it.stack.ReadRegister(first + int16(i))
			}
			it.stack.WriteRegister(first, it.heap.AllocStruct(layout, fields), it.heap.interner.IDUndefined)
			pc++

		// --- Control flow (§4.4 group 9) ---
		case OpReturn:
			v := it.stack.ReadRegister(int16(ins.A))
			return v, true, nil
		case OpStop:
			return Word{}, false, nil
		case OpPushFrame:
			it.stack.SaveFrame()
			pc++
		case OpPopFrame:
			it.stack.RestoreFrame()
			pc++
		case OpPushIntern:
			it.stack.PushIntern(it.stack.ReadRegister(int16(ins.A)))
			pc++
		case OpPushObj:
			it.stack.PushObj(it.stack.ReadRegister(ins.B), TypeID(ins.A))
			pc++
		case OpPopn:
			n := int(ins.A)
			extBits := uint32(ins.B)<<16 | uint32(uint16(ins.C))
			it.stack.PopBatch(n, extBits)
			pc++

		// --- Branches (§4.4 group 10; offsets are relative to the next
		// instruction) ---
		case OpBrFalseBool:
			if !it.stack.ReadRegister(int16(ins.A)).Bool() {
				pc += 1 + int(ins.B)
			} else {
				pc++
			}
		case OpBrTrueBool:
			if it.stack.ReadRegister(int16(ins.A)).Bool() {
				pc += 1 + int(ins.B)
			} else {
				pc++
			}
		case OpBrZeroInt:
			if it.stack.ReadRegister(int16(ins.A)).Int() == 0 {
				pc += 1 + int(ins.B)
			} else {
				pc++
			}
		case OpBrNonzeroInt:
			if it.stack.ReadRegister(int16(ins.A)).Int() != 0 {
				pc += 1 + int(ins.B)
			} else {
				pc++
			}
		case OpBrLInt:
			if it.stack.ReadRegister(int16(ins.A)).Int() < it.stack.ReadRegister(int16(ins.B)).Int() {
				pc += 1 + int(ins.C)
			} else {
				pc++
			}
		case OpBrLEInt:
			if it.stack.ReadRegister(int16(ins.A)).Int() <= it.stack.ReadRegister(int16(ins.B)).Int() {
				pc += 1 + int(ins.C)
			} else {
				pc++
			}
		case OpBrAlways:
			pc += 1 + int(ins.A)

		default:
			fatalf("execLoop: unknown opcode %d at pc %d in %q", ins.Op, pc, f.Name)
		}
	}
	return Word{}, false, nil
}

// castScalar implements New1's scalar cast (§4.4 group 8): the legal
// conversions are int<->double and bool/int/double/string->string via
// to_string (handled by the intrinsic, not here). New1 itself only covers
// the numeric pair, inferring the source kind from the destination kind
// since a bare Word carries none of its own.
func (it *Interpreter) castScalar(destType TypeID, src Word) Word {
	switch it.heap.interner.GetNode(it.heap.interner.Peek(destType)).Kind {
	case KindDouble:
		return WordFloat(float64(src.Int()))
	case KindInt:
		return WordInt(int64(src.Float()))
	default:
		typeMismatch("new1: unsupported destination kind %v", it.heap.interner.GetNode(it.heap.interner.Peek(destType)).Kind)
		return Word{}
	}
}

// execCall implements the Call opcode (§4.4 group 5): arguments are already
// on the stack (pushed by preceding PushIntern/PushObj instructions) and are
// not popped here — a subsequent Popn/PopFrame pair does that.
func (it *Interpreter) execCall(ins Instruction) error {
	callee := it.stack.ReadRegister(ins.B)
	link := callee.Link()
	if int(link) < 0 || int(link) >= len(it.prog.Functions) {
		return NewRuntimeError("invalid_function", "call: link id %d out of range", link)
	}
	fn := it.prog.Functions[link]
	argCount := int(ins.C)

	if fn.Host == nil && fn.Frame == nil {
		return NewRuntimeError("unregistered_host_import", "call: function %q has no bytecode frame and no registered host implementation", fn.Name)
	}

	if fn.Host != nil {
		args := make([]Word, argCount)
		copy(args, it.stack.words[it.stack.sp-argCount:it.stack.sp])
		result, err := fn.Host(it, args)
		if err != nil {
			return err
		}
		it.stack.WriteRegister(int16(ins.A), result, fn.retType(it.heap.interner))
		return nil
	}

	callerFramePos := it.stack.framePos
	it.stack.OpenFrame(fn.Frame, argCount)
	retWord, returned, err := it.execFunctionFrame(fn)
	it.stack.CloseFrame(fn.Frame)
	it.stack.framePos = callerFramePos
	if err != nil {
		return err
	}
	if returned {
		it.stack.WriteRegister(int16(ins.A), retWord, fn.retType(it.heap.interner))
	}
	return nil
}

// execFunctionFrame runs fn's bytecode and returns whatever its Return
// instruction produced; callers take the result's type from fn.Type.
func (it *Interpreter) execFunctionFrame(fn *FunctionDef) (Word, bool, error) {
	return it.execLoop(fn.Frame)
}

// retType returns fn's declared return type from its Function type node.
func (fn *FunctionDef) retType(interner *Interner) TypeID {
	return interner.GetVariant(interner.Peek(fn.Type)).Ret
}

// callFunction is the host-entry-point call helper used by Program.CallByLink
// (§6 "call(fn_value, args) → value"): args are already host-decoded Words,
// one owned reference each. It mirrors what a PushObj/Call/Popn sequence
// does in bytecode-driven calls, but drives it directly from Go since there
// is no caller frame already holding the arguments in registers.
func (it *Interpreter) callFunction(fn *FunctionDef, args []Word) (retWord Word, retType TypeID, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	if fn.Host == nil && fn.Frame == nil {
		return Word{}, 0, NewRuntimeError("unregistered_host_import", "call: function %q has no bytecode frame and no registered host implementation", fn.Name)
	}

	retType = fn.retType(it.heap.interner)
	variant := it.heap.interner.GetVariant(it.heap.interner.Peek(fn.Type))
	for _, a := range args {
		it.stack.PushIntern(a)
	}

	if fn.Host != nil {
		result, hostErr := fn.Host(it, args)
		it.releaseCallArgs(fn, variant, args)
		it.stack.PopBatchRaw(len(args))
		if hostErr != nil {
			return Word{}, 0, hostErr
		}
		return result, retType, nil
	}

	callerFramePos := it.stack.framePos
	it.stack.OpenFrame(fn.Frame, len(args))
	v, returned, loopErr := it.execFunctionFrame(fn)
	it.stack.CloseFrame(fn.Frame)
	it.stack.framePos = callerFramePos
	it.releaseCallArgs(fn, variant, args)
	it.stack.PopBatchRaw(len(args))
	if loopErr != nil {
		return Word{}, 0, loopErr
	}
	if !returned {
		return Word{}, retType, nil
	}
	return v, retType, nil
}

// releaseCallArgs releases callFunction's owned argument references in the
// order they were pushed. Trailing `any`-typed parameters (DynamicArgCount of
// them, per §4.4 item 5) each occupy TWO adjacent words in args — a TypeID
// tag followed by the value — while every fixed parameter occupies one, so
// the args slice and variant.Args (one entry per logical parameter) are not
// index-aligned once a dynamic argument is present.
func (it *Interpreter) releaseCallArgs(fn *FunctionDef, variant Variant, args []Word) {
	fixedCount := len(variant.Args) - fn.DynamicArgCount
	for j := 0; j < fixedCount && j < len(args); j++ {
		it.heap.Release(args[j], variant.Args[j])
	}
	for k := 0; k < fn.DynamicArgCount; k++ {
		typeIdx := fixedCount + 2*k
		valIdx := typeIdx + 1
		if valIdx >= len(args) {
			break
		}
		it.heap.Release(args[valIdx], args[typeIdx].TypeIDValue())
	}
}

// Print appends a line to the runtime's captured output (§4.5 print).
func (it *Interpreter) Print(line string) {
	it.output = append(it.output, line)
}
