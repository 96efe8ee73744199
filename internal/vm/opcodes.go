package vm

// Opcode identifies one bytecode instruction (§4.4). Numbering is ours to
// choose (the wire format only fixes the encoding shape, not the specific
// integer values), grouped the way §4.4 groups them.
type Opcode uint8

const (
	OpNop Opcode = iota

	// Load/store globals.
	OpLoadGlobalObj
	OpLoadGlobalIntern
	OpStoreGlobalObj
	OpStoreGlobalIntern

	// Local copy.
	OpStoreLocalObj
	OpStoreLocalIntern

	// Member access.
	OpGetStructMember

	// Element lookup.
	OpLookupString
	OpLookupJson
	OpLookupVector
	OpLookupDict

	// Function call.
	OpCall

	// Arithmetic.
	OpAddBool
	OpAddInt
	OpAddFloat
	OpAddString
	OpAddVector
	OpSubInt
	OpSubFloat
	OpMulInt
	OpMulFloat
	OpDivInt
	OpDivFloat
	OpRemInt
	OpAndBool
	OpOrBool

	// Comparison: typed-generic.
	OpCmpLE
	OpCmpL
	OpEq
	OpNeq

	// Comparison: int-specialized.
	OpCmpLEInt
	OpCmpLInt
	OpEqInt
	OpNeqInt

	// Constructors.
	OpNew1
	OpNewVector
	OpNewDict
	OpNewStruct

	// Control flow.
	OpReturn
	OpStop
	OpPushFrame
	OpPopFrame
	OpPushIntern
	OpPushObj
	OpPopn

	// Branches.
	OpBrFalseBool
	OpBrTrueBool
	OpBrZeroInt
	OpBrNonzeroInt
	OpBrLInt
	OpBrLEInt
	OpBrAlways

	opcodeCount
)

// EncodingClass names the operand shape an opcode uses; only the
// disassembler inspects this (§4.4: "used only by the disassembler").
type EncodingClass uint8

const (
	EncTRR0 EncodingClass = iota // type + two registers
	EncTRRI                      // type + two registers + immediate
	Enc0RRR                      // three registers
	Enc0RII                      // register + two immediates
	Enc0R00                      // one register
	Enc0000                      // no operands
	Enc0RRI                      // two registers + immediate
)

// OpInfo is the per-opcode disassembler descriptor (§4.4, SUPPLEMENTED
// FEATURES item 5).
type OpInfo struct {
	Name     string
	Encoding EncodingClass
}

var opInfo = [opcodeCount]OpInfo{
	OpNop:               {"nop", Enc0000},
	OpLoadGlobalObj:      {"load_global_obj", Enc0RRI},
	OpLoadGlobalIntern:   {"load_global_intern", Enc0RRI},
	OpStoreGlobalObj:     {"store_global_obj", Enc0RRI},
	OpStoreGlobalIntern:  {"store_global_intern", Enc0RRI},
	OpStoreLocalObj:      {"store_local_obj", Enc0RRR},
	OpStoreLocalIntern:   {"store_local_intern", Enc0RRR},
	OpGetStructMember:    {"get_struct_member", Enc0RRI},
	OpLookupString:       {"lookup_string", Enc0RRR},
	OpLookupJson:         {"lookup_json", Enc0RRR},
	OpLookupVector:       {"lookup_vector", Enc0RRR},
	OpLookupDict:         {"lookup_dict", Enc0RRR},
	OpCall:               {"call", Enc0RRI},
	OpAddBool:            {"add_bool", Enc0RRR},
	OpAddInt:             {"add_int", Enc0RRR},
	OpAddFloat:           {"add_float", Enc0RRR},
	OpAddString:          {"add_string", Enc0RRR},
	OpAddVector:          {"add_vector", EncTRR0},
	OpSubInt:             {"sub_int", Enc0RRR},
	OpSubFloat:           {"sub_float", Enc0RRR},
	OpMulInt:             {"mul_int", Enc0RRR},
	OpMulFloat:           {"mul_float", Enc0RRR},
	OpDivInt:             {"div_int", Enc0RRR},
	OpDivFloat:           {"div_float", Enc0RRR},
	OpRemInt:             {"rem_int", Enc0RRR},
	OpAndBool:            {"and_bool", Enc0RRR},
	OpOrBool:             {"or_bool", Enc0RRR},
	OpCmpLE:              {"cmp_le", EncTRR0},
	OpCmpL:               {"cmp_l", EncTRR0},
	OpEq:                 {"eq", EncTRR0},
	OpNeq:                {"neq", EncTRR0},
	OpCmpLEInt:           {"cmp_le_int", Enc0RRR},
	OpCmpLInt:            {"cmp_l_int", Enc0RRR},
	OpEqInt:              {"eq_int", Enc0RRR},
	OpNeqInt:             {"neq_int", Enc0RRR},
	OpNew1:               {"new1", EncTRR0},
	OpNewVector:          {"new_vector", EncTRRI},
	OpNewDict:            {"new_dict", EncTRRI},
	OpNewStruct:          {"new_struct", EncTRRI},
	OpReturn:             {"return", Enc0R00},
	OpStop:               {"stop", Enc0000},
	OpPushFrame:          {"push_frame", Enc0000},
	OpPopFrame:           {"pop_frame", Enc0000},
	OpPushIntern:         {"push_intern", Enc0R00},
	OpPushObj:            {"push_obj", EncTRR0},
	OpPopn:               {"popn", Enc0RII},
	OpBrFalseBool:        {"br_false_bool", Enc0RII},
	OpBrTrueBool:         {"br_true_bool", Enc0RII},
	OpBrZeroInt:          {"br_zero_int", Enc0RII},
	OpBrNonzeroInt:       {"br_nonzero_int", Enc0RII},
	OpBrLInt:             {"br_l_int", Enc0RRI},
	OpBrLEInt:            {"br_le_int", Enc0RRI},
	OpBrAlways:           {"br_always", Enc0RII},
}

func (op Opcode) String() string {
	if int(op) < len(opInfo) && opInfo[op].Name != "" {
		return opInfo[op].Name
	}
	return "unknown_opcode"
}

var opByName map[string]Opcode

func init() {
	opByName = make(map[string]Opcode, len(opInfo))
	for op, info := range opInfo {
		if info.Name != "" {
			opByName[info.Name] = Opcode(op)
		}
	}
}

// OpcodeByName resolves a mnemonic (as produced by Opcode.String/DisassembleOne)
// back into its Opcode, for wire-format loaders assembling a Program from
// text/JSON. ok is false for an unknown mnemonic.
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opByName[name]
	return op, ok
}
