// Package tape compiles a restricted subset of expressions into a flat
// instruction list evaluated in one linear pass.
//
// The subset is constants, named inputs (including the <v>_grad,
// <v>_test, <v>_test_grad, <v>_phi and <v>_phi_grad pseudo-inputs),
// + - * / ^, dot, outer, contract and negation. Build and Evaluate never
// return errors: anything outside the subset, or a missing input, yields
// ok == false and the caller falls back to the interpreter.
package tape

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/DGWeakForm/tensor"
)

// Op is a tape instruction code
type Op uint8

const (
	OpConst Op = iota
	OpLoad
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpDot
	OpOuter
	OpContract
	OpNeg
)

var opNames = [...]string{
	OpConst:    "const",
	OpLoad:     "load",
	OpAdd:      "add",
	OpSub:      "sub",
	OpMul:      "mul",
	OpDiv:      "div",
	OpPow:      "pow",
	OpDot:      "dot",
	OpOuter:    "outer",
	OpContract: "contract",
	OpNeg:      "neg",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

func (op Op) binary() bool { return op >= OpAdd && op <= OpContract }

// Instruction reads its operands from earlier tape slots A and B
type Instruction struct {
	Op    Op
	A, B  int
	Const tensor.Value
	Input string
}

func (in Instruction) String() string {
	switch {
	case in.Op == OpConst:
		return fmt.Sprintf("const %s", in.Const)
	case in.Op == OpLoad:
		return fmt.Sprintf("load %s", in.Input)
	case in.Op == OpNeg:
		return fmt.Sprintf("neg %%%d", in.A)
	}
	return fmt.Sprintf("%s %%%d %%%d", in.Op, in.A, in.B)
}

// Tape is a compiled expression. Its register file is reused between
// calls, so a Tape belongs to one goroutine; Clone gives another.
type Tape struct {
	code  []Instruction
	shape tensor.Shape
	regs  []tensor.Value
}

func newTape(code []Instruction, shape tensor.Shape) *Tape {
	return &Tape{code: code, shape: shape, regs: make([]tensor.Value, len(code))}
}

// Clone shares the instructions and allocates a fresh register file
func (t *Tape) Clone() *Tape { return newTape(t.code, t.shape) }

func (t *Tape) Len() int { return len(t.code) }

func (t *Tape) Shape() tensor.Shape { return t.shape }

func (t *Tape) Instructions() []Instruction { return t.code }

// Inputs lists the names the tape loads, sorted
func (t *Tape) Inputs() []string {
	seen := make(map[string]bool)
	var names []string
	for _, in := range t.code {
		if in.Op == OpLoad && !seen[in.Input] {
			seen[in.Input] = true
			names = append(names, in.Input)
		}
	}
	sort.Strings(names)
	return names
}

// Validate checks that every operand refers to an earlier slot
func (t *Tape) Validate() error {
	if len(t.code) == 0 {
		return fmt.Errorf("empty tape")
	}
	for i, in := range t.code {
		switch {
		case in.Op == OpConst:
			if !in.Const.Valid() {
				return fmt.Errorf("slot %d: constant without a value", i)
			}
		case in.Op == OpLoad:
			if in.Input == "" {
				return fmt.Errorf("slot %d: load without a name", i)
			}
		case in.Op == OpNeg:
			if in.A < 0 || in.A >= i {
				return fmt.Errorf("slot %d: operand %d is not an earlier slot", i, in.A)
			}
		case in.Op.binary():
			if in.A < 0 || in.A >= i || in.B < 0 || in.B >= i {
				return fmt.Errorf("slot %d: operands %d, %d are not earlier slots", i, in.A, in.B)
			}
		default:
			return fmt.Errorf("slot %d: unknown op %s", i, in.Op)
		}
	}
	return nil
}

// Evaluate runs the tape against inputs. It reports false when an input
// is missing or an operation fails on the supplied shapes.
func (t *Tape) Evaluate(inputs map[string]tensor.Value) (tensor.Value, bool) {
	regs := t.regs
	for i, in := range t.code {
		var (
			v   tensor.Value
			err error
		)
		switch in.Op {
		case OpConst:
			v = in.Const
		case OpLoad:
			x, ok := inputs[in.Input]
			if !ok || !x.Valid() {
				return tensor.Value{}, false
			}
			v = x
		case OpNeg:
			v = tensor.Neg(regs[in.A])
		case OpAdd:
			v, err = tensor.Add(regs[in.A], regs[in.B])
		case OpSub:
			v, err = tensor.Sub(regs[in.A], regs[in.B])
		case OpMul:
			v, err = tensor.Mul(regs[in.A], regs[in.B])
		case OpDiv:
			v, err = tensor.Div(regs[in.A], regs[in.B])
		case OpPow:
			v, err = tensor.Pow(regs[in.A], regs[in.B])
		case OpDot:
			v, err = tensor.Dot(regs[in.A], regs[in.B])
		case OpOuter:
			v, err = tensor.Outer(regs[in.A], regs[in.B])
		case OpContract:
			v, err = tensor.Contract(regs[in.A], regs[in.B])
		default:
			return tensor.Value{}, false
		}
		if err != nil {
			return tensor.Value{}, false
		}
		regs[i] = v
	}
	return regs[len(regs)-1], true
}

// EvaluateScalar is Evaluate for a scalar tape
func (t *Tape) EvaluateScalar(inputs map[string]tensor.Value) (float64, bool) {
	v, ok := t.Evaluate(inputs)
	if !ok {
		return 0, false
	}
	return v.Scalar()
}

func (t *Tape) String() string {
	var sb strings.Builder
	for i, in := range t.code {
		fmt.Fprintf(&sb, "%%%d = %s\n", i, in)
	}
	return sb.String()
}
