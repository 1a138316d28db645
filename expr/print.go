package expr

import (
	"strconv"
	"strings"
)

// String renders the canonical textual form. It is the wire format of
// weak-form dumps and re-parses to a structurally equal expression.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	switch n.kind {
	case KindConstant:
		if x, ok := n.value.Scalar(); ok {
			sb.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
			return
		}
		sb.WriteString(n.value.String())
	case KindVariable, KindField:
		sb.WriteString(n.name)
	case KindTestFunction, KindShapeFunction:
		fn := "test"
		if n.kind == KindShapeFunction {
			fn = "phi"
		}
		if n.gradient {
			sb.WriteString("grad(")
		}
		sb.WriteString(fn + "(" + n.name + ")")
		if n.index[0] >= 0 {
			sb.WriteString("[" + strconv.Itoa(n.index[0]) + "]")
		}
		if n.gradient {
			sb.WriteString(")")
		}
	case KindUnary:
		if n.unary == OpNegate {
			sb.WriteString("-(")
		} else {
			sb.WriteString(n.unary.String() + "(")
		}
		n.args[0].write(sb)
		sb.WriteString(")")
	case KindBinary:
		n.writeBinary(sb)
	case KindFunction:
		writeCall(sb, n.name, n.args)
	case KindVector:
		writeCall(sb, "vec", n.args)
	case KindComponent:
		x := n.args[0]
		wrap := (x.kind == KindBinary && (x.binary == OpMul || x.binary == OpDivide)) ||
			x.IsUnary(OpNegate) || x.kind == KindConstant
		if wrap {
			sb.WriteString("(")
		}
		x.write(sb)
		if wrap {
			sb.WriteString(")")
		}
		sb.WriteString("[" + strconv.Itoa(n.index[0]))
		if n.index[1] >= 0 {
			sb.WriteString("," + strconv.Itoa(n.index[1]))
		}
		sb.WriteString("]")
	}
}

func (n *Node) writeBinary(sb *strings.Builder) {
	l, r := n.args[0], n.args[1]
	switch n.binary {
	case OpAdd, OpSub:
		sb.WriteString("(")
		l.write(sb)
		sb.WriteString(" " + n.binary.String() + " ")
		r.write(sb)
		sb.WriteString(")")
	case OpMul, OpDivide:
		l.write(sb)
		sb.WriteString(n.binary.String())
		if r.kind == KindBinary && (r.binary == OpMul || r.binary == OpDivide) {
			sb.WriteString("(")
			r.write(sb)
			sb.WriteString(")")
			return
		}
		r.write(sb)
	case OpPow:
		sb.WriteString("pow(")
		l.write(sb)
		sb.WriteString(",")
		r.write(sb)
		sb.WriteString(")")
	default:
		writeCall(sb, n.binary.String(), n.args)
	}
}

func writeCall(sb *strings.Builder, name string, args []*Node) {
	sb.WriteString(name + "(")
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		a.write(sb)
	}
	sb.WriteString(")")
}
