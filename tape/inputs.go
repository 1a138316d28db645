package tape

import (
	"github.com/notargets/DGWeakForm/eval"
	"github.com/notargets/DGWeakForm/tensor"
)

// InputsFrom flattens an interpreter context into tape inputs, resolving
// names with the same precedence as the interpreter: context parameters,
// then params, then fields. into is cleared and reused when non-nil.
func InputsFrom(ctx *eval.Context, params *eval.Parameters, into map[string]tensor.Value) map[string]tensor.Value {
	if into == nil {
		into = make(map[string]tensor.Value)
	}
	for k := range into {
		delete(into, k)
	}
	into["t"] = tensor.Real(ctx.Time)
	into["time"] = into["t"]
	if p := ctx.Position; p.Valid() && p.Shape().IsVector() {
		for i, name := range []string{"x", "y", "z"} {
			if i < p.Shape().Dim {
				into[name] = tensor.Real(p.At(i))
			}
		}
	}
	for name, f := range ctx.Fields {
		if f.Value.Valid() {
			into[name] = f.Value
		}
		if f.Gradient.Valid() {
			into[name+SuffixGrad] = f.Gradient
		}
	}
	basis := func(data map[string]eval.FunctionData, value, grad string) {
		for name, d := range data {
			if d.Value.Valid() {
				into[name+value] = d.Value
			}
			if d.Gradient.Valid() {
				into[name+grad] = d.Gradient
			}
		}
	}
	basis(ctx.Test, SuffixTest, SuffixTestGrad)
	basis(ctx.Shape, SuffixPhi, SuffixPhiGrad)
	for _, p := range []*eval.Parameters{params, ctx.Parameters} {
		for _, name := range p.Names() {
			v, _ := p.Lookup(name)
			into[name] = v
		}
	}
	return into
}
