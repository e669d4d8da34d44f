// Package ctyhost hosts dynamically typed callables written as go-cty functions.
//
// Arguments are converted to cty values on the way in. On the way out a null
// result means "no value", a TokenType capsule is a control signal and any
// other value is passed downstream as a cty.Value payload.
package ctyhost

import (
	"reflect"

	"github.com/influxdata/flowgraph/host"
	"github.com/influxdata/flowgraph/token"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/gocty"
)

// TokenType is the cty capsule type that carries a control token.
var TokenType = cty.Capsule("token", reflect.TypeOf(token.Token{}))

// TokenVal returns t encapsulated as a cty value.
func TokenVal(t token.Token) cty.Value {
	return cty.CapsuleVal(TokenType, &t)
}

type callable struct {
	fn function.Function
}

// Wrap returns a Callable that runs fn.
func Wrap(fn function.Function) host.Callable {
	return &callable{fn: fn}
}

func (c *callable) Call(_ host.Self, args ...any) (any, error) {
	vals := make([]cty.Value, len(args))
	for i, a := range args {
		v, err := ToCtyValue(a)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		vals[i] = v
	}
	ret, err := c.fn.Call(vals)
	if err != nil {
		return nil, err
	}
	return fromResult(ret)
}

func fromResult(v cty.Value) (any, error) {
	v, _ = v.Unmark()
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, errors.New("callable returned an unknown value")
	}
	if v.Type().Equals(TokenType) {
		return *v.EncapsulatedValue().(*token.Token), nil
	}
	return v, nil
}

// ToCtyValue converts a native Go value into its corresponding cty.Value.
// cty values pass through unchanged and tokens become TokenType capsules.
func ToCtyValue(v any) (cty.Value, error) {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return t, nil
	case token.Token:
		return TokenVal(t), nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, errors.Wrap(err, "unable to infer cty.Type")
	}
	return gocty.ToCtyValue(v, ty)
}

// ToNative converts a cty.Value into its most natural Go counterpart.
func ToNative(v cty.Value) (any, error) {
	v, _ = v.Unmark()
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty.Equals(TokenType):
		return *v.EncapsulatedValue().(*token.Token), nil
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, errors.Wrap(err, "could not convert cty.Number to float64")
		}
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			nv, err := ToNative(ev)
			if err != nil {
				return nil, err
			}
			slice = append(slice, nv)
		}
		return slice, nil
	case ty.IsObjectType() || ty.IsMapType():
		m := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			nv, err := ToNative(ev)
			if err != nil {
				return nil, errors.Wrapf(err, "in attribute %q", k.AsString())
			}
			m[k.AsString()] = nv
		}
		return m, nil
	default:
		return nil, errors.Errorf("unsupported cty type %s", ty.FriendlyName())
	}
}
