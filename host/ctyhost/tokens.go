package ctyhost

import (
	"math/big"

	"github.com/influxdata/flowgraph/token"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

func constToken(t token.Token) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{},
		Type:   function.StaticReturnType(TokenType),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			return TokenVal(t), nil
		},
	})
}

// TagFunc builds a user tag token from a whole number no smaller than token.MinTag.
var TagFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "n", Type: cty.Number},
	},
	Type: function.StaticReturnType(TokenType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		bf := args[0].AsBigFloat()
		if !bf.IsInt() || bf.Sign() < 0 {
			return cty.NilVal, function.NewArgErrorf(0, "tag must be a non-negative whole number")
		}
		n, acc := bf.Uint64()
		if acc != big.Exact {
			return cty.NilVal, function.NewArgErrorf(0, "tag out of range")
		}
		t, err := token.NewTag(n)
		if err != nil {
			return cty.NilVal, function.NewArgError(0, err)
		}
		return TokenVal(t), nil
	},
})

// IsTokenFunc reports whether its argument is a control token.
var IsTokenFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "v", Type: cty.DynamicPseudoType, AllowNull: true, AllowDynamicType: true},
	},
	Type: function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.BoolVal(args[0].Type().Equals(TokenType)), nil
	},
})

// TokenFuncs returns the functions that construct control tokens, keyed by name.
func TokenFuncs() map[string]function.Function {
	return map[string]function.Function{
		"eos":              constToken(token.EOS()),
		"eos_norestart":    constToken(token.EOSNoRestart()),
		"eos_weak":         constToken(token.EOSWeak()),
		"continue":         constToken(token.Continue()),
		"terminate_output": constToken(token.TerminateOutput()),
		"tag":              TagFunc,
		"is_token":         IsTokenFunc,
	}
}

// TokenFromValue extracts the token carried by v.
func TokenFromValue(v cty.Value) (token.Token, error) {
	v, _ = v.Unmark()
	if v.IsNull() || !v.Type().Equals(TokenType) {
		return token.Token{}, errors.Errorf("%s is not a token", v.Type().FriendlyName())
	}
	return *v.EncapsulatedValue().(*token.Token), nil
}
