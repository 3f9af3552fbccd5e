package template

import (
	"strings"

	"github.com/aescanero/dago-template/internal/value"
)

func (r *Registry) registerValueHelpers() {
	// uppercase helper
	r.RegisterHelper("uppercase", ValueFunc(func(call *Call) (value.Value, error) {
		s, err := textParam(call, 0)
		if err != nil {
			return value.Null(), err
		}
		return value.String(strings.ToUpper(s)), nil
	}))

	// lowercase helper
	r.RegisterHelper("lowercase", ValueFunc(func(call *Call) (value.Value, error) {
		s, err := textParam(call, 0)
		if err != nil {
			return value.Null(), err
		}
		return value.String(strings.ToLower(s)), nil
	}))

	// trim helper
	r.RegisterHelper("trim", ValueFunc(func(call *Call) (value.Value, error) {
		s, err := textParam(call, 0)
		if err != nil {
			return value.Null(), err
		}
		return value.String(strings.TrimSpace(s)), nil
	}))

	// default helper - return default value if first arg is null or empty
	r.RegisterHelper("default", ValueFunc(func(call *Call) (value.Value, error) {
		if _, err := call.RequiredParam(1); err != nil {
			return value.Null(), err
		}
		v := call.Value(0)
		if s, ok := v.AsString(); v.IsNull() || (ok && s == "") {
			return call.Value(1), nil
		}
		return v, nil
	}))

	// eq helper - structural equality
	r.RegisterHelper("eq", ValueFunc(func(call *Call) (value.Value, error) {
		if _, err := call.RequiredParam(1); err != nil {
			return value.Null(), err
		}
		return value.Bool(call.Value(0).Equal(call.Value(1))), nil
	}))

	// ne helper - structural inequality
	r.RegisterHelper("ne", ValueFunc(func(call *Call) (value.Value, error) {
		if _, err := call.RequiredParam(1); err != nil {
			return value.Null(), err
		}
		return value.Bool(!call.Value(0).Equal(call.Value(1))), nil
	}))

	r.RegisterHelper("gt", compare(func(a, b float64) bool { return a > b }))
	r.RegisterHelper("gte", compare(func(a, b float64) bool { return a >= b }))
	r.RegisterHelper("lt", compare(func(a, b float64) bool { return a < b }))
	r.RegisterHelper("lte", compare(func(a, b float64) bool { return a <= b }))

	// and helper - true when every param is truthy
	r.RegisterHelper("and", ValueFunc(func(call *Call) (value.Value, error) {
		if _, err := call.RequiredParam(0); err != nil {
			return value.Null(), err
		}
		for _, p := range call.Params {
			if !p.Value.Truthy() {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil
	}))

	// or helper - true when any param is truthy
	r.RegisterHelper("or", ValueFunc(func(call *Call) (value.Value, error) {
		if _, err := call.RequiredParam(0); err != nil {
			return value.Null(), err
		}
		for _, p := range call.Params {
			if p.Value.Truthy() {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}))

	r.RegisterHelper("not", ValueFunc(func(call *Call) (value.Value, error) {
		p, err := call.RequiredParam(0)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(!p.Value.Truthy()), nil
	}))

	// contains helper - substring for strings, membership for arrays
	r.RegisterHelper("contains", ValueFunc(func(call *Call) (value.Value, error) {
		if _, err := call.RequiredParam(1); err != nil {
			return value.Null(), err
		}
		haystack, needle := call.Value(0), call.Value(1)
		if haystack.Kind() == value.KindArray {
			for _, item := range haystack.Items() {
				if item.Equal(needle) {
					return value.Bool(true), nil
				}
			}
			return value.Bool(false), nil
		}
		return value.Bool(strings.Contains(haystack.Render(), needle.Render())), nil
	}))

	// join helper - join array items with a separator, "," by default
	r.RegisterHelper("join", ValueFunc(func(call *Call) (value.Value, error) {
		arr, err := call.Array(0)
		if err != nil {
			return value.Null(), err
		}
		sep := ","
		if _, ok := call.Param(1); ok {
			sep = call.Value(1).Render()
		}
		items := arr.Items()
		strs := make([]string, len(items))
		for i, item := range items {
			strs[i] = item.Render()
		}
		return value.String(strings.Join(strs, sep)), nil
	}))

	// len helper - length of an array, object or string
	r.RegisterHelper("len", ValueFunc(func(call *Call) (value.Value, error) {
		p, err := call.RequiredParam(0)
		if err != nil {
			return value.Null(), err
		}
		return value.Int(int64(p.Value.Len())), nil
	}))
}

// compare builds a numeric comparison helper
func compare(op func(a, b float64) bool) ValueFunc {
	return func(call *Call) (value.Value, error) {
		a, err := call.Number(0)
		if err != nil {
			return value.Null(), err
		}
		b, err := call.Number(1)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(op(a, b)), nil
	}
}

// textParam renders any scalar param as text. Null renders empty.
func textParam(call *Call, i int) (string, error) {
	p, err := call.RequiredParam(i)
	if err != nil {
		return "", err
	}
	switch p.Value.Kind() {
	case value.KindArray, value.KindObject:
		return "", call.mismatch(i, "scalar", p)
	}
	return p.Value.Render(), nil
}
