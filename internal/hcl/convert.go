package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// evalLiteral evaluates an expression that must not reference variables or
// call functions; definition files carry plain data, not programs.
func evalLiteral(expr hcl.Expression) (cty.Value, error) {
	if len(expr.Variables()) > 0 {
		return cty.NilVal, fmt.Errorf("expression at %s must be a literal value", expr.Range())
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("evaluating expression at %s: %w", expr.Range(), diags)
	}
	return val, nil
}

// ctyToGo converts an evaluated cty value into plain Go values: bool,
// int64/float64, string, []any, map[string]any.
func ctyToGo(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.Bool:
		return val.True(), nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			return i, nil
		}
		f, _ := bf.Float64()
		return f, nil
	case ty == cty.String:
		return val.AsString(), nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			gv, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, gv)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			kv, ev := it.Element()
			gv, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}
			out[kv.AsString()] = gv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}

// attrsToGoMap evaluates a body's attributes into a plain string-keyed map.
func attrsToGoMap(body hcl.Body) (map[string]any, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("reading attributes: %w", diags)
	}
	out := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, err := evalLiteral(attr.Expr)
		if err != nil {
			return nil, err
		}
		gv, err := ctyToGo(val)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = gv
	}
	return out, nil
}
