package hclconf

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/config"
)

// translateOptions turns an `options = { ... }` (or `defaults = { ... }`)
// object expression into the model's ordered option list. hcl.ExprMap yields
// the pairs in source order, which keeps the serialized command line of a
// stage identical across runs of the same definition.
func translateOptions(path, owner string, expr hcl.Expression) ([]config.Option, error) {
	if expr == nil {
		return nil, nil
	}
	// An absent optional expression decodes as a null literal.
	if v, diags := expr.Value(nil); !diags.HasErrors() && v.IsNull() {
		return nil, nil
	}

	pairs, diags := hcl.ExprMap(expr)
	if diags.HasErrors() {
		return nil, config.Malformedf(path, "%s: options must be an object of key = value entries", owner)
	}

	opts := make([]config.Option, 0, len(pairs))
	for _, pair := range pairs {
		key, diags := pair.Key.Value(nil)
		if diags.HasErrors() || key.Type() != cty.String {
			return nil, config.Malformedf(path, "%s: option keys must be static strings", owner)
		}
		val, diags := pair.Value.Value(nil)
		if diags.HasErrors() {
			return nil, &config.MalformedConfigError{
				Path:   path,
				Detail: owner + ": option values must be literals",
				Err:    diags,
			}
		}
		opts = append(opts, config.Option{Key: key.AsString(), Value: val})
	}
	return opts, nil
}
