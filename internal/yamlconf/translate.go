package yamlconf

import (
	"gopkg.in/yaml.v3"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/config"
)

// translateOptions turns an options mapping node into the model's ordered
// option list, converting scalar values into the closed cty variant set.
func translateOptions(path, owner string, node *yaml.Node) ([]config.Option, error) {
	if node == nil || node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, config.Malformedf(path, "%s: options must be a mapping", owner)
	}
	opts := make([]config.Option, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		v, err := valueFromNode(path, owner, key, value)
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.Option{Key: key, Value: v})
	}
	return opts, nil
}

// valueFromNode converts a YAML scalar or flat sequence into a cty value.
// YAML's resolved tag picks the variant; anything beyond string, number,
// bool or a flat list of those is rejected.
func valueFromNode(path, owner, key string, node *yaml.Node) (cty.Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return scalarFromNode(path, owner, key, node)
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, 0, len(node.Content))
		for _, el := range node.Content {
			if el.Kind != yaml.ScalarNode {
				return cty.NilVal, config.Malformedf(path, "%s option %q: list elements must be scalars", owner, key)
			}
			v, err := scalarFromNode(path, owner, key, el)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, v)
		}
		return cty.TupleVal(elems), nil
	default:
		return cty.NilVal, config.Malformedf(path, "%s option %q has unsupported structure", owner, key)
	}
}

func scalarFromNode(path, owner, key string, node *yaml.Node) (cty.Value, error) {
	switch node.Tag {
	case "!!str":
		return cty.StringVal(node.Value), nil
	case "!!int", "!!float":
		v, err := cty.ParseNumberVal(node.Value)
		if err != nil {
			return cty.NilVal, config.Malformedf(path, "%s option %q: invalid number %q", owner, key, node.Value)
		}
		return v, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return cty.NilVal, config.Malformedf(path, "%s option %q: invalid bool %q", owner, key, node.Value)
		}
		return cty.BoolVal(b), nil
	default:
		return cty.NilVal, config.Malformedf(path, "%s option %q has unsupported value type %s", owner, key, node.Tag)
	}
}
