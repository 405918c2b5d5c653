package app

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/config"
)

// parseOverrides turns repeated --set key=value flags into typed options.
// Values are typed the way the definition formats type them: bool and
// number literals keep their type, everything else is a string. An override
// replaces a stage's identically-named option wholly.
func parseOverrides(raw []string) ([]config.Option, error) {
	var opts []config.Option
	for _, entry := range raw {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q: want key=value", entry)
		}
		opts = append(opts, config.Option{Key: key, Value: typedValue(value)})
	}
	return opts, nil
}

func typedValue(s string) cty.Value {
	switch s {
	case "true":
		return cty.True
	case "false":
		return cty.False
	}
	if n, err := cty.ParseNumberVal(s); err == nil {
		return n
	}
	return cty.StringVal(s)
}
