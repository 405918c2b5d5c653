package config

import "github.com/zclconf/go-cty/cty"

// Validate checks the structural invariants every loaded pipeline must hold,
// independent of the source format. It returns a *MalformedConfigError on
// the first violation found.
func (p *Pipeline) Validate() error {
	globals := make(map[string]struct{}, len(p.Globals))
	for _, g := range p.Globals {
		if g.Name == "" {
			return Malformedf(p.Source, "global bundle with empty name")
		}
		if _, dup := globals[g.Name]; dup {
			return Malformedf(p.Source, "duplicate global bundle %q", g.Name)
		}
		if g.Path == "" {
			return Malformedf(p.Source, "global bundle %q has no path", g.Name)
		}
		globals[g.Name] = struct{}{}
		for _, opt := range g.Defaults {
			if err := checkOptionValue(p.Source, "global "+g.Name, opt); err != nil {
				return err
			}
		}
	}

	if len(p.Stages) == 0 {
		return Malformedf(p.Source, "pipeline declares no stages")
	}

	stages := make(map[string]struct{}, len(p.Stages))
	for _, s := range p.Stages {
		if s.Name == "" {
			return Malformedf(p.Source, "stage with empty name")
		}
		if _, dup := stages[s.Name]; dup {
			return Malformedf(p.Source, "duplicate stage %q", s.Name)
		}
		stages[s.Name] = struct{}{}

		if s.Exec == "" {
			return Malformedf(p.Source, "stage %q has no exec", s.Name)
		}
		if s.Script == "" {
			return Malformedf(p.Source, "stage %q has no script", s.Name)
		}
		if s.MemoryGB < 0 {
			return Malformedf(p.Source, "stage %q declares negative memory_gb", s.Name)
		}
		if s.Timeout < 0 {
			return Malformedf(p.Source, "stage %q declares negative timeout", s.Name)
		}
		for _, name := range s.Globals {
			if _, ok := globals[name]; !ok {
				return Malformedf(p.Source, "stage %q references undeclared global %q", s.Name, name)
			}
		}
		seen := make(map[string]struct{}, len(s.Options))
		for _, opt := range s.Options {
			if _, dup := seen[opt.Key]; dup {
				return Malformedf(p.Source, "stage %q declares option %q twice", s.Name, opt.Key)
			}
			seen[opt.Key] = struct{}{}
			if err := checkOptionValue(p.Source, "stage "+s.Name, opt); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkOptionValue enforces the closed option type set: string, number,
// bool, or a list/tuple of those. Nested collections and null values are
// rejected here rather than surfacing later as a broken command line.
func checkOptionValue(path, owner string, opt Option) error {
	if opt.Key == "" {
		return Malformedf(path, "%s declares an option with empty key", owner)
	}
	v := opt.Value
	if v.IsNull() || !v.IsKnown() {
		return Malformedf(path, "%s option %q has no usable value", owner, opt.Key)
	}
	t := v.Type()
	if isScalar(t) {
		return nil
	}
	if t.IsListType() || t.IsSetType() || t.IsTupleType() {
		for it := v.ElementIterator(); it.Next(); {
			_, el := it.Element()
			if el.IsNull() || !isScalar(el.Type()) {
				return Malformedf(path, "%s option %q: list elements must be string, number or bool", owner, opt.Key)
			}
		}
		return nil
	}
	return Malformedf(path, "%s option %q has unsupported type %s", owner, opt.Key, t.FriendlyName())
}

func isScalar(t cty.Type) bool {
	return t == cty.String || t == cty.Number || t == cty.Bool
}
