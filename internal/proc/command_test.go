package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/resolve"
)

func TestArgv(t *testing.T) {
	rs := &resolve.Stage{
		Spec:        &config.Stage{Name: "mcm", Exec: "python3"},
		ScriptPath:  "/data/scripts/mcm.py",
		GlobalPaths: []string{"/data/paramfiles/paramfile_SAT.yml"},
		Options: []config.Option{
			{Key: "num-sims", Value: cty.NumberIntVal(10)},
			{Key: "sim-sorter", Value: cty.StringVal("fastest-first")},
			{Key: "plot-only", Value: cty.False},
			{Key: "spins", Value: cty.TupleVal([]cty.Value{cty.NumberIntVal(0), cty.NumberIntVal(2)})},
		},
	}

	assert.Equal(t, []string{
		"python3",
		"/data/scripts/mcm.py",
		"--globals=/data/paramfiles/paramfile_SAT.yml",
		"--num-sims=10",
		"--sim-sorter=fastest-first",
		"--plot-only=false",
		"--spins=0,2",
	}, Argv(rs))
}

func TestArgvNoGlobalsNoOptions(t *testing.T) {
	rs := &resolve.Stage{
		Spec:       &config.Stage{Name: "solo", Exec: "sh"},
		ScriptPath: "run.sh",
	}
	assert.Equal(t, []string{"sh", "run.sh"}, Argv(rs))
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		name string
		in   cty.Value
		want string
	}{
		{"string", cty.StringVal("gal070"), "gal070"},
		{"int", cty.NumberIntVal(200), "200"},
		{"float", cty.NumberFloatVal(0.5), "0.5"},
		{"bool true", cty.True, "true"},
		{"bool false", cty.False, "false"},
		{"list", cty.ListVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")}), "a,b"},
		{"mixed tuple", cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.StringVal("x")}), "1,x"},
		{"empty tuple", cty.EmptyTupleVal, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatValue(tc.in))
		})
	}
}
