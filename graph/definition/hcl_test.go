package definition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/flowchart-go/graph"
	"github.com/dshills/flowchart-go/graph/host"
)

const routeHCL = `
name  = "route"
start = "route"

node "route" {
  kind       = "switch"
  expression = "country"
  cases      = { NL = "eu", "US" = "us", XX = null }
  null_case  = "unknown"
  default    = "world"
}

node "eu" {
  kind   = "step"
  action = "eu"
}

node "us" {
  kind = "split"
  branches = ["east", "west"]
}

node "east" {
  kind = "step"
  next = "coast"
}

node "west" {
  kind = "step"
  next = "coast"
}

node "coast" {
  kind = "merge"
  join = "first"
}

node "unknown" {
  kind = "step"
}

node "world" {
  kind       = "decision"
  expression = "vip == true"
  on_true    = "eu"
}
`

func TestParseHCL_Structure(t *testing.T) {
	fc, err := ParseHCL([]byte(routeHCL), "route.hcl", NewRegistry(host.Assign("region", `"eu"`).Named("eu")))
	require.NoError(t, err)
	assert.Equal(t, "route", fc.Name)
	assert.Equal(t, "route", fc.Start.ID)

	route := fc.Start
	assert.Equal(t, graph.KindSwitch, route.Kind)
	require.Len(t, route.Cases, 3)
	assert.Equal(t, "eu", route.Cases["NL"].ID)
	assert.Equal(t, "us", route.Cases["US"].ID)
	assert.Nil(t, route.Cases["XX"])
	assert.Equal(t, "unknown", route.NullCase.ID)
	assert.Equal(t, "world", route.Default.ID)

	us := route.Cases["US"]
	require.Len(t, us.Branches, 2)
	assert.Equal(t, "east", us.Branches[0].ID)
	assert.Equal(t, graph.JoinFirst, us.Branches[0].Next.Join)

	world := route.Default
	assert.Equal(t, graph.KindDecision, world.Kind)
	assert.Nil(t, world.False)

	_, err = fc.Compile()
	require.NoError(t, err)
}

func TestParseHCL_Runs(t *testing.T) {
	reg := NewRegistry(host.Assign("region", `"eu"`).Named("eu"))
	def, err := Load(nil, FormatHCL, routeHCL, reg)
	require.NoError(t, err)

	tests := []struct {
		name string
		vars host.Variables
		want any
	}{
		{"case", host.Variables{"country": "NL"}, "eu"},
		{"default then decision", host.Variables{"country": "FR", "vip": true}, "eu"},
		{"case ending the branch", host.Variables{"country": "XX"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := host.New(def, host.WithVariables(tt.vars))
			require.NoError(t, err)

			status, err := rt.Start(context.Background())
			require.NoError(t, err)
			assert.Equal(t, graph.StatusCompleted, status)
			assert.Equal(t, tt.want, rt.Variables()["region"])
		})
	}
}

func TestParseHCL_ValidateUnconnected(t *testing.T) {
	src := `
start = "a"
validate_unconnected = true

node "a" {
  kind = "step"
}

node "orphan" {
  kind = "step"
}
`
	fc, err := ParseHCL([]byte(src), "orphan.hcl", nil)
	require.NoError(t, err)
	assert.True(t, fc.ValidateUnconnectedNodes)

	_, err = fc.Compile()
	var verr *graph.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "orphan", verr.Problems[0].NodeID)
}

func TestParseHCL_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `start = `},
		{"missing start", `node "a" { kind = "step" }`},
		{"undeclared start", `
start = "b"
node "a" { kind = "step" }`},
		{"unknown kind", `
start = "a"
node "a" { kind = "loop" }`},
		{"unknown reference", `
start = "a"
node "a" {
  kind = "step"
  next = "b"
}`},
		{"duplicate node", `
start = "a"
node "a" { kind = "step" }
node "a" { kind = "step" }`},
		{"decision without expression", `
start = "a"
node "a" { kind = "decision" }`},
		{"action and expression", `
start = "a"
node "a" {
  kind       = "decision"
  action     = "x"
  expression = "true"
}`},
		{"cases not an object", `
start = "a"
node "a" {
  kind       = "switch"
  expression = "x"
  cases      = ["a"]
}`},
		{"case target not a string", `
start = "a"
node "a" {
  kind       = "switch"
  expression = "x"
  cases      = { k = 3 }
}`},
		{"unknown attribute", `
start = "a"
node "a" {
  kind  = "step"
  color = "red"
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHCL([]byte(tt.src), "bad.hcl", NewRegistry())
			require.Error(t, err)
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(host.Assign("a", "1").Named("one"))
	reg.Register("two", host.Assign("b", "2"))

	assert.Equal(t, []string{"one", "two"}, reg.Names())

	a, err := reg.Lookup("two")
	require.NoError(t, err)
	assert.Equal(t, "b = 2", a.Name())

	_, err = reg.Lookup("three")
	require.ErrorIs(t, err, ErrUnknownAction)

	reg.Condition = nil
	_, err = reg.condition("x")
	require.Error(t, err)
}
