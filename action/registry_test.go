package action_test

import (
	"testing"

	"pkg.world.dev/lockstep/action"
	"pkg.world.dev/lockstep/assert"
	"pkg.world.dev/lockstep/types"
)

type fooAction struct {
	types.ActionBase
	Amount int `json:"amount"`
}

type barAction struct {
	types.ActionBase
	Label string `json:"label"`
}

type bazAction struct {
	types.ActionBase
}

const bothSides = types.LeaderSynchronized | types.FollowerSynchronized

func newTestRegistry(t *testing.T) *action.Registry {
	t.Helper()
	r := action.NewRegistry()
	action.Register[fooAction](r, 1, "test.foo", bothSides)
	action.Register[barAction](r, 2, "test.bar", bothSides,
		action.WithAttribute("owner", "platform"))
	return r
}

func TestRegisterAndLookup(t *testing.T) {
	r := newTestRegistry(t)
	r.Initialize()
	assert.True(t, r.IsInitialized())
	assert.Equal(t, r.Count(), 2)

	spec := r.ByCode(1)
	assert.Equal(t, spec.Name, "test.foo")
	assert.Equal(t, spec.Flags, bothSides)

	spec = r.ByName("test.bar")
	assert.Equal(t, spec.Code, int32(2))
	assert.Equal(t, spec.Attributes["owner"], "platform")

	spec = r.SpecOf(&fooAction{Amount: 3})
	assert.Equal(t, spec.Code, int32(1))

	_, ok := r.LookupCode(99)
	assert.False(t, ok)
	_, ok = r.LookupName("test.nope")
	assert.False(t, ok)
	_, ok = r.LookupType(&bazAction{})
	assert.False(t, ok)
}

func TestSpecsAreSortedByCode(t *testing.T) {
	r := action.NewRegistry()
	action.Register[barAction](r, 30, "test.bar", bothSides)
	action.Register[fooAction](r, 2, "test.foo", bothSides)
	action.Register[bazAction](r, 17, "test.baz", bothSides)
	r.Initialize()

	specs := r.Specs()
	assert.Equal(t, len(specs), 3)
	assert.Equal(t, specs[0].Code, int32(2))
	assert.Equal(t, specs[1].Code, int32(17))
	assert.Equal(t, specs[2].Code, int32(30))
}

func TestSpecDecode(t *testing.T) {
	r := newTestRegistry(t)
	r.Initialize()

	a, err := r.ByCode(1).Decode([]byte(`{"amount": 42}`))
	assert.NilError(t, err)
	foo, ok := a.(*fooAction)
	assert.True(t, ok)
	assert.Equal(t, foo.Amount, 42)

	_, err = r.ByCode(1).Decode([]byte(`not json`))
	assert.Assert(t, err != nil)
}

func TestRegisterIntegrityViolationsPanic(t *testing.T) {
	testCases := []struct {
		name     string
		register func(r *action.Registry)
	}{
		{
			name: "duplicate code",
			register: func(r *action.Registry) {
				action.Register[barAction](r, 1, "test.bar", bothSides)
			},
		},
		{
			name: "duplicate name",
			register: func(r *action.Registry) {
				action.Register[barAction](r, 2, "test.foo", bothSides)
			},
		},
		{
			name: "duplicate type",
			register: func(r *action.Registry) {
				action.Register[fooAction](r, 2, "test.foo2", bothSides)
			},
		},
		{
			name: "non-positive code",
			register: func(r *action.Registry) {
				action.Register[barAction](r, 0, "test.bar", bothSides)
			},
		},
		{
			name: "invalid name",
			register: func(r *action.Registry) {
				action.Register[barAction](r, 2, "-leading-dash", bothSides)
			},
		},
		{
			name: "no execute flags",
			register: func(r *action.Registry) {
				action.Register[barAction](r, 2, "test.bar", 0)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := action.NewRegistry()
			action.Register[fooAction](r, 1, "test.foo", bothSides)
			assert.Panics(t, func() { tc.register(r) })
		})
	}
}

func TestInitializeSealsRegistry(t *testing.T) {
	r := newTestRegistry(t)
	r.Initialize()
	assert.Panics(t, func() {
		action.Register[bazAction](r, 3, "test.baz", bothSides)
	})
	assert.Panics(t, func() { r.Initialize() })
}

func TestInitializeEmptyRegistryPanics(t *testing.T) {
	r := action.NewRegistry()
	assert.Panics(t, func() { r.Initialize() })
}

func TestPanickingLookupsOnUnknown(t *testing.T) {
	r := newTestRegistry(t)
	r.Initialize()
	assert.Panics(t, func() { r.ByCode(404) })
	assert.Panics(t, func() { r.ByName("test.missing") })
	assert.Panics(t, func() { r.SpecOf(&bazAction{}) })
}
