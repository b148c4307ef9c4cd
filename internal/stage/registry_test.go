package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusesell/fusesell/pkg/schema"
)

type stubStage struct {
	name string
}

func (s *stubStage) Name() string { return s.name }
func (s *stubStage) Execute(ctx context.Context, sc *Context) (*Result, error) {
	return &Result{Stage: s.name, Status: schema.StageResultSuccess}, nil
}
func (s *stubStage) Validate(sc *Context) bool { return true }

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubStage{name: "data_acquisition"}))

	s, err := reg.Get("data_acquisition")
	require.NoError(t, err)
	assert.Equal(t, "data_acquisition", s.Name())
	assert.True(t, reg.Has("data_acquisition"))
	assert.Equal(t, 1, reg.Count())
}

func TestRegistryDuplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubStage{name: "lead_scoring"}))

	err := reg.Register(&stubStage{name: "lead_scoring"})
	require.Error(t, err)
	var serr *schema.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.ErrCodeConflict, serr.Code)
}

func TestRegistryRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(nil))
	assert.Error(t, reg.Register(&stubStage{name: ""}))
}

func TestRegistryOrderedPreservesRegistration(t *testing.T) {
	reg := NewRegistry()
	for _, name := range CanonicalOrder {
		require.NoError(t, reg.Register(&stubStage{name: name}))
	}

	ordered := reg.Ordered()
	require.Len(t, ordered, len(CanonicalOrder))
	for i, s := range ordered {
		assert.Equal(t, CanonicalOrder[i], s.Name())
	}
}

func TestRegistryGetActionRejectsPlainStage(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubStage{name: "data_preparation"}))

	_, err := reg.GetAction("data_preparation")
	require.Error(t, err)
	var serr *schema.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, schema.ErrCodeInvalidAction, serr.Code)

	_, err = reg.GetAction("missing")
	assert.Error(t, err)
}
