package technique

import (
	"context"
	"testing"

	"github.com/BaSui01/promptenhancer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTechnique struct{ prefix string }

func (s stubTechnique) Apply(_ context.Context, text string, _ types.TechniqueContext) (string, error) {
	return s.prefix + text, nil
}
func (s stubTechnique) ValidateInput(text string, _ types.TechniqueContext) bool { return text != "" }
func (s stubTechnique) EstimateTokens(text string) int                          { return len(text) / 4 }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	err := r.Register(types.TechniqueDescriptor{ID: "cot", Priority: 1, Enabled: true}, stubTechnique{prefix: "[cot] "})
	require.NoError(t, err)

	desc, impl, ok := r.Get("cot")
	require.True(t, ok)
	assert.Equal(t, 1, desc.Priority)
	assert.NotNil(t, impl)
}

func TestRegistry_IdempotentReRegistration(t *testing.T) {
	r := NewRegistry(nil)
	desc := types.TechniqueDescriptor{ID: "cot", Priority: 1, Enabled: true}
	require.NoError(t, r.Register(desc, stubTechnique{}))
	require.NoError(t, r.Register(desc, stubTechnique{}))
}

func TestRegistry_ConflictingReRegistrationRejected(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "cot", Priority: 1, Enabled: true}, stubTechnique{}))
	err := r.Register(types.TechniqueDescriptor{ID: "cot", Priority: 2, Enabled: true}, stubTechnique{})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegistry_ListEnabledSortedByPriority(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "z", Priority: 5, Enabled: true}, stubTechnique{}))
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "a", Priority: 1, Enabled: true}, stubTechnique{}))
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "b", Priority: 1, Enabled: true}, stubTechnique{}))
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "disabled", Priority: 0, Enabled: false}, stubTechnique{}))

	list := r.ListEnabled()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "b", "z"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "cot", Priority: 1, Enabled: true}, stubTechnique{}))
	require.NoError(t, r.Unregister("cot"))
	_, _, ok := r.Get("cot")
	assert.False(t, ok)

	err := r.Unregister("cot")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Validate(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "cot", Priority: 1, Enabled: true}, stubTechnique{}))
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "disabled", Priority: 1, Enabled: false}, stubTechnique{}))

	unknown := r.Validate([]string{"cot", "disabled", "nope"})
	assert.ElementsMatch(t, []string{"disabled", "nope"}, unknown)
}

func TestRegistry_IsEnabledAndPriority(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "cot", Priority: 7, Enabled: true}, stubTechnique{}))

	assert.True(t, r.IsEnabled("cot"))
	assert.False(t, r.IsEnabled("nope"))

	p, ok := r.Priority("cot")
	require.True(t, ok)
	assert.Equal(t, 7, p)
}
