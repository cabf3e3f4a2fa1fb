package modeladapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ModelNotFound_Suggestions(t *testing.T) {
	r := NewRegistry()
	r.Register(NewStubProvider(nil), []Model{
		{ProviderID: "anthropic", ModelID: "claude-sonnet-4-20250514"},
		{ProviderID: "anthropic", ModelID: "claude-3-5-haiku-20241022"},
	})

	_, err := r.Model("anthropic", "claude-sonnet-4-202505")
	require.Error(t, err)

	var notFound *ModelNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.NotEmpty(t, notFound.Suggestions)
	assert.LessOrEqual(t, len(notFound.Suggestions), 5)
	assert.Equal(t, "anthropic/claude-sonnet-4-20250514", notFound.Suggestions[0])
}

func TestRegistry_DefaultModel(t *testing.T) {
	r := NewRegistry()
	r.Register(NewStubProvider(nil), []Model{{ProviderID: "stub", ModelID: "default"}})
	r.SetDefault(Model{ProviderID: "stub", ModelID: "default"})

	m, err := r.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "default", m.ModelID)
}
