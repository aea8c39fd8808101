package shipping_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipquote/pkg/shipping"
	"github.com/tournevent/shipquote/pkg/shipping/mock"
)

func TestRegistry_Register(t *testing.T) {
	registry := shipping.NewRegistry()

	registry.Register(mock.New("weightBased"), shipping.IntegrationModule{Name: "Weight based"})

	got, err := registry.Module("weightBased")
	require.NoError(t, err, "module should be registered")
	assert.Equal(t, "weightBased", got.Code())

	meta, ok := registry.Metadata("weightBased")
	require.True(t, ok)
	assert.Equal(t, "weightBased", meta.Code)
	assert.Equal(t, "Weight based", meta.Name)
}

func TestRegistry_Register_Override(t *testing.T) {
	registry := shipping.NewRegistry()

	registry.Register(mock.New("weightBased"), shipping.IntegrationModule{})
	assert.Equal(t, 1, registry.Count())

	// Register again with same code should override
	registry.Register(mock.New("weightBased"), shipping.IntegrationModule{})
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_Module_NotFound(t *testing.T) {
	registry := shipping.NewRegistry()

	_, err := registry.Module("nonexistent")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shipping.ErrModuleNotFound))
}

func TestRegistry_Processors_KeepOrder(t *testing.T) {
	registry := shipping.NewRegistry()

	registry.RegisterProcessor(mock.NewProcessor("b"), shipping.PhasePre)
	registry.RegisterProcessor(mock.NewProcessor("a"), shipping.PhasePre)
	registry.RegisterProcessor(mock.NewProcessor("analytics"), shipping.PhasePost)

	pre := registry.PreProcessors()
	require.Len(t, pre, 2)
	assert.Equal(t, "b", pre[0].Code())
	assert.Equal(t, "a", pre[1].Code())

	post := registry.PostProcessors()
	require.Len(t, post, 1)
	assert.Equal(t, "analytics", post[0].Code())

	assert.True(t, registry.IsProcessor("a"))
	assert.False(t, registry.IsProcessor("weightBased"))
}

func TestRegistry_RegisterProcessor_ReplaceKeepsPosition(t *testing.T) {
	registry := shipping.NewRegistry()

	registry.RegisterProcessor(mock.NewProcessor("a"), shipping.PhasePre)
	registry.RegisterProcessor(mock.NewProcessor("b"), shipping.PhasePre)
	registry.RegisterProcessor(mock.NewProcessor("a"), shipping.PhasePre)

	pre := registry.PreProcessors()
	require.Len(t, pre, 2)
	assert.Equal(t, "a", pre[0].Code())
}

func TestRegistry_Processor_NotFound(t *testing.T) {
	registry := shipping.NewRegistry()

	_, err := registry.Processor("missing")
	assert.True(t, errors.Is(err, shipping.ErrProcessorNotFound))
}

func TestRegistry_ModulesForCountry(t *testing.T) {
	registry := shipping.NewRegistry()

	registry.Register(mock.New("canadapost"), shipping.IntegrationModule{Regions: []string{"CA"}})
	registry.Register(mock.New("weightBased"), shipping.IntegrationModule{Regions: []string{"*"}})
	registry.Register(mock.New("storePick"), shipping.IntegrationModule{})

	ca := registry.ModulesForCountry("CA")
	require.Len(t, ca, 3)
	assert.Equal(t, "canadapost", ca[0].Code)

	us := registry.ModulesForCountry("US")
	require.Len(t, us, 2)
	assert.Equal(t, "storePick", us[0].Code)
	assert.Equal(t, "weightBased", us[1].Code)
}

func TestRegistry_Codes(t *testing.T) {
	registry := shipping.NewRegistry()

	registry.Register(mock.New("weightBased"), shipping.IntegrationModule{})
	registry.Register(mock.New("canadapost"), shipping.IntegrationModule{})

	assert.Equal(t, []string{"canadapost", "weightBased"}, registry.Codes())
}

func TestIntegrationModule_SupportsCountry(t *testing.T) {
	meta := shipping.IntegrationModule{Regions: []string{"CA", "US"}}

	assert.True(t, meta.SupportsCountry("ca"))
	assert.True(t, meta.SupportsCountry("US"))
	assert.False(t, meta.SupportsCountry("FR"))
	assert.True(t, shipping.IntegrationModule{Regions: []string{"*"}}.SupportsCountry("fr"))
	assert.True(t, shipping.IntegrationModule{}.SupportsCountry("fr"))
}
