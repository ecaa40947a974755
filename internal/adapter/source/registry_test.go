package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentifier/rentifier/internal/domain"
)

type stubConnector struct{ name string }

func (s *stubConnector) Name() string { return s.name }

func (s *stubConnector) FetchNew(context.Context, []byte, domain.ConnectorStore) (domain.FetchResult, error) {
	return domain.FetchResult{}, nil
}

func (s *stubConnector) Normalize(domain.ListingCandidate) (domain.ListingDraft, error) {
	return domain.ListingDraft{}, nil
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(&stubConnector{name: "alpha"}, &stubConnector{name: "beta"})

	c, ok := reg.Lookup("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", c.Name())

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry(&stubConnector{name: "beta"}, &stubConnector{name: "alpha"})
	assert.ElementsMatch(t, []string{"alpha", "beta"}, reg.Names())
}

func TestRegistryEmpty(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Lookup("anything")
	assert.False(t, ok)
	assert.Empty(t, reg.Names())
}
