//go:build integration

package integration

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/cobalt/internal/cache"
	"github.com/agenthands/cobalt/internal/config"
	"github.com/agenthands/cobalt/internal/core/model"
	"github.com/agenthands/cobalt/internal/kb"
)

func TestWikidataSearchAndLink(t *testing.T) {
	_ = godotenv.Load("../../.env")
	if os.Getenv("COBALT_LIVE_KB") == "" {
		t.Skip("Skipping integration test: COBALT_LIVE_KB not set")
	}

	cfg := config.Default()
	cfg.ApplyEnv()

	w := kb.NewWikidataClient(cfg.KB.Endpoint, cfg.KB.Language, cache.NewMemory())

	candidates, err := w.Search(context.Background(), "Barack Obama", model.TypePerson, 5)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, "Q76")

	linker := kb.NewLinker(w, w, nil, cfg.KB)
	linked, err := linker.Link(context.Background(), "Barack Obama", model.TypePerson,
		[]string{"President Barack Obama addressed the United States Congress."})
	require.NoError(t, err)
	assert.Equal(t, "Q76", linked.ID)
	assert.NotEmpty(t, linked.TypePath)
}

func TestGraphBackendConnectivity(t *testing.T) {
	_ = godotenv.Load("../../.env")
	uri := os.Getenv("KB_GRAPH_URI")
	if uri == "" {
		t.Skip("Skipping integration test: KB_GRAPH_URI not set")
	}

	g, err := kb.NewGraphKB(uri, os.Getenv("KB_GRAPH_USER"), os.Getenv("KB_GRAPH_PASSWORD"), nil)
	require.NoError(t, err)
	defer g.Close(context.Background())

	require.NoError(t, g.BuildIndices(context.Background()))

	// The store may be empty; only the query path is under test here.
	_, err = g.Search(context.Background(), "Barack Obama", model.TypePerson, 5)
	assert.NoError(t, err)
}
