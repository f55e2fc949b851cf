package driver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerwell/ledgerwell/internal/config"
	"github.com/ledgerwell/ledgerwell/internal/store/memstore"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StorageConfig{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, s)

	s, err = Open(ctx, config.StorageConfig{Driver: "FILE", Path: filepath.Join(t.TempDir(), "l.json")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, s)

	_, err = Open(ctx, config.StorageConfig{Driver: "sqlite"}, nil)
	assert.Error(t, err)
}
