package storagesvc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intigym/backoffice/core"
)

func newTestStorage(t *testing.T) *localStorage {
	conf := core.NewTestConfig()
	conf.Storage.MediaDir = t.TempDir()
	conf.Storage.MediaURL = "/media/"
	s, err := NewLocalStorage(conf)
	require.NoError(t, err)
	return s
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	url, err := s.Save(ctx, "12345678-1700000000000.jpg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "/media/fotos-clientes/12345678-1700000000000.jpg", url)

	path := filepath.Join(s.Dir(), PhotosBucket, "12345678-1700000000000.jpg")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	// same name twice
	_, err = s.Save(ctx, "12345678-1700000000000.jpg", strings.NewReader("jpeg"))
	assert.Error(t, err)

	require.NoError(t, s.Delete(ctx, url))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// already deleted, foreign and traversal urls are ignored
	assert.NoError(t, s.Delete(ctx, url))
	assert.NoError(t, s.Delete(ctx, "https://cdn.example.com/x.jpg"))
	assert.NoError(t, s.Delete(ctx, "/media/fotos-clientes/../secret"))
}

func TestLocalStorageSaveStripsDirectories(t *testing.T) {
	s := newTestStorage(t)
	url, err := s.Save(context.Background(), "../../evil.png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "/media/fotos-clientes/evil.png", url)
}
