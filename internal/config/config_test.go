package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, DefaultMaxFileSize, c.Upload.MaxFileSize)
	assert.Equal(t, "/uploads", c.Upload.PublicURLPrefix)
	assert.ElementsMatch(t, []string{"model/gltf-binary", "model/gltf+json", "application/octet-stream", "application/json"}, c.Upload.AllowedMimeTypes)
	assert.Equal(t, DefaultThumbnailURL, c.Thumbnail.DefaultURL)
	assert.Equal(t, "X-Session-ID", c.Session.Header)
	assert.Equal(t, "sessionId", c.Session.Cookie)
}

func TestInit_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8080"
database:
  driver: "sqlite"
upload:
  max_file_size: 1024
`), 0o644))
	t.Setenv("VIEWER_SERVER_PORT", "9090")

	Init(path)
	assert.Equal(t, "9090", Conf.Server.Port)
	assert.Equal(t, "sqlite", Conf.Database.Driver)
	assert.EqualValues(t, 1024, Conf.Upload.MaxFileSize)
	// 文件中未出现的键使用默认值
	assert.Equal(t, "/uploads", Conf.Upload.PublicURLPrefix)
}
