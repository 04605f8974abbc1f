package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuenKar/databend/errors"
)

func TestValidate(t *testing.T) {
	valid := Config{NodeID: 0, Engine: EngineMem}
	require.NoError(t, valid.Validate())

	valid = Config{NodeID: 2, Engine: EnginePebble, DataDir: "/tmp/data"}
	require.NoError(t, valid.Validate())

	invalid := []Config{
		{NodeID: -1, Engine: EngineMem},
		{Engine: ""},
		{Engine: "rocksdb"},
		{Engine: EnginePebble},  // missing DataDir
		{Engine: EngineLevelDB}, // missing DataDir
		{Engine: EngineMem, EnableMetrics: true},
	}
	for _, cfg := range invalid {
		err := cfg.Validate()
		require.Error(t, err)
		var metaErr errors.MetaError
		require.True(t, errors.As(err, &metaErr))
		require.Equal(t, errors.InvalidConfiguration, metaErr.Code)
	}
}

func TestLoadJsonc(t *testing.T) {
	content := `{
  // comments are allowed in config files
  "node_id": 1,
  "engine": "leveldb",
  "data_dir": "/tmp/metakv",
  "log": {
    "level": "debug"
  }
}`
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.NodeID)
	require.Equal(t, EngineLevelDB, cfg.Engine)
	require.Equal(t, "/tmp/metakv", cfg.DataDir)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"engine": "bogus"}`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
