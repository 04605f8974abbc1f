package conf

import (
	"encoding/json"
	"fmt"
	"os"

	"muzzammil.xyz/jsonc"

	"github.com/QuenKar/databend/errors"
	"github.com/QuenKar/databend/log"
)

const (
	EngineMem     = "mem"
	EnginePebble  = "pebble"
	EngineLevelDB = "leveldb"
)

type Config struct {
	NodeID                int        `json:"node_id,omitempty"`
	Engine                string     `json:"engine,omitempty"` // mem, pebble or leveldb
	DataDir               string     `json:"data_dir,omitempty"`
	EnableMetrics         bool       `json:"enable_metrics,omitempty"`
	MetricsHTTPListenAddr string     `json:"metrics_http_listen_addr,omitempty"`
	Log                   log.Config `json:"log,omitempty"`
}

func (c *Config) Validate() error {
	if c.NodeID < 0 {
		return errors.NewInvalidConfigurationError("NodeID must be >= 0")
	}
	switch c.Engine {
	case EngineMem:
		// no data dir needed
	case EnginePebble, EngineLevelDB:
		if c.DataDir == "" {
			return errors.NewInvalidConfigurationError(fmt.Sprintf("DataDir must be specified for engine %s", c.Engine))
		}
	default:
		return errors.NewInvalidConfigurationError(fmt.Sprintf("Engine must be %s, %s or %s", EngineMem, EnginePebble, EngineLevelDB))
	}
	if c.EnableMetrics && c.MetricsHTTPListenAddr == "" {
		return errors.NewInvalidConfigurationError("MetricsHTTPListenAddr must be specified when metrics are enabled")
	}
	return nil
}

// Load reads a config file and validates it. The file is jsonc, i.e. JSON
// with comments allowed.
func Load(path string) (Config, error) {
	cfg := Config{}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WithStack(err)
	}
	b = jsonc.ToJSON(b)
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.WithStack(err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
