package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/QuenKar/databend/conf"
	"github.com/QuenKar/databend/errors"
	"github.com/QuenKar/databend/kvapi"
	"github.com/QuenKar/databend/leveldbkv"
	"github.com/QuenKar/databend/memkv"
	"github.com/QuenKar/databend/metrics"
	"github.com/QuenKar/databend/metrics/prometheus"
	"github.com/QuenKar/databend/pebblekv"
)

// metactl is a small inspection tool for a local meta kv store:
//
//	metactl -conf <config_file> -node <node_id> get <key>
//	metactl -conf <config_file> -node <node_id> put <key> <value>
//	metactl -conf <config_file> -node <node_id> delete <key>
//	metactl -conf <config_file> -node <node_id> list <prefix>
type runner struct {
	out io.Writer
}

func (r *runner) run(args []string) error {
	if len(args) < 5 || args[0] != "-conf" || args[2] != "-node" {
		return errors.New("please run with -conf <config_file> -node <node_id> <get|put|delete|list> ...")
	}
	nodeID, err := strconv.ParseInt(args[3], 10, 32)
	if err != nil {
		return errors.WithStack(err)
	}
	cfg, err := conf.Load(args[1])
	if err != nil {
		return err
	}
	cfg.NodeID = int(nodeID)
	if err := cfg.Log.Configure(); err != nil {
		return err
	}
	builder, err := builderForConfig(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := builder.BuildOne(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)
	if cfg.EnableMetrics {
		factory := prometheus.NewFactory(cfg)
		if err := factory.Start(); err != nil {
			return err
		}
		defer stopFactory(factory)
		instrumented, err := metrics.NewInstrumentedKV(store, factory)
		if err != nil {
			return err
		}
		store = instrumented
	}
	return r.execCommand(ctx, store, args[4], args[5:])
}

func (r *runner) execCommand(ctx context.Context, store kvapi.KVApi, command string, args []string) error {
	switch command {
	case "get":
		if len(args) != 1 {
			return errors.New("get requires a key")
		}
		reply, err := store.GetKV(ctx, args[0])
		if err != nil {
			return err
		}
		if reply == nil {
			fmt.Fprintf(r.out, "(not found)\n")
			return nil
		}
		fmt.Fprintf(r.out, "seq:%d %s\n", reply.Seq, reply.Value)
		return nil
	case "put":
		if len(args) != 2 {
			return errors.New("put requires a key and a value")
		}
		reply, err := store.UpsertKV(ctx, kvapi.NewUpsertRequest(args[0], []byte(args[1])))
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "seq:%d\n", reply.Result.Seq)
		return nil
	case "delete":
		if len(args) != 1 {
			return errors.New("delete requires a key")
		}
		reply, err := store.UpsertKV(ctx, kvapi.UpsertRequest{Key: args[0], Value: kvapi.DeleteValue()})
		if err != nil {
			return err
		}
		if reply.Applied() {
			fmt.Fprintf(r.out, "deleted\n")
		} else {
			fmt.Fprintf(r.out, "(not found)\n")
		}
		return nil
	case "list":
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		reply, err := store.PrefixListKV(ctx, prefix)
		if err != nil {
			return err
		}
		for _, pair := range reply {
			fmt.Fprintf(r.out, "%s seq:%d %s\n", pair.Key, pair.Value.Seq, pair.Value.Value)
		}
		return nil
	default:
		return errors.Errorf("unknown command %s", command)
	}
}

func builderForConfig(cfg conf.Config) (kvapi.ApiBuilder, error) {
	switch cfg.Engine {
	case conf.EngineMem:
		return memkv.NewBuilder(), nil
	case conf.EnginePebble:
		return pebblekv.NewBuilder(nodeDir(cfg)), nil
	case conf.EngineLevelDB:
		return leveldbkv.NewBuilder(nodeDir(cfg)), nil
	default:
		return nil, errors.NewInvalidConfigurationError(fmt.Sprintf("unknown engine %s", cfg.Engine))
	}
}

func nodeDir(cfg conf.Config) string {
	return filepath.Join(cfg.DataDir, fmt.Sprintf("node-%04d", cfg.NodeID))
}

func closeStore(store kvapi.KVApi) {
	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			fmt.Printf("failed to close store %v\n", err)
		}
	}
}

func stopFactory(factory metrics.Factory) {
	if err := factory.Stop(); err != nil {
		fmt.Printf("failed to stop metrics factory %v\n", err)
	}
}
