// Package config loads and validates the daemon's {global, nodes, paths}
// configuration file via viper (YAML/TOML/JSON, with environment
// override support), following the teacher's viper-and-Unmarshal
// pattern from its run command: Load reads the config file into its own
// viper instance (command-line flags are not bound to it), then a single
// Unmarshal decodes it into typed structs.
package config

import (
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/villas-project/villasnode-go/internal/errx"
	"github.com/villas-project/villasnode-go/pkg/api"
	"github.com/villas-project/villasnode-go/pkg/registry"
)

// stringToSliceHook lets paths[].out be written as either a bare node
// name or a list of node names, per the config surface's "node-name |
// [node-name,...]" shape — any single string decoded against a []string
// target field is wrapped into a one-element slice instead of erroring.
func stringToSliceHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Kind, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.Slice {
			return data, nil
		}
		return []string{data.(string)}, nil
	}
}

// Load reads the configuration file at path (any viper-supported format;
// extension determines the decoder) and decodes it into an api.Config.
// It does not validate; call Validate separately once the node-type
// registry is fully populated (built-in node types self-register via
// package init(), so callers only need to import the node subpackages
// for side effect before calling Load).
func Load(path string) (*api.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("villasnode")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errx.Wrapf(api.ErrInvalidConfig, "reading %s: %v", path, err)
	}

	var cfg api.Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToSliceHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, errx.Wrapf(api.ErrInvalidConfig, "decoding %s: %v", path, err)
	}
	for name, n := range cfg.Nodes {
		n.Name = name
		cfg.Nodes[name] = n
	}

	expanded, err := expandReversePaths(cfg.Paths)
	if err != nil {
		return nil, err
	}
	cfg.Paths = expanded

	return &cfg, nil
}

// expandReversePaths implements the reverse: true config surface
// (spec.md §4.4's implicit edge case, made concrete here): a path with
// reverse set and exactly one destination expands into two independent
// path configs, in→out and out→in, each keeping its own rate/queuelen/
// samplelen/hooks — they are not shared.
func expandReversePaths(paths []api.PathConfig) ([]api.PathConfig, error) {
	out := make([]api.PathConfig, 0, len(paths))
	for _, p := range paths {
		if !p.Reverse {
			out = append(out, p)
			continue
		}
		if len(p.Out) != 1 {
			return nil, errx.Wrapf(api.ErrInvalidConfig, "reverse path %q->%v requires exactly one destination", p.In, p.Out)
		}
		forward := p
		forward.Reverse = false
		reverse := p
		reverse.Reverse = false
		reverse.In = p.Out[0]
		reverse.Out = []string{p.In}
		out = append(out, forward, reverse)
	}
	return out, nil
}

// Validate checks a decoded Config against the registries: every path's
// in/out node names resolve, every path has at least one destination,
// every node's type is registered, and every hook type is registered.
// Queue and sample lengths are not checked here. Config errors are returned wrapped in
// api.ErrInvalidConfig so callers can errors.Is against a single
// sentinel regardless of which specific check failed.
func Validate(cfg *api.Config, hookRegisteredTypes func(string) bool) error {
	for name, n := range cfg.Nodes {
		if _, ok := registry.LookupType(n.Type); !ok {
			return errx.Wrapf(api.ErrInvalidConfig, "node %q: unknown type %q", name, n.Type)
		}
	}

	if len(cfg.Paths) == 0 {
		return errx.Wrapf(api.ErrInvalidConfig, "no paths configured")
	}

	for i, p := range cfg.Paths {
		if _, ok := cfg.Nodes[p.In]; !ok {
			return errx.Wrapf(api.ErrInvalidConfig, "paths[%d]: unknown source node %q", i, p.In)
		}
		if len(p.Out) == 0 {
			return errx.Wrapf(api.ErrInvalidConfig, "paths[%d]: %v", i, api.ErrNoDestinations)
		}
		for _, o := range p.Out {
			if _, ok := cfg.Nodes[o]; !ok {
				return errx.Wrapf(api.ErrInvalidConfig, "paths[%d]: unknown destination node %q", i, o)
			}
		}
		for _, h := range p.Hooks {
			if hookRegisteredTypes != nil && !hookRegisteredTypes(h.Type) {
				return errx.Wrapf(api.ErrInvalidConfig, "paths[%d]: unknown hook type %q", i, h.Type)
			}
		}
	}
	return nil
}
