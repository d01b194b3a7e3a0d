package main

import (
	"fmt"
	"log/slog"

	"github.com/villas-project/villasnode-go/pkg/api"
	"github.com/villas-project/villasnode-go/pkg/hook"
	"github.com/villas-project/villasnode-go/pkg/node"
	"github.com/villas-project/villasnode-go/pkg/path"
	"github.com/villas-project/villasnode-go/pkg/registry"
)

// buildNodes instantiates one node.Instance per cfg.Nodes entry.
func buildNodes(cfg *api.Config) (*registry.Nodes, error) {
	nodes := registry.NewNodes()
	for name, n := range cfg.Nodes {
		if _, err := nodes.Build(name, n.Type, n.Settings); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

// buildHookChain instantiates one Hook per HookConfig entry via the hook
// registry, then wraps them in a priority-sorted Chain.
func buildHookChain(hooks []api.HookConfig) (*hook.Chain, error) {
	built := make([]hook.Hook, 0, len(hooks))
	for _, h := range hooks {
		factory, ok := hook.Lookup(h.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %q", api.ErrUnknownHookType, h.Type)
		}
		inst, err := factory(h.Priority, h.Settings)
		if err != nil {
			return nil, fmt.Errorf("hook %q: %w", h.Type, err)
		}
		built = append(built, inst)
	}
	return hook.NewChain(built), nil
}

func resolveDestinations(nodes *registry.Nodes, names []string) ([]*node.Instance, error) {
	out := make([]*node.Instance, 0, len(names))
	for _, name := range names {
		inst, err := nodes.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// buildPaths builds one path.Path per cfg.Paths entry against the
// already-built node instance registry, skipping entries with
// enabled: false.
func buildPaths(cfg *api.Config, nodes *registry.Nodes, logger *slog.Logger) ([]*path.Path, error) {
	paths := make([]*path.Path, 0, len(cfg.Paths))
	for i, pc := range cfg.Paths {
		if !pc.IsEnabled() {
			continue
		}
		src, err := nodes.Get(pc.In)
		if err != nil {
			return nil, fmt.Errorf("paths[%d]: %w", i, err)
		}
		destNodes, err := resolveDestinations(nodes, pc.Out)
		if err != nil {
			return nil, fmt.Errorf("paths[%d]: %w", i, err)
		}
		chain, err := buildHookChain(pc.Hooks)
		if err != nil {
			return nil, fmt.Errorf("paths[%d]: %w", i, err)
		}

		name := fmt.Sprintf("%s->%v", pc.In, pc.Out)
		p := path.New(path.Config{
			Name:         name,
			Source:       src,
			Destinations: destNodes,
			Hooks:        chain,
			Rate:         pc.Rate,
			QueueLen:     pc.QueueLen,
			SampleLen:    pc.SampleLen,
			Vectorize:    1,
			Logger:       logger,
		})
		paths = append(paths, p)
	}
	return paths, nil
}
