// Package depgraph flattens a mod's cross-module surface — dependencies,
// imported functions, dependency events, callbacks, its own declared events
// and exports — into a lattice.Graph for DOT rendering.
package depgraph

import (
	"github.com/zboralski/lattice"

	"recomplink/internal/recomp"
)

// Build constructs the dependency graph for ctx. Each dependency and each
// declared or subscribed event becomes a node; edges run from consumer to
// provider: imported function -> owning dependency, dependency event ->
// owning dependency, callback function -> subscribed event.
func Build(ctx *recomp.Context) *lattice.Graph {
	g := &lattice.Graph{}

	for _, dep := range ctx.Dependencies {
		g.Nodes = append(g.Nodes, dep)
	}

	for _, imp := range ctx.ImportSymbols {
		g.Nodes = append(g.Nodes, imp.Name)
		g.Edges = append(g.Edges, lattice.Edge{
			Caller: imp.Name,
			Callee: ctx.Dependencies[imp.DependencyIndex],
		})
	}

	for i := range ctx.DependencyEvents {
		node := eventNode(ctx, recomp.DepEventIndex(i))
		g.Nodes = append(g.Nodes, node)
		g.Edges = append(g.Edges, lattice.Edge{
			Caller: node,
			Callee: ctx.Dependencies[ctx.DependencyEvents[i].DependencyIndex],
		})
	}

	for _, cb := range ctx.Callbacks {
		g.Edges = append(g.Edges, lattice.Edge{
			Caller: ctx.Functions[cb.FunctionIndex].Name,
			Callee: eventNode(ctx, cb.DependencyEventIndex),
		})
	}

	for _, ev := range ctx.EventSymbols {
		g.Nodes = append(g.Nodes, ev.Name)
	}
	for _, fi := range ctx.ExportedFuncs {
		g.Nodes = append(g.Nodes, ctx.Functions[fi].Name)
	}

	g.Dedup()
	return g
}

func eventNode(ctx *recomp.Context, i recomp.DepEventIndex) string {
	ev := ctx.DependencyEvents[i]
	return ctx.Dependencies[ev.DependencyIndex] + "." + ev.EventName
}
