package recomp

import "fmt"

// Reserved dependency names, valid everywhere a mod id is accepted and
// lazily registered on first resolve.
const (
	// DependencySelf refers to the module currently being built.
	DependencySelf = "."
	// DependencyBaseRecomp refers to the base recompiled program.
	DependencyBaseRecomp = "*"
)

// DepIndex identifies a dependency within a Context's dependency list.
type DepIndex int

// DepEventIndex identifies an entry in the dependency event list.
type DepEventIndex int

// ImportSymbol is a function symbol imported from a dependency. Data imports
// are not modeled.
type ImportSymbol struct {
	ReferenceSymbol
	DependencyIndex DepIndex
}

// DependencyEvent names an event in one dependency's event namespace.
type DependencyEvent struct {
	DependencyIndex DepIndex
	EventName       string
}

// Callback subscribes one of this module's functions to a dependency event.
type Callback struct {
	FunctionIndex        FuncIndex
	DependencyEventIndex DepEventIndex
}

// AddDependency registers a named external module. It fails if the name is
// already registered.
func (c *Context) AddDependency(id string) bool {
	if c.dependenciesByName == nil {
		c.dependenciesByName = make(map[string]DepIndex)
	}
	if _, exists := c.dependenciesByName[id]; exists {
		return false
	}

	idx := DepIndex(len(c.Dependencies))
	c.Dependencies = append(c.Dependencies, id)
	c.dependenciesByName[id] = idx
	c.dependencyEventsByName = append(c.dependencyEventsByName, nil)
	c.dependencyImportsByName = append(c.dependencyImportsByName, nil)
	return true
}

// AddDependencies registers a batch of dependencies all-or-nothing: if any
// name already exists, none of the batch is added.
func (c *Context) AddDependencies(ids []string) bool {
	for _, id := range ids {
		if _, exists := c.dependenciesByName[id]; exists {
			return false
		}
	}
	for _, id := range ids {
		c.AddDependency(id)
	}
	return true
}

// FindDependency is a pure lookup of a registered dependency.
func (c *Context) FindDependency(id string) (DepIndex, bool) {
	idx, ok := c.dependenciesByName[id]
	return idx, ok
}

// ResolveDependency looks up a dependency, registering the two reserved names
// on first reference. Unknown non-reserved names fail. This is the only
// lookup that mutates the graph.
func (c *Context) ResolveDependency(id string) (DepIndex, bool) {
	if idx, ok := c.dependenciesByName[id]; ok {
		return idx, true
	}
	if id == DependencySelf || id == DependencyBaseRecomp {
		c.AddDependency(id)
		return c.dependenciesByName[id], true
	}
	return 0, false
}

// AddImportSymbol registers a function imported from a dependency, scoped to
// that dependency's namespace. Re-importing a name already present in the
// namespace is rejected.
func (c *Context) AddImportSymbol(name string, dep DepIndex) error {
	if int(dep) < 0 || int(dep) >= len(c.Dependencies) {
		return fmt.Errorf("%w: %d of %d", ErrBadDependency, dep, len(c.Dependencies))
	}
	if _, exists := c.dependencyImportsByName[dep][name]; exists {
		return fmt.Errorf("%w: import %s in dependency %s", ErrDuplicateSymbol, name, c.Dependencies[dep])
	}

	if c.dependencyImportsByName[dep] == nil {
		c.dependencyImportsByName[dep] = make(map[string]int)
	}
	c.dependencyImportsByName[dep][name] = len(c.ImportSymbols)
	c.ImportSymbols = append(c.ImportSymbols, ImportSymbol{
		ReferenceSymbol: ReferenceSymbol{
			Name:       name,
			Section:    ImportSectionRef,
			IsFunction: true,
		},
		DependencyIndex: dep,
	})
	return nil
}

// FindImportSymbol looks up an import within one dependency's namespace.
func (c *Context) FindImportSymbol(name string, dep DepIndex) (SymbolRef, bool) {
	if int(dep) < 0 || int(dep) >= len(c.Dependencies) {
		return SymbolRef{}, false
	}
	idx, ok := c.dependencyImportsByName[dep][name]
	if !ok {
		return SymbolRef{}, false
	}
	return SymbolRef{Section: ImportSectionRef, Symbol: idx}, true
}

// AddDependencyEvent registers interest in an event of a dependency. It is
// idempotent per (dependency, name) pair: re-adding the same event returns
// the existing index, since a mod may register several callbacks against one
// event. Only an out-of-range dependency fails.
func (c *Context) AddDependencyEvent(eventName string, dep DepIndex) (DepEventIndex, bool) {
	if int(dep) < 0 || int(dep) >= len(c.Dependencies) {
		return 0, false
	}
	if idx, ok := c.dependencyEventsByName[dep][eventName]; ok {
		return idx, true
	}

	idx := DepEventIndex(len(c.DependencyEvents))
	c.DependencyEvents = append(c.DependencyEvents, DependencyEvent{
		DependencyIndex: dep,
		EventName:       eventName,
	})
	if c.dependencyEventsByName[dep] == nil {
		c.dependencyEventsByName[dep] = make(map[string]DepEventIndex)
	}
	c.dependencyEventsByName[dep][eventName] = idx
	return idx, true
}

// AddCallback binds a function to a dependency event. The event index is not
// range-checked; that is the caller's responsibility.
func (c *Context) AddCallback(event DepEventIndex, fn FuncIndex) {
	c.Callbacks = append(c.Callbacks, Callback{
		FunctionIndex:        fn,
		DependencyEventIndex: event,
	})
}
