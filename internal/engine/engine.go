package engine

import (
	"log/slog"
	"sort"

	"github.com/lifegraph/lifegraph/internal/entity"
	"github.com/lifegraph/lifegraph/internal/module"
)

// MaxIterations caps the number of state activations in one Process call.
// A well-formed module chains zero-duration transitions far below this; the
// cap is a failsafe that turns a cyclic no-advance bug into a diagnosable
// InfiniteLoopError instead of a hang.
const MaxIterations = 1000

// contextKeyPrefix qualifies the attribute-store keys the engine uses for
// per-module run contexts. Keys with this prefix are engine bookkeeping,
// not domain attributes, and exporters skip them.
const contextKeyPrefix = "__lifegraph/context/"

// ContextKey returns the attribute-store key holding the run context for
// the named module.
func ContextKey(moduleName string) string {
	return contextKeyPrefix + moduleName
}

// IsBookkeepingKey reports whether an attribute key belongs to the engine
// rather than the domain.
func IsBookkeepingKey(key string) bool {
	return len(key) >= len(contextKeyPrefix) && key[:len(contextKeyPrefix)] == contextKeyPrefix
}

// SubmoduleResolver resolves a submodule name to its engine. Wired by the
// surrounding run (the generator resolves through the loader); nil means
// CallSubmodule states fail.
type SubmoduleResolver func(name string) (*Engine, error)

// Context is the suspended-execution record for one (module, entity) pair:
// the first-visit-ordered history of advanced states, the state instance
// awaiting a resume decision, and the record entries created by onset
// states (for end-state and reason references).
//
// A Context lives in the entity's attribute store under a module-qualified
// key. Current == nil means the run reached Terminal and is permanently
// retired for this entity. Parked means Current's work already ran and only
// its transition is pending; later calls retry the transition without
// re-executing the state.
type Context struct {
	History     []string
	Current     State
	Entries     map[string]any
	Parked      bool
	Activations int
}

// visit records a state name in history, once per name regardless of
// revisits.
func (c *Context) visit(name string) {
	for _, seen := range c.History {
		if seen == name {
			return
		}
	}
	c.History = append(c.History, name)
}

// Visited reports whether the named state has advanced during this run.
func (c *Context) Visited(name string) bool {
	for _, seen := range c.History {
		if seen == name {
			return true
		}
	}
	return false
}

// Engine interprets one module definition: it owns the materialized state
// graph and drives the run loop for one entity at one instant.
//
// Isolation contract: an Engine must not be shared across concurrent
// entities. Give each concurrent unit its own Clone (or a fresh engine
// from the same definition); the definition itself is safe to share
// read-only because Clone deep-copies before handing back anything
// mutable.
type Engine struct {
	def         *module.Definition
	states      map[string]State
	initialName string
	isClone     bool
	submodules  SubmoduleResolver
	log         *slog.Logger
}

// New materializes an engine from a module definition. Every state in the
// definition is built through the registry; an unknown state type or a
// malformed transition is a ConfigurationError here, not at run time.
//
// A structurally missing (or duplicated) Initial state does not fail
// construction - Validate reports it, and Process fails if the engine is
// run anyway. This keeps New usable by diagnostic tooling that wants to
// inspect known-broken modules.
func New(def *module.Definition) (*Engine, error) {
	states := make(map[string]State, len(def.States))

	names := make([]string, 0, len(def.States))
	for name := range def.States {
		names = append(names, name)
	}
	sort.Strings(names)

	initialName := ""
	initialCount := 0
	for _, name := range names {
		st, err := newState(def.Name, name, def.States[name])
		if err != nil {
			return nil, err
		}
		states[name] = st
		if st.Kind() == "Initial" {
			initialCount++
			if initialName == "" {
				initialName = name
			}
		}
	}
	if initialCount != 1 {
		initialName = ""
	}

	return &Engine{
		def:         def,
		states:      states,
		initialName: initialName,
		log:         slog.Default(),
	}, nil
}

// Name returns the module name.
func (e *Engine) Name() string {
	return e.def.Name
}

// Definition returns the engine's backing definition. Treat as read-only.
func (e *Engine) Definition() *module.Definition {
	return e.def
}

// IsClone reports whether this engine was produced by Clone.
func (e *Engine) IsClone() bool {
	return e.isClone
}

// SetSubmoduleResolver wires submodule resolution for CallSubmodule states.
func (e *Engine) SetSubmoduleResolver(r SubmoduleResolver) {
	e.submodules = r
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(log *slog.Logger) {
	e.log = log
}

// Clone returns a fully independent engine: the definition is deep-copied
// at the value level, so no entity processed by the clone can observe or
// mutate data visible to the original or to sibling clones.
func (e *Engine) Clone() (*Engine, error) {
	clone, err := New(e.def.Clone())
	if err != nil {
		return nil, err
	}
	clone.isClone = true
	clone.submodules = e.submodules
	clone.log = e.log
	return clone, nil
}

// contextFor retrieves or creates the entity's run context for this
// module. The second return is false when the run already reached Terminal.
func (e *Engine) contextFor(ent *entity.Entity) (*Context, bool, error) {
	key := ContextKey(e.def.Name)
	if v, ok := ent.Attribute(key); ok {
		ctx := v.(*Context)
		if ctx.Current == nil {
			return ctx, false, nil
		}
		return ctx, true, nil
	}

	if e.initialName == "" {
		return nil, false, &ConfigurationError{
			Module:  e.def.Name,
			Message: "module does not have exactly one Initial state",
		}
	}
	ctx := &Context{
		// Installed states are per-entity copies: state-local bookkeeping
		// (a Delay's resume instant) must never cross entities, and one
		// engine serves many entities sequentially.
		Current: cloneState(e.states[e.initialName]),
		Entries: make(map[string]any),
	}
	ent.SetAttribute(key, ctx)
	return ctx, true, nil
}

// Finished reports whether this module's run for the entity has reached
// Terminal. False if the entity has never been processed by this module.
func (e *Engine) Finished(ent *entity.Entity) bool {
	if v, ok := ent.Attribute(ContextKey(e.def.Name)); ok {
		return v.(*Context).Current == nil
	}
	return false
}

// History returns the visited-state history for the entity, or nil if the
// entity has no run context for this module.
func (e *Engine) History(ent *entity.Entity) []string {
	if v, ok := ent.Attribute(ContextKey(e.def.Name)); ok {
		return v.(*Context).History
	}
	return nil
}

// Activations returns how many state activations this module has run for
// the entity, revisits included. Zero if the entity was never processed.
func (e *Engine) Activations(ent *entity.Entity) int {
	if v, ok := ent.Attribute(ContextKey(e.def.Name)); ok {
		return v.(*Context).Activations
	}
	return 0
}

// Process advances this module for the entity up to the given instant.
//
// The walk runs until a state stalls (Guard unsatisfied, Delay pending, or
// a dead-end transition), so a chain of zero-duration transitions
// completes within one call. Terminal retires the run permanently by
// clearing the context's current-state pointer; later calls are no-ops.
// Errors propagate unfiltered - see errors.go for the taxonomy.
func (e *Engine) Process(ent *entity.Entity, at int64) error {
	ctx, running, err := e.contextFor(ent)
	if err != nil {
		return err
	}
	if !running {
		return nil
	}

	env := stepEnv{engine: e, ctx: ctx, entity: ent, time: at}

	for i := 0; i < MaxIterations; i++ {
		current := ctx.Current

		if ctx.Parked {
			ctx.Parked = false
		} else {
			ctx.Activations++
			advance, err := current.Process(env)
			if err != nil {
				return err
			}
			if !advance {
				if current.Kind() == "Terminal" {
					ctx.Current = nil
					e.log.Debug("module finished",
						"module", e.def.Name,
						"entity", ent.ID,
						"states_visited", len(ctx.History),
					)
				}
				return nil
			}
			ctx.visit(current.Name())
		}

		transition := current.Transition()
		if transition == nil {
			// Dead end: no transition at all. Park here; the state's work
			// stays done and later calls return immediately.
			ctx.Parked = true
			return nil
		}
		next, err := transition.Follow(env.evalEnv())
		if err != nil {
			return err
		}
		if next == "" {
			// No option matched. Park with the work done; later calls retry
			// only the transition.
			ctx.Parked = true
			return nil
		}

		nextState, ok := e.states[next]
		if !ok {
			return &UnknownStateError{Module: e.def.Name, State: next}
		}
		e.log.Debug("state transition",
			"module", e.def.Name,
			"entity", ent.ID,
			"from", current.Name(),
			"to", next,
		)
		ctx.Current = cloneState(nextState)
	}

	return &InfiniteLoopError{Module: e.def.Name, Cap: MaxIterations}
}
