package registry

import (
	"fmt"

	"github.com/vk/etlgrid/internal/pipeline"
)

// Module is the interface a bundle of handlers implements to be registered.
type Module interface {
	Register(r *Registry)
}

// RegisteredRecipe is a named stage body.
type RegisteredRecipe struct {
	Description string
	Fn          pipeline.Recipe
}

// RegisteredPredicate is a named custom condition.
type RegisteredPredicate struct {
	Description string
	Fn          pipeline.Predicate
}

// Registry holds all registered handlers for a single application instance.
type Registry struct {
	recipes    map[string]*RegisteredRecipe
	predicates map[string]*RegisteredPredicate
}

// New creates and initializes a new Registry instance.
func New(modules ...Module) *Registry {
	r := &Registry{
		recipes:    make(map[string]*RegisteredRecipe),
		predicates: make(map[string]*RegisteredPredicate),
	}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterRecipe adds a recipe handler. Registering the same name twice is a
// programming error and panics at startup.
func (r *Registry) RegisterRecipe(name string, recipe *RegisteredRecipe) {
	if _, ok := r.recipes[name]; ok {
		panic(fmt.Sprintf("recipe %q registered twice", name))
	}
	if recipe == nil || recipe.Fn == nil {
		panic(fmt.Sprintf("recipe %q has no handler function", name))
	}
	r.recipes[name] = recipe
}

// RegisterPredicate adds a predicate handler. Same duplicate rules as
// RegisterRecipe.
func (r *Registry) RegisterPredicate(name string, pred *RegisteredPredicate) {
	if _, ok := r.predicates[name]; ok {
		panic(fmt.Sprintf("predicate %q registered twice", name))
	}
	if pred == nil || pred.Fn == nil {
		panic(fmt.Sprintf("predicate %q has no handler function", name))
	}
	r.predicates[name] = pred
}

// Recipe looks up a recipe handler by name.
func (r *Registry) Recipe(name string) (*RegisteredRecipe, bool) {
	rec, ok := r.recipes[name]
	return rec, ok
}

// Predicate looks up a predicate handler by name.
func (r *Registry) Predicate(name string) (*RegisteredPredicate, bool) {
	p, ok := r.predicates[name]
	return p, ok
}
