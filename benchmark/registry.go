package benchmark

import (
	"path"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// CaseFunc is one benchmark case body. It must be synchronous; the returned
// value is consumed so the compiler cannot drop the work.
type CaseFunc func() any

// Case is a named, independently timed unit within a class.
type Case struct {
	Name   string
	Invoke CaseFunc
}

// class holds the registration state of one benchmark class.
type class struct {
	name       string
	defined    bool
	directives []Directive
	config     Config
	cases      []Case
	setup      func() error
}

// Registry owns every benchmark class of the process. It is built at
// program start, sealed once all classes are registered and then only read.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*class
	order   []string
	sealed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[string]*class),
		order:   make([]string, 0),
	}
}

// Define attaches configuration directives to a class and resolves them.
//
// Arguments:
//   - name: The class name. Must be unique.
//   - directives: Overrides applied in order on top of DefaultConfig.
//
// Returns:
//   - error: ErrConfiguration if a directive is out of range, ErrRegistry if the
//     class was already defined or the registry is sealed.
func (r *Registry) Define(name string, directives ...Directive) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.classLocked(name)
	if err != nil {
		return err
	}
	if c.defined {
		return errors.Wrapf(ErrRegistry, "class %q is already defined", name)
	}

	cfg, err := Resolve(name, directives...)
	if err != nil {
		return err
	}

	c.defined = true
	c.directives = append([]Directive(nil), directives...)
	c.config = cfg
	return nil
}

// Register appends a case to a class. A class that was never defined is
// created with the default configuration.
//
// Arguments:
//   - className: The class the case belongs to.
//   - caseName: Unique within the class; empty means the function's identifier.
//   - fn: The case body.
func (r *Registry) Register(className, caseName string, fn CaseFunc) error {
	if fn == nil {
		return errors.Wrapf(ErrRegistry, "class %q: case %q has no function", className, caseName)
	}
	if caseName == "" {
		caseName = funcName(fn)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.classLocked(className)
	if err != nil {
		return err
	}
	for _, existing := range c.cases {
		if existing.Name == caseName {
			return errors.Wrapf(ErrRegistry, "class %q: duplicate case %q", className, caseName)
		}
	}

	c.cases = append(c.cases, Case{Name: caseName, Invoke: fn})
	return nil
}

// SetSetup installs a function run once per process before the class warms up.
func (r *Registry) SetSetup(className string, setup func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.classLocked(className)
	if err != nil {
		return err
	}
	c.setup = setup
	return nil
}

// classLocked returns the class, creating it with defaults. Callers hold mu.
func (r *Registry) classLocked(name string) (*class, error) {
	if r.sealed {
		return nil, errors.Wrapf(ErrRegistry, "registry is sealed; cannot modify class %q", name)
	}
	if name == "" {
		return nil, errors.Wrap(ErrRegistry, "class name is empty")
	}
	if c, ok := r.classes[name]; ok {
		return c, nil
	}
	c := &class{name: name, config: DefaultConfig()}
	r.classes[name] = c
	r.order = append(r.order, name)
	return c, nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// ListCases returns a copy of the cases of a class in registration order.
//
// Returns:
//   - []Case: The cases.
//   - error: ErrRegistry if the class is unknown or has no cases.
func (r *Registry) ListCases(className string) ([]Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classes[className]
	if !ok {
		return nil, errors.Wrapf(ErrRegistry, "unknown benchmark class %q", className)
	}
	if len(c.cases) == 0 {
		return nil, errors.Wrapf(ErrRegistry, "benchmark class %q has no cases", className)
	}

	cases := make([]Case, len(c.cases))
	copy(cases, c.cases)
	return cases, nil
}

// Config returns the resolved configuration of a class.
func (r *Registry) Config(className string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classes[className]
	if !ok {
		return Config{}, errors.Wrapf(ErrRegistry, "unknown benchmark class %q", className)
	}
	return c.config.Clone(), nil
}

// ResolveWith re-resolves a class with extra directives applied after the
// ones it was defined with.
func (r *Registry) ResolveWith(className string, extra ...Directive) (Config, error) {
	r.mu.RLock()
	c, ok := r.classes[className]
	var directives []Directive
	if ok {
		directives = append(append(directives, c.directives...), extra...)
	}
	r.mu.RUnlock()

	if !ok {
		return Config{}, errors.Wrapf(ErrRegistry, "unknown benchmark class %q", className)
	}
	return Resolve(className, directives...)
}

// Setup returns the setup function of a class, or nil.
func (r *Registry) Setup(className string) func() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.classes[className]; ok {
		return c.setup
	}
	return nil
}

// Classes returns all class names in the order they were first seen.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Match returns the classes whose name matches a glob pattern, in
// registration order.
func (r *Registry) Match(pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, errors.Wrapf(ErrRegistry, "bad class pattern %q: %v", pattern, err)
	}

	var matched []string
	for _, name := range r.Classes() {
		if ok, _ := path.Match(pattern, name); ok {
			matched = append(matched, name)
		}
	}
	return matched, nil
}

// funcName returns the bare identifier of a function or method value.
func funcName(fn CaseFunc) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "case"
	}
	name := strings.TrimSuffix(f.Name(), "-fm")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
