// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package provider

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	genoserr "github.com/genos-dev/genos/pkg/errors"
	"github.com/genos-dev/genos/pkg/types"
)

// Route is one hop of a fallback chain: a provider and an optional model.
type Route struct {
	Provider string
	Model    string
}

// String renders the route as a "provider/model" reference.
func (r Route) String() string {
	if r.Model == "" {
		return r.Provider
	}
	return r.Provider + "/" + r.Model
}

// DefaultContentRoutes maps content types to the provider best suited for
// them. Content types not listed use the registry default.
func DefaultContentRoutes() map[types.ContentType]string {
	return map[types.ContentType]string{
		types.ContentTypeHashtags: NameGoogle,
		types.ContentTypeTitle:    NameGoogle,
		types.ContentTypeCaption:  NameGoogle,
		types.ContentTypeBlog:     NameWatsonx + "/" + GraniteDense128K,
		types.ContentTypeEmail:    NameWatsonx + "/" + GraniteDense128K,
		types.ContentTypeStory:    NameWatsonx + "/" + GraniteInstruct8B,
		types.ContentTypeReel:     NameWatsonx + "/" + GraniteInstruct8B,
	}
}

// GraniteModelFor picks the Granite model for a content type: the 128k
// context model for long-form blog and email, the 8B instruct model
// otherwise.
func GraniteModelFor(ct types.ContentType) string {
	switch ct {
	case types.ContentTypeBlog, types.ContentTypeEmail:
		return GraniteDense128K
	default:
		return GraniteInstruct8B
	}
}

// Registry holds the registered generators and the routing policy that
// turns a content type into an ordered fallback chain.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator

	defaultRef string                       // "provider/model" format
	routes     map[types.ContentType]string // content type -> "provider/model"
	failover   []string                     // ordered list of "provider/model" refs
}

// NewRegistry creates an empty Registry routing by DefaultContentRoutes
// with anthropic as the default.
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[string]Generator),
		defaultRef: NameAnthropic,
		routes:     DefaultContentRoutes(),
	}
}

// Register adds a generator under its name.
func (r *Registry) Register(g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[g.Name()] = g
}

// Get retrieves a generator by name.
func (r *Registry) Get(name string) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.generators[name]
	if !ok {
		return nil, genoserr.New(
			genoserr.CodeProviderNotFound,
			"provider not found: "+name,
			genoserr.FieldProvider(name),
		)
	}
	return g, nil
}

// Registered returns the names of every registered generator, sorted.
func (r *Registry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDefault sets the "provider/model" reference used for content types
// without a dedicated route.
func (r *Registry) SetDefault(ref string) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultRef = ref
	return nil
}

// SetRoute overrides the route of one content type.
func (r *Registry) SetRoute(ct types.ContentType, ref string) error {
	if !ct.Valid() {
		return genoserr.Errorf(genoserr.CodeConfigValidateInvalidValue, "unknown content type %q", ct)
	}
	if err := validateRef(ref); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[ct] = ref
	return nil
}

// SetFailover sets the ordered failover chain of "provider/model" refs.
func (r *Registry) SetFailover(chain []string) error {
	for _, ref := range chain {
		if err := validateRef(ref); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failover = append([]string(nil), chain...)
	return nil
}

// Chain returns the ordered routes to try for a content type. The preferred
// provider, when set, goes first; then the content-type route (or default);
// then the failover chain. A provider appears at most once and only
// registered providers are included.
func (r *Registry) Chain(ct types.ContentType, preferred string) []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	primary := r.defaultRef
	if ref, ok := r.routes[ct]; ok {
		primary = ref
	}

	refs := make([]string, 0, 2+len(r.failover))
	if preferred != "" {
		// Keep the content-type model when the preference names the routed
		// provider; watsonx otherwise gets a Granite model sized for the content.
		switch name, model := parseRef(primary); {
		case name == preferred && model != "":
			refs = append(refs, primary)
		case preferred == NameWatsonx:
			refs = append(refs, NameWatsonx+"/"+GraniteModelFor(ct))
		default:
			refs = append(refs, preferred)
		}
	}
	refs = append(refs, primary)
	refs = append(refs, r.failover...)

	seen := make(map[string]bool, len(refs))
	chain := make([]Route, 0, len(refs))
	for _, ref := range refs {
		name, model := parseRef(ref)
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := r.generators[name]; !ok {
			slog.Debug("skipping unregistered provider in chain", "provider", name, "content_type", ct)
			continue
		}
		chain = append(chain, Route{Provider: name, Model: model})
	}
	return chain
}

// Close shuts down all registered generators.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, g := range r.generators {
		if err := g.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return genoserr.Join(errs...)
	}
	return nil
}

func validateRef(ref string) error {
	name, _ := parseRef(ref)
	if !KnownName(name) {
		return genoserr.New(
			genoserr.CodeProviderNotFound,
			"unknown provider in reference "+ref,
			genoserr.FieldProvider(name),
		)
	}
	return nil
}

// parseRef splits a "provider/model" reference on the first "/". Model ids
// may themselves contain slashes (e.g. "watsonx/ibm/granite-3.1-8b-instruct").
func parseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
