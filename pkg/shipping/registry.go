package shipping

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages rate modules and processors keyed by code. It is filled
// at startup and read concurrently by quote computations.
type Registry struct {
	modules    map[string]RateModule
	metadata   map[string]IntegrationModule
	processors map[string]Processor
	pre        []string
	post       []string
	mu         sync.RWMutex
}

// NewRegistry creates a new registry.
func NewRegistry() *Registry {
	return &Registry{
		modules:    make(map[string]RateModule),
		metadata:   make(map[string]IntegrationModule),
		processors: make(map[string]Processor),
	}
}

// Register adds a rate module and its metadata. Registering the same code
// again replaces the previous module.
func (r *Registry) Register(m RateModule, meta IntegrationModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta.Code = m.Code()
	if meta.Name == "" {
		meta.Name = m.Code()
	}
	r.modules[m.Code()] = m
	r.metadata[m.Code()] = meta
}

// RegisterProcessor appends a processor to the pre or post chain.
// Processors run in registration order.
func (r *Registry) RegisterProcessor(p Processor, phase Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code := p.Code()
	if _, exists := r.processors[code]; !exists {
		if phase == PhasePost {
			r.post = append(r.post, code)
		} else {
			r.pre = append(r.pre, code)
		}
	}
	r.processors[code] = p
}

// Module returns a rate module by code.
func (r *Registry) Module(code string) (RateModule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.modules[code]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, code)
}

// Metadata returns the integration metadata of a rate module.
func (r *Registry) Metadata(code string) (IntegrationModule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.metadata[code]
	return meta, ok
}

// Processor returns a processor by code.
func (r *Registry) Processor(code string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.processors[code]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProcessorNotFound, code)
}

// IsProcessor reports whether the code names a processor.
func (r *Registry) IsProcessor(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.processors[code]
	return ok
}

// PreProcessors returns the pre-processor chain in order.
func (r *Registry) PreProcessors() []Processor {
	return r.chain(PhasePre)
}

// PostProcessors returns the post-processor chain in order.
func (r *Registry) PostProcessors() []Processor {
	return r.chain(PhasePost)
}

func (r *Registry) chain(phase Phase) []Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := r.pre
	if phase == PhasePost {
		codes = r.post
	}
	result := make([]Processor, 0, len(codes))
	for _, code := range codes {
		result = append(result, r.processors[code])
	}
	return result
}

// ModulesForCountry returns the metadata of modules serving the country,
// sorted by code.
func (r *Registry) ModulesForCountry(countryCode string) []IntegrationModule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]IntegrationModule, 0, len(r.metadata))
	for _, meta := range r.metadata {
		if countryCode == "" || meta.SupportsCountry(countryCode) {
			result = append(result, meta)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

// Codes returns the codes of all rate modules, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.modules))
	for code := range r.modules {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Count returns the number of registered rate modules.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}
