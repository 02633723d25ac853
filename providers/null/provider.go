// Package null implements an in-process provider that fabricates resource
// ids without touching any cloud API. It backs dry environments and the
// provider conformance test.
package null

import (
	"context"
	"fmt"
	"sync"

	"github.com/stackpilot-io/stackpilot/internal/ir"
	"github.com/stackpilot-io/stackpilot/internal/provider"
)

type Provider struct {
	mu      sync.Mutex
	serial  int
	records map[string]record
}

type record struct {
	kind   ir.Kind
	params map[string]any
}

func New() *Provider {
	return &Provider{
		records: make(map[string]record),
	}
}

// Factory adapts New to the provider registry. Options are ignored; the
// null provider has nothing to configure.
func Factory(options map[string]string) (provider.Provider, error) {
	return New(), nil
}

func (p *Provider) Create(ctx context.Context, kind ir.Kind, params map[string]any) (*provider.CreateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.serial++
	id := fmt.Sprintf("null-%s-%d", kind, p.serial)
	p.records[id] = record{kind: kind, params: params}

	return &provider.CreateResult{
		ID:     id,
		Status: provider.StatusReady,
		Attrs:  map[string]any{"id": id},
	}, nil
}

func (p *Provider) Update(ctx context.Context, id string, kind ir.Kind, params map[string]any) (provider.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.records[id]; !ok {
		return "", &provider.Error{Op: "update", Resource: id, Permanent: true,
			Err: fmt.Errorf("unknown resource %s", id)}
	}
	p.records[id] = record{kind: kind, params: params}
	return provider.StatusReady, nil
}

func (p *Provider) Describe(ctx context.Context, id string, kind ir.Kind) (provider.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.records[id]; !ok {
		return provider.StatusGone, nil
	}
	return provider.StatusReady, nil
}

func (p *Provider) Delete(ctx context.Context, id string, kind ir.Kind) (provider.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.records, id)
	return provider.StatusGone, nil
}
