// Package memory is an in-process native operation layer that keeps channel
// values in maps. Every call is recorded with its entry and exit time.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/morezero/channel-gateway/pkg/provider"
	"github.com/morezero/channel-gateway/pkg/request"
	"github.com/morezero/channel-gateway/pkg/types"
)

// Call records one invocation.
type Call struct {
	Op      string
	Channel string
	Enter   time.Time
	Exit    time.Time
}

// Provider is a map-backed provider.Provider.
type Provider struct {
	mu         sync.Mutex
	scalars    map[string]any
	arrays     map[string]any
	tables     map[string]*provider.Table
	setResults map[string]*provider.Table
	failures   map[string]error

	delay     time.Duration
	calls     []Call
	active    int
	maxActive int
}

// New creates an empty provider.
func New() *Provider {
	return &Provider{
		scalars:    map[string]any{},
		arrays:     map[string]any{},
		tables:     map[string]*provider.Table{},
		setResults: map[string]*provider.Table{},
		failures:   map[string]error{},
	}
}

// WithDelay makes every call sleep for d while inside the provider.
func (p *Provider) WithDelay(d time.Duration) *Provider {
	p.delay = d
	return p
}

// StoreScalar sets the value returned by scalar gets on channel.
func (p *Provider) StoreScalar(channel string, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scalars[channel] = v
}

// StoreArray sets the sequence returned by array gets on channel.
func (p *Provider) StoreArray(channel string, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arrays[channel] = v
}

// StoreTable sets the table returned by table gets on channel.
func (p *Provider) StoreTable(channel string, t *provider.Table) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables[channel] = t
}

// StoreSetResult sets the table returned by table sets on channel.
func (p *Provider) StoreSetResult(channel string, t *provider.Table) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setResults[channel] = t
}

// FailWith makes every operation on channel return err.
func (p *Provider) FailWith(channel string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[channel] = err
}

// Scalar returns the stored scalar for channel.
func (p *Provider) Scalar(channel string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.scalars[channel]
	return v, ok
}

// Calls returns a copy of the call log.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// MaxConcurrent returns the highest number of calls seen in flight at once.
func (p *Provider) MaxConcurrent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}

func (p *Provider) enter(op, channel string) (func(), error) {
	p.mu.Lock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	call := Call{Op: op, Channel: channel, Enter: time.Now()}
	err := p.failures[channel]
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.active--
		call.Exit = time.Now()
		p.calls = append(p.calls, call)
	}, err
}

// GetScalar implements provider.Provider.
func (p *Provider) GetScalar(_ context.Context, channel string, _ []request.Argument, t types.DataType) (any, error) {
	done, err := p.enter("GetScalar", channel)
	defer done()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.scalars[channel]
	if !ok {
		return nil, fmt.Errorf("%w: no %s value for %s", provider.ErrUnsupportedChannel, t, channel)
	}
	return v, nil
}

// GetArray implements provider.Provider.
func (p *Provider) GetArray(_ context.Context, channel string, _ []request.Argument, t types.DataType) (any, error) {
	done, err := p.enter("GetArray", channel)
	defer done()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.arrays[channel]
	if !ok {
		return nil, fmt.Errorf("%w: no %s value for %s", provider.ErrUnsupportedChannel, t, channel)
	}
	return v, nil
}

// GetTable implements provider.Provider.
func (p *Provider) GetTable(_ context.Context, channel string, _ []request.Argument) (*provider.Table, error) {
	done, err := p.enter("GetTable", channel)
	defer done()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tables[channel]
	if !ok {
		return nil, fmt.Errorf("%w: no table for %s", provider.ErrUnsupportedChannel, channel)
	}
	return t, nil
}

// SetVoid stores the VALUE argument as the channel's scalar value.
func (p *Provider) SetVoid(_ context.Context, channel string, args []request.Argument) error {
	done, err := p.enter("SetVoid", channel)
	defer done()
	if err != nil {
		return err
	}

	value, ok := valueOf(args)
	if !ok {
		return fmt.Errorf("no VALUE for %s", channel)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scalars[channel] = value
	return nil
}

// SetTable stores the VALUE argument and returns the configured set result,
// or a one-row status table.
func (p *Provider) SetTable(_ context.Context, channel string, args []request.Argument) (*provider.Table, error) {
	done, err := p.enter("SetTable", channel)
	defer done()
	if err != nil {
		return nil, err
	}

	value, ok := valueOf(args)
	if !ok {
		return nil, fmt.Errorf("no VALUE for %s", channel)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scalars[channel] = value
	if t, ok := p.setResults[channel]; ok {
		return t, nil
	}
	return provider.NewTable([]string{"OK"}), nil
}

func valueOf(args []request.Argument) (string, bool) {
	for _, a := range args {
		if a.Is(request.ArgValue) {
			return a.Value, true
		}
	}
	return "", false
}
