// Package modbus is a native operation layer that maps channels onto
// Modbus-TCP registers and coils.
package modbus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	mb "github.com/goburrow/modbus"

	"github.com/morezero/channel-gateway/pkg/provider"
	"github.com/morezero/channel-gateway/pkg/request"
	"github.com/morezero/channel-gateway/pkg/types"
)

const logPrefix = "provider:modbus"

// ArgCount is the argument naming how many consecutive values an array get reads.
const ArgCount = "COUNT"

// Per-request quantity limits of the Modbus read functions.
const (
	maxRegisters = 125
	maxCoils     = 2000
)

// Client is the subset of the goburrow client the provider uses.
type Client interface {
	ReadCoils(address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// Options configures Dial.
type Options struct {
	Address   string
	SlaveID   byte
	Timeout   time.Duration
	Registers RegisterMap
}

// Provider implements provider.Provider over a Modbus client.
type Provider struct {
	client    Client
	registers RegisterMap
	closer    io.Closer
}

// New wraps an existing client.
func New(client Client, registers RegisterMap) *Provider {
	return &Provider{client: client, registers: registers}
}

// Dial connects to a Modbus-TCP server.
func Dial(opts Options) (*Provider, error) {
	h := mb.NewTCPClientHandler(opts.Address)
	h.Timeout = opts.Timeout
	if h.Timeout <= 0 {
		h.Timeout = 5 * time.Second
	}
	h.SlaveId = opts.SlaveID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("%s - connect %s: %w", logPrefix, opts.Address, err)
	}
	slog.Info(fmt.Sprintf("%s - Connected to %s (slave %d, %d registers)", logPrefix, opts.Address, opts.SlaveID, len(opts.Registers)))

	p := New(mb.NewClient(h), opts.Registers)
	p.closer = h
	return p, nil
}

// Close releases the connection when the provider was created by Dial.
func (p *Provider) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

func (p *Provider) register(channel string) (Register, error) {
	r, ok := p.registers[channel]
	if !ok {
		return Register{}, fmt.Errorf("%s - no register mapped for %q: %w", logPrefix, channel, provider.ErrUnsupportedChannel)
	}
	return r, nil
}

// GetScalar reads one value of kind t.
func (p *Provider) GetScalar(_ context.Context, channel string, _ []request.Argument, t types.DataType) (any, error) {
	r, err := p.register(channel)
	if err != nil {
		return nil, err
	}
	values, err := p.read(r, t, 1)
	if err != nil {
		return nil, fmt.Errorf("%s - read %s: %w", logPrefix, channel, err)
	}
	return values[0], nil
}

// GetArray reads COUNT consecutive values of the element kind of t.
func (p *Provider) GetArray(_ context.Context, channel string, args []request.Argument, t types.DataType) (any, error) {
	r, err := p.register(channel)
	if err != nil {
		return nil, err
	}
	elem := types.ElementOf(t)
	limit, err := maxCountFor(r, elem)
	if err != nil {
		return nil, fmt.Errorf("%s - %s: %w", logPrefix, channel, err)
	}
	count, err := countArg(args, limit)
	if err != nil {
		return nil, fmt.Errorf("%s - %s %s: %w", logPrefix, channel, t, err)
	}
	values, err := p.read(r, elem, count)
	if err != nil {
		return nil, fmt.Errorf("%s - read %s: %w", logPrefix, channel, err)
	}
	return values, nil
}

// GetTable is not supported by register-mapped channels.
func (p *Provider) GetTable(_ context.Context, channel string, _ []request.Argument) (*provider.Table, error) {
	return nil, fmt.Errorf("%s - table get on %q: %w", logPrefix, channel, provider.ErrUnsupportedChannel)
}

// SetVoid writes VALUE using the register's configured type.
func (p *Provider) SetVoid(_ context.Context, channel string, args []request.Argument) error {
	r, err := p.register(channel)
	if err != nil {
		return err
	}
	arg, ok := findArg(args, request.ArgValue)
	if !ok {
		return fmt.Errorf("%s - set %s: missing VALUE", logPrefix, channel)
	}
	v, err := setValue(r.Type, arg)
	if err != nil {
		return fmt.Errorf("%s - set %s: %w", logPrefix, channel, err)
	}

	if r.Area == Coil {
		b, err := types.Coerce(types.Boolean, v)
		if err != nil {
			return fmt.Errorf("%s - set %s: %w", logPrefix, channel, err)
		}
		var w uint16
		if b.(bool) {
			w = 0xFF00
		}
		if _, err := p.client.WriteSingleCoil(r.Address, w); err != nil {
			return fmt.Errorf("%s - write coil %s: %w", logPrefix, channel, err)
		}
		return nil
	}
	if r.Area != Holding {
		return fmt.Errorf("%s - %s is read-only (%s): %w", logPrefix, channel, r.Area, provider.ErrUnsupportedChannel)
	}

	data, err := encode(r.Type, v, r.ByteOrder)
	if err != nil {
		return fmt.Errorf("%s - encode %s: %w", logPrefix, channel, err)
	}
	if _, err := p.client.WriteMultipleRegisters(r.Address, uint16(len(data)/2), data); err != nil {
		return fmt.Errorf("%s - write %s: %w", logPrefix, channel, err)
	}
	return nil
}

// SetTable is not supported by register-mapped channels.
func (p *Provider) SetTable(_ context.Context, channel string, _ []request.Argument) (*provider.Table, error) {
	return nil, fmt.Errorf("%s - table set on %q: %w", logPrefix, channel, provider.ErrUnsupportedChannel)
}

func (p *Provider) read(r Register, t types.DataType, count int) ([]any, error) {
	if r.Area == Coil {
		data, err := p.client.ReadCoils(r.Address, uint16(count))
		if err != nil {
			return nil, err
		}
		out := make([]any, count)
		for i := range out {
			if i/8 >= len(data) {
				return nil, fmt.Errorf("insufficient coil data: %d bytes", len(data))
			}
			bit := data[i/8]&(1<<(i%8)) != 0
			v, err := types.Coerce(t, bit)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	words, err := wordsFor(t)
	if err != nil {
		return nil, err
	}
	quantity := words * uint16(count)
	var data []byte
	if r.Area == Input {
		data, err = p.client.ReadInputRegisters(r.Address, quantity)
	} else {
		data, err = p.client.ReadHoldingRegisters(r.Address, quantity)
	}
	if err != nil {
		return nil, err
	}

	out := make([]any, count)
	step := int(words) * 2
	for i := range out {
		if (i+1)*step > len(data) {
			return nil, fmt.Errorf("insufficient register data: %d bytes for %d values", len(data), count)
		}
		v, err := decode(t, data[i*step:(i+1)*step], r.ByteOrder)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func findArg(args []request.Argument, name string) (request.Argument, bool) {
	for _, a := range args {
		if a.Is(name) {
			return a, true
		}
	}
	return request.Argument{}, false
}

// maxCountFor returns how many values of t fit in one read of r's area.
func maxCountFor(r Register, t types.DataType) (int, error) {
	if r.Area == Coil {
		return maxCoils, nil
	}
	words, err := wordsFor(t)
	if err != nil {
		return 0, err
	}
	return maxRegisters / int(words), nil
}

func countArg(args []request.Argument, limit int) (int, error) {
	arg, ok := findArg(args, ArgCount)
	if !ok {
		return 1, nil
	}
	n, err := strconv.Atoi(arg.Value)
	if err != nil || n < 1 || n > limit {
		return 0, fmt.Errorf("COUNT must be an integer between 1 and %d, got %q", limit, arg.Value)
	}
	return n, nil
}

// setValue picks the most precise representation of VALUE for t: the
// float/double side channel for floating kinds, the literal text otherwise.
func setValue(t types.DataType, arg request.Argument) (any, error) {
	if t == types.Float || t == types.Double {
		return arg.Number()
	}
	return arg.Value, nil
}
