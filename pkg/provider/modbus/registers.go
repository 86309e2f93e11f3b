package modbus

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/morezero/channel-gateway/pkg/types"
)

// Area names a Modbus data area.
type Area string

const (
	Holding Area = "holding"
	Input   Area = "input"
	Coil    Area = "coil"
)

// Register maps one channel onto a Modbus address.
type Register struct {
	Area    Area   `yaml:"area"`
	Address uint16 `yaml:"address"`
	// Type is the value kind written by sets. Gets decode with the requested type.
	Type types.DataType `yaml:"type"`
	// ByteOrder applies to 32 and 64 bit values: ABCD (default), DCBA, BADC or CDAB.
	ByteOrder string `yaml:"byteOrder"`
}

// RegisterMap keys registers by canonical channel name.
type RegisterMap map[string]Register

type registerFile struct {
	Registers map[string]Register `yaml:"registers"`
}

// LoadRegisterMap reads a YAML register map:
//
//	registers:
//	  "psu:current":
//	    area: holding
//	    address: 100
//	    type: FLOAT
func LoadRegisterMap(path string) (RegisterMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - read register map %s: %w", logPrefix, path, err)
	}
	return ParseRegisterMap(data)
}

// ParseRegisterMap parses and normalizes a YAML register map.
func ParseRegisterMap(data []byte) (RegisterMap, error) {
	var f registerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s - parse register map: %w", logPrefix, err)
	}
	out := make(RegisterMap, len(f.Registers))
	for name, r := range f.Registers {
		if r.Area == "" {
			r.Area = Holding
		}
		r.Area = Area(strings.ToLower(string(r.Area)))
		switch r.Area {
		case Holding, Input, Coil:
		default:
			return nil, fmt.Errorf("%s - register %q: unknown area %q", logPrefix, name, r.Area)
		}
		if r.Type == types.None {
			r.Type = types.Short
			if r.Area == Coil {
				r.Type = types.Boolean
			}
		}
		if !r.Type.IsScalar() || r.Type == types.String {
			return nil, fmt.Errorf("%s - register %q: type %s cannot be stored in registers", logPrefix, name, r.Type)
		}
		out[name] = r
	}
	return out, nil
}
