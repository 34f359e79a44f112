package ir

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ir: cbor encoder: %v", err))
	}
}

// Wire kinds. Stable: they are persisted in trace stores.
const (
	wireVoid    = 0
	wireInt     = 1
	wireStr     = 2
	wireBool    = 3
	wireTuple   = 4
	wireStruct  = 5
	wireFailure = 6
	wireRsrc    = 7
)

// wireValue is the tagged encoding of a Value. Only the fields relevant to
// K are set.
type wireValue struct {
	K     int         `cbor:"k"`
	I     int64       `cbor:"i,omitempty"`
	S     string      `cbor:"s,omitempty"`
	B     bool        `cbor:"b,omitempty"`
	Name  string      `cbor:"n,omitempty"`
	Msg   string      `cbor:"m,omitempty"`
	Items []wireValue `cbor:"x,omitempty"`
}

// MarshalCanonical encodes v as canonical CBOR (RFC 8949 core deterministic
// encoding). Equal values always produce identical bytes.
func MarshalCanonical(v Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(w)
}

// UnmarshalCanonical decodes bytes produced by MarshalCanonical.
func UnmarshalCanonical(data []byte) (Value, error) {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return fromWire(w)
}

func toWire(v Value) (wireValue, error) {
	switch val := v.(type) {
	case nil:
		return wireValue{}, fmt.Errorf("nil value cannot be encoded")
	case Void:
		return wireValue{K: wireVoid}, nil
	case Int:
		return wireValue{K: wireInt, I: int64(val)}, nil
	case Str:
		return wireValue{K: wireStr, S: string(val)}, nil
	case Bool:
		return wireValue{K: wireBool, B: bool(val)}, nil
	case Tuple:
		items, err := toWireSlice(val)
		if err != nil {
			return wireValue{}, err
		}
		return wireValue{K: wireTuple, Items: items}, nil
	case Struct:
		items, err := toWireSlice(val.Fields)
		if err != nil {
			return wireValue{}, fmt.Errorf("struct %s: %w", val.Name, err)
		}
		return wireValue{K: wireStruct, Name: val.Name, Items: items}, nil
	case Failure:
		return wireValue{K: wireFailure, Name: val.Tag, Msg: val.Msg}, nil
	case RsrcRef:
		return wireValue{K: wireRsrc, I: val.ID, Name: val.Kind}, nil
	default:
		return wireValue{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func toWireSlice(vals []Value) ([]wireValue, error) {
	out := make([]wireValue, len(vals))
	for i, item := range vals {
		w, err := toWire(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = w
	}
	return out, nil
}

func fromWire(w wireValue) (Value, error) {
	switch w.K {
	case wireVoid:
		return Void{}, nil
	case wireInt:
		return Int(w.I), nil
	case wireStr:
		return Str(w.S), nil
	case wireBool:
		return Bool(w.B), nil
	case wireTuple:
		items, err := fromWireSlice(w.Items)
		if err != nil {
			return nil, err
		}
		return Tuple(items), nil
	case wireStruct:
		items, err := fromWireSlice(w.Items)
		if err != nil {
			return nil, err
		}
		return Struct{Name: w.Name, Fields: items}, nil
	case wireFailure:
		return Failure{Tag: w.Name, Msg: w.Msg}, nil
	case wireRsrc:
		return RsrcRef{ID: w.I, Kind: w.Name}, nil
	default:
		return nil, fmt.Errorf("unknown wire kind %d", w.K)
	}
}

func fromWireSlice(ws []wireValue) ([]Value, error) {
	out := make([]Value, len(ws))
	for i, w := range ws {
		v, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
