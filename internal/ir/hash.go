package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainCode is the domain prefix for code fingerprints.
// Version suffix enables future algorithm migration.
const DomainCode = "weft/code/v" + CodeVersion

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// wireOp is the encoding of one instruction for fingerprinting.
type wireOp struct {
	Op     string     `cbor:"op"`
	Dst    string     `cbor:"dst,omitempty"`
	Src    string     `cbor:"src,omitempty"`
	Regs   []string   `cbor:"regs,omitempty"`
	Val    *wireValue `cbor:"val,omitempty"`
	Module string     `cbor:"module,omitempty"`
	Func   string     `cbor:"func,omitempty"`
	Text   [2]string  `cbor:"text"`
	Offset int        `cbor:"offset,omitempty"`
}

// Fingerprint returns a content hash of a bytecode sequence. Two functions
// with identical instructions share a fingerprint.
func Fingerprint(ops []Op) (string, error) {
	wire := make([]wireOp, len(ops))
	for i, op := range ops {
		w, err := toWireOp(op)
		if err != nil {
			return "", fmt.Errorf("Fingerprint: op %d: %w", i, err)
		}
		wire[i] = w
	}
	data, err := encMode.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCode, data), nil
}

func toWireOp(op Op) (wireOp, error) {
	w := wireOp{Op: op.Name()}
	switch o := op.(type) {
	case OpConst:
		val, err := toWire(o.Val)
		if err != nil {
			return w, err
		}
		w.Dst, w.Val = o.Dst.String(), &val
	case OpCopy:
		w.Dst, w.Src = o.Dst.String(), o.Src.String()
	case OpTuple:
		w.Dst, w.Regs = o.Dst.String(), regStrings(o.Items)
	case OpStruct:
		w.Dst, w.Regs, w.Text[0] = o.Dst.String(), regStrings(o.Items), o.Type
	case OpFail:
		w.Dst, w.Text = o.Dst.String(), [2]string{o.Tag, o.Msg}
	case OpCall:
		w.Dst, w.Module, w.Func, w.Regs = o.Dst.String(), o.Module, o.Func, regStrings(o.Args)
	case OpReturn:
		w.Src = o.Src.String()
	case OpJump:
		w.Offset = o.Offset
	case OpJumpIfNot:
		w.Src, w.Offset = o.Cond.String(), o.Offset
	case OpFork:
	default:
		return w, fmt.Errorf("unsupported op %T", op)
	}
	return w, nil
}

func regStrings(regs []Reg) []string {
	out := make([]string, len(regs))
	for i, r := range regs {
		out[i] = r.String()
	}
	return out
}
