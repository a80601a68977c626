package rsync

import (
	"bytes"
	"crypto/sha256"
	"encoding/ascii85"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/chmduquesne/rollinghash/adler32"
)

// OpKind distinguishes a copy-from-old-block instruction from a literal
// data insertion in a Diff.
type OpKind byte

const (
	OpCopy OpKind = iota
	OpData
)

// Op is one instruction of a Diff: either copy BlockIndex verbatim from
// the receiver's existing content, or insert Data literally.
type Op struct {
	Kind       OpKind
	BlockIndex int
	Data       []byte
}

// Diff is an ordered list of Ops that reconstructs new content when
// applied against the content the Signature was computed over.
type Diff struct {
	Ops []Op
}

// ComputeDiff compares newContent against sig (computed over the old
// content) and returns the minimal diff: runs of newContent that match an
// old block are emitted as OpCopy; everything else is emitted as OpData.
func ComputeDiff(sig *Signature, newContent []byte) *Diff {
	byWeak := make(map[uint32][]BlockSignature, len(sig.Blocks))
	for _, b := range sig.Blocks {
		byWeak[b.Weak] = append(byWeak[b.Weak], b)
	}

	diff := &Diff{}
	var literal bytes.Buffer
	flushLiteral := func() {
		if literal.Len() > 0 {
			diff.Ops = append(diff.Ops, Op{Kind: OpData, Data: append([]byte(nil), literal.Bytes()...)})
			literal.Reset()
		}
	}

	n := len(newContent)
	if n == 0 {
		return diff
	}

	window := BlockSize
	if window > n {
		window = n
	}

	roller := adler32.New()
	_, _ = roller.Write(newContent[:window])

	i := 0
	for i < n {
		end := i + window
		if end > n {
			end = n
		}
		if candidates, ok := byWeak[roller.Sum32()]; ok && end-i == window {
			if b, matched := matchStrong(candidates, newContent[i:end]); matched {
				flushLiteral()
				diff.Ops = append(diff.Ops, Op{Kind: OpCopy, BlockIndex: b.Index})
				i = end
				if i >= n {
					break
				}
				next := window
				if i+next > n {
					next = n - i
				}
				roller = adler32.New()
				_, _ = roller.Write(newContent[i : i+next])
				window = next
				continue
			}
		}

		literal.WriteByte(newContent[i])
		i++
		if i < n {
			if i+window <= n {
				roller.Roll(newContent[i+window-1])
			} else {
				next := n - i
				roller = adler32.New()
				_, _ = roller.Write(newContent[i : i+next])
				window = next
			}
		}
	}
	flushLiteral()
	return diff
}

func matchStrong(candidates []BlockSignature, block []byte) (BlockSignature, bool) {
	strong := sha256.Sum256(block)
	for _, c := range candidates {
		if c.Strong == strong {
			return c, true
		}
	}
	return BlockSignature{}, false
}

// Encode renders the diff to the base-85 wire form.
func (d *Diff) Encode() string {
	var raw bytes.Buffer
	_ = binary.Write(&raw, binary.BigEndian, int64(len(d.Ops)))
	for _, op := range d.Ops {
		raw.WriteByte(byte(op.Kind))
		switch op.Kind {
		case OpCopy:
			_ = binary.Write(&raw, binary.BigEndian, int64(op.BlockIndex))
		case OpData:
			_ = binary.Write(&raw, binary.BigEndian, int64(len(op.Data)))
			raw.Write(op.Data)
		}
	}
	enc := make([]byte, ascii85.MaxEncodedLen(raw.Len()))
	n := ascii85.Encode(enc, raw.Bytes())
	return string(enc[:n])
}

// DecodeDiff parses the base-85 wire form produced by Encode.
func DecodeDiff(s string) (*Diff, error) {
	dec := make([]byte, 4*len(s)) // 'z' expands to four bytes
	ndec, _, err := ascii85.Decode(dec, []byte(s), true)
	if err != nil {
		return nil, fmt.Errorf("decode diff: %w", err)
	}
	buf := bytes.NewReader(dec[:ndec])

	var count int64
	if err := binary.Read(buf, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("decode diff: %w", err)
	}

	diff := &Diff{Ops: make([]Op, 0, count)}
	for i := int64(0); i < count; i++ {
		kindByte, err := buf.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("decode diff: %w", err)
		}
		op := Op{Kind: OpKind(kindByte)}
		switch op.Kind {
		case OpCopy:
			var idx64 int64
			if err := binary.Read(buf, binary.BigEndian, &idx64); err != nil {
				return nil, fmt.Errorf("decode diff: %w", err)
			}
			op.BlockIndex = int(idx64)
		case OpData:
			var n64 int64
			if err := binary.Read(buf, binary.BigEndian, &n64); err != nil {
				return nil, fmt.Errorf("decode diff: %w", err)
			}
			op.Data = make([]byte, n64)
			if _, err := io.ReadFull(buf, op.Data); err != nil {
				return nil, fmt.Errorf("decode diff: %w", err)
			}
		default:
			return nil, fmt.Errorf("decode diff: unknown op kind %d", kindByte)
		}
		diff.Ops = append(diff.Ops, op)
	}
	return diff, nil
}
