// Package rsync implements an rsync-style differential transport: a
// block signature over existing content, a binary diff of a signature
// against new content, and application of that diff to reconstruct the
// new content. It is the mechanism behind spec section 4.6's "binary-diff
// encoding" and section 4.5's push/pull data path.
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

// BlockSize is the fixed block size signatures and diffs operate on.
const BlockSize = 8 * 1024

// BlockSignature is the weak (rolling) and strong (cryptographic) checksum
// of one fixed-size block of a file.
type BlockSignature struct {
	Index  int
	Weak   uint32
	Strong [sha256.Size]byte
}

// Signature is the ordered list of block signatures covering a file, plus
// the file's total length (the final block may be shorter than
// BlockSize).
type Signature struct {
	Blocks []BlockSignature
	Size   int64
}

// ComputeSignature reads r fully and returns its block signature.
func ComputeSignature(r io.Reader) (*Signature, error) {
	sig := &Signature{}
	buf := make([]byte, BlockSize)
	idx := 0
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			block := buf[:n]
			roller := adler32.New()
			_, _ = roller.Write(block)
			sig.Blocks = append(sig.Blocks, BlockSignature{
				Index:  idx,
				Weak:   roller.Sum32(),
				Strong: sha256.Sum256(block),
			})
			sig.Size += int64(n)
			idx++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("compute signature: %w", err)
		}
	}
	return sig, nil
}

// Encode renders the signature to the base-85 wire form used in JSON
// bodies (spec section 6: "Binary payloads ... travel as base-85 strings
// inside JSON").
func (s *Signature) Encode() string {
	var raw bytes.Buffer
	_ = binary.Write(&raw, binary.BigEndian, s.Size)
	_ = binary.Write(&raw, binary.BigEndian, int64(len(s.Blocks)))
	for _, b := range s.Blocks {
		_ = binary.Write(&raw, binary.BigEndian, int64(b.Index))
		_ = binary.Write(&raw, binary.BigEndian, b.Weak)
		raw.Write(b.Strong[:])
	}

	enc := make([]byte, ascii85.MaxEncodedLen(raw.Len()))
	n := ascii85.Encode(enc, raw.Bytes())
	return string(enc[:n])
}

// DecodeSignature parses the base-85 wire form produced by Encode.
func DecodeSignature(s string) (*Signature, error) {
	// A single 'z' character decodes to four zero bytes, so the output can
	// be up to four times longer than the input.
	dec := make([]byte, 4*len(s))
	ndec, _, err := ascii85.Decode(dec, []byte(s), true)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	buf := bytes.NewReader(dec[:ndec])

	var size, count int64
	if err := binary.Read(buf, binary.BigEndian, &size); err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if err := binary.Read(buf, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}

	sig := &Signature{Size: size, Blocks: make([]BlockSignature, 0, count)}
	for i := int64(0); i < count; i++ {
		var b BlockSignature
		var idx64 int64
		if err := binary.Read(buf, binary.BigEndian, &idx64); err != nil {
			return nil, fmt.Errorf("decode signature: %w", err)
		}
		b.Index = int(idx64)
		if err := binary.Read(buf, binary.BigEndian, &b.Weak); err != nil {
			return nil, fmt.Errorf("decode signature: %w", err)
		}
		if _, err := io.ReadFull(buf, b.Strong[:]); err != nil {
			return nil, fmt.Errorf("decode signature: %w", err)
		}
		sig.Blocks = append(sig.Blocks, b)
	}
	return sig, nil
}
