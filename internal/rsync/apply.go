package rsync

import (
	"bytes"
	"fmt"
)

// Apply reconstructs the new content by replaying diff against oldContent,
// the same bytes ComputeSignature was originally run over.
func Apply(oldContent []byte, diff *Diff) ([]byte, error) {
	var out bytes.Buffer
	for _, op := range diff.Ops {
		switch op.Kind {
		case OpCopy:
			start := op.BlockIndex * BlockSize
			if start >= len(oldContent) {
				return nil, fmt.Errorf("apply diff: block %d out of range (old content %d bytes)", op.BlockIndex, len(oldContent))
			}
			end := start + BlockSize
			if end > len(oldContent) {
				end = len(oldContent)
			}
			out.Write(oldContent[start:end])
		case OpData:
			out.Write(op.Data)
		default:
			return nil, fmt.Errorf("apply diff: unknown op kind %d", op.Kind)
		}
	}
	return out.Bytes(), nil
}
