package loader

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/born-ml/gramconv/internal/tensor"
)

// torchCheckpoint wraps a deserialized PyTorch state dict.
type torchCheckpoint struct {
	names   []string
	tensors map[string]*pytorch.Tensor
}

// openTorch loads a pytorch_model.bin state dict.
func openTorch(path string) (*torchCheckpoint, error) {
	loaded, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load pytorch checkpoint: %w", err)
	}
	return stateDictTensors(loaded)
}

// stateDictTensors collects the tensor entries from an unpickled state
// dict root, preserving insertion order.
func stateDictTensors(root interface{}) (*torchCheckpoint, error) {
	ckpt := &torchCheckpoint{tensors: make(map[string]*pytorch.Tensor)}

	add := func(key, value interface{}) error {
		name, ok := key.(string)
		if !ok {
			return fmt.Errorf("state dict key %v is not a string", key)
		}
		t, ok := value.(*pytorch.Tensor)
		if !ok {
			// State dicts can carry non-tensor entries (e.g. metadata);
			// skip them.
			return nil
		}
		ckpt.names = append(ckpt.names, name)
		ckpt.tensors[name] = t
		return nil
	}

	switch dict := root.(type) {
	case *types.OrderedDict:
		for e := dict.List.Front(); e != nil; e = e.Next() {
			entry, ok := e.Value.(*types.OrderedDictEntry)
			if !ok {
				return nil, fmt.Errorf("unexpected state dict entry type %T", e.Value)
			}
			if err := add(entry.Key, entry.Value); err != nil {
				return nil, err
			}
		}
	case *types.Dict:
		for _, entry := range *dict {
			if err := add(entry.Key, entry.Value); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unexpected checkpoint root type %T (expected state dict)", root)
	}

	if len(ckpt.tensors) == 0 {
		return nil, fmt.Errorf("checkpoint contains no tensors")
	}
	return ckpt, nil
}

func (c *torchCheckpoint) Format() Format { return FormatTorch }

func (c *torchCheckpoint) TensorNames() []string { return c.names }

func (c *torchCheckpoint) Close() error { return nil }

// LoadTensor converts a pickled tensor to a contiguous float32 RawTensor.
// PyTorch tensors may be stored with arbitrary strides into a shared
// storage; the copy below walks the strides to produce row-major data.
func (c *torchCheckpoint) LoadTensor(name string) (*tensor.RawTensor, error) {
	t, ok := c.tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}

	values, err := storageFloat32(t.Source)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	shape := tensor.Shape(t.Size)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}

	n := shape.NumElements()
	out := make([]float32, n)

	// Row-major walk over the logical index space, reading through the
	// stored strides.
	idx := make([]int, len(shape))
	for i := 0; i < n; i++ {
		off := t.StorageOffset
		for d, v := range idx {
			off += v * t.Stride[d]
		}
		if off < 0 || off >= len(values) {
			return nil, fmt.Errorf("tensor %s: storage offset %d out of range", name, off)
		}
		out[i] = values[off]

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}

	return tensor.FromFloat32(shape, out)
}

// storageFloat32 widens any supported pickle storage to float32.
func storageFloat32(src pytorch.StorageInterface) ([]float32, error) {
	switch s := src.(type) {
	case *pytorch.FloatStorage:
		return s.Data, nil
	case *pytorch.HalfStorage:
		// gopickle decodes half storage to float32 already.
		return s.Data, nil
	case *pytorch.BFloat16Storage:
		return s.Data, nil
	case *pytorch.DoubleStorage:
		out := make([]float32, len(s.Data))
		for i, v := range s.Data {
			out[i] = float32(v)
		}
		return out, nil
	case *pytorch.IntStorage:
		out := make([]float32, len(s.Data))
		for i, v := range s.Data {
			out[i] = float32(v)
		}
		return out, nil
	case *pytorch.LongStorage:
		out := make([]float32, len(s.Data))
		for i, v := range s.Data {
			out[i] = float32(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %T", src)
	}
}
