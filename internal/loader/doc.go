// Package loader reads pretrained model weights from disk.
//
// Two checkpoint formats are supported, matching what HuggingFace model
// snapshots actually contain:
//
//   - SafeTensors (model.safetensors): the preferred format, a JSON
//     header over a flat blob of tensor data
//   - PyTorch pickle (pytorch_model.bin): a legacy zip/pickle state
//     dict, decoded with gopickle
//
// Both are exposed through the Checkpoint interface. Half-precision
// weights (F16, BF16) are widened to float32 on load; the conversion
// pipeline computes and exports in float32 throughout.
package loader
