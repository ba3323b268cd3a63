// Package tensor provides the dense tensor container used throughout
// gramconv: model weights loaded from checkpoints, dummy trace inputs,
// and intermediate values produced while executing exported graphs.
//
// The package is deliberately inference-only. There is no autodiff, no
// gradient tracking and no copy-on-write buffer sharing: a conversion run
// creates every tensor once, reads it a handful of times and discards it
// on exit.
package tensor
