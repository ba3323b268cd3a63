// Package tokenizer handles the tokenizer side of a model conversion.
//
// The converter never tokenizes text itself during export (dummy inputs
// are random token ids), but it must carry the tokenizer artifacts to
// the output directory so the exported graphs are usable, and it reads
// tokenizer metadata (vocab size, type) for reporting and dummy-input
// sizing.
//
// Three concerns live here:
//   - inspection: detect the tokenizer type and vocab from tokenizer.json
//   - persistence: copy native (slow) artifacts, then attempt the fast
//     tokenizer.json; fast failure is degraded, not fatal
//   - encoding fallback: a tiktoken-backed Tokenizer for models that
//     name an OpenAI-style encoding instead of shipping files
package tokenizer
