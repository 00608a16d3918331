// Package ai provides the embedding abstraction used during delivery.
//
// Public constructors in implementation packages return the Embedder
// interface to enforce abstraction:
//
//	embedder, err := openai.NewEmbedder(config)  // returns ai.Embedder
//
// The ai/mock package provides a deterministic test double that
// returns a concrete type so tests can inject behavior and assert on
// call counts.
package ai
