// Package model defines the provider agnostic interface for language model
// backends together with small helpers shared by every caller.
//
// A Model turns a conversation ([]core.Message) into assistant text, either in
// one piece (Complete) or as a stream of text deltas (Stream). Concrete
// backends live in subpackages (ollama, openai, anthropic, gemini) and are
// selected from configuration by model/providers.
//
// MockModel is a scripted in-memory implementation for tests and examples.
package model
