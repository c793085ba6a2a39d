// Package openai implements the ai service interfaces against
// OpenAI-compatible HTTP endpoints (OpenAI, Ollama, LocalAI, vLLM)
// via langchaingo.
package openai
