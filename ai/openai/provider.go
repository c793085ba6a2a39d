package openai

import (
	"log/slog"

	"github.com/noctua-systems/noctua/ai"
)

// Provider implements ai.Provider using OpenAI-compatible services.
// It manages embedder and completer instances.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	completer *Completer
	logger    *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	usage ai.UsageRecorder
}

// WithUsageRecorder sets the usage recorder shared by the provider's services.
// Default is a slog-backed recorder.
func WithUsageRecorder(recorder ai.UsageRecorder) ProviderOption {
	return func(o *providerOptions) {
		o.usage = recorder
	}
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config, opts ...ProviderOption) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := &providerOptions{
		usage: ai.NewLogUsageRecorder(nil),
	}
	for _, opt := range opts {
		opt(options)
	}

	embedder, err := newEmbedder(config, options.usage)
	if err != nil {
		return nil, err
	}

	completer, err := newCompleter(config, options.usage)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		embedder:  embedder,
		completer: completer,
		logger:    slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Completer returns the chat completion service.
func (p *Provider) Completer() ai.Completer {
	return p.completer
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
