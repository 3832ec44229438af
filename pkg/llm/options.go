// Package llm provides options pattern for LLM generation parameters.
package llm

// GenerateOptions holds parameters for LLM generation.
// Model, Temperature and MaxTokens come from the model definition in
// config.yaml; ParallelToolCalls is set per call.
type GenerateOptions struct {
	// Model is the model identifier (e.g., "gpt-4o-mini")
	Model string

	// Temperature controls randomness in responses (0.0 = deterministic)
	Temperature float64

	// MaxTokens limits the response length
	MaxTokens int

	// ParallelToolCalls controls whether LLM can call multiple tools at once.
	// nil = provider default.
	ParallelToolCalls *bool
}

// GenerateOption is a functional option for configuring GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithParallelToolCalls allows or forbids several tool calls in one response.
func WithParallelToolCalls(enabled bool) GenerateOption {
	return func(o *GenerateOptions) {
		o.ParallelToolCalls = &enabled
	}
}

// ApplyOptions folds every GenerateOption found in opts over base.
// Values of other types are ignored.
func ApplyOptions(base GenerateOptions, opts ...any) GenerateOptions {
	for _, opt := range opts {
		if fn, ok := opt.(GenerateOption); ok {
			fn(&base)
		}
	}
	return base
}
