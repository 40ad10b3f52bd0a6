package llm

// ModelPricing holds per-model pricing in USD per 1M tokens.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// priceTable maps model identifiers to their pricing. Local models (Ollama)
// are intentionally absent: PricingFor reports them unknown and callers
// treat unknown models as zero-cost.
var priceTable = map[string]ModelPricing{
	"claude-sonnet-4-5": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku-4-5":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"claude-opus-4-1":   {InputPerMillion: 15.00, OutputPerMillion: 75.00},

	"gpt-4o":      {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},

	"gemini-2.0-flash": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-1.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 5.00},
}

// PricingFor returns the pricing for a model identifier, and false when the
// model is unrecognized (e.g. a local Ollama model).
func PricingFor(model string) (ModelPricing, bool) {
	p, ok := priceTable[model]
	return p, ok
}

// EstimateCost returns the estimated cost in USD for the given model and
// token counts, applying the cost formula with zero cache tokens.
// Returns 0 if the model is not found in the price table.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := priceTable[model]
	if !ok {
		return 0
	}

	inputCost := float64(inputTokens) / 1_000_000.0 * pricing.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000.0 * pricing.OutputPerMillion
	return inputCost + outputCost
}

// EstimateTokens provides a rough token count estimation for the given text.
// Uses the approximation of 1 token per 4 characters.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}
