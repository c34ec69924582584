package domain

// LabelPrompt pairs a disease class name with the text prompt scored against the image.
type LabelPrompt struct {
	Label  string `yaml:"label"`
	Prompt string `yaml:"prompt"`
}

// DefaultLabelPrompts returns the potato disease classes the vision model was fine-tuned on.
// Order is significant: scores come back from the model in prompt order.
func DefaultLabelPrompts() []LabelPrompt {
	return []LabelPrompt{
		{Label: "Bacteria", Prompt: "a potato leaf infected with bacterial disease"},
		{Label: "Fungi", Prompt: "a potato leaf infected with fungal disease"},
		{Label: "Healthy", Prompt: "a healthy potato leaf with no disease"},
		{Label: "Nematode", Prompt: "a potato leaf infected with nematode disease"},
		{Label: "Pest", Prompt: "a potato leaf damaged by pests"},
		{Label: "Phytopthora", Prompt: "a potato leaf infected with phytopthora disease"},
		{Label: "Virus", Prompt: "a potato leaf infected with viral disease"},
	}
}

// RecommendationPrompt builds the text-to-text input for treatment generation.
func RecommendationPrompt(disease string) string {
	return "Recommend treatment for potato disease: " + disease
}

// GenerateParams tunes treatment text generation on the vision sidecar.
type GenerateParams struct {
	MaxTokens int
	NumBeams  int
}

// Prediction is the outcome of a single leaf image diagnosis.
type Prediction struct {
	Disease        string
	Confidence     float64
	Probabilities  map[string]float64
	Recommendation string
}
