package chat

import (
	"errors"
	"fmt"
	"math"
)

// Defaults exposed to the operator. Only model and temperature are adjustable per session.
const (
	DefaultTemperature     = 0.7
	TemperatureStep        = 0.1
	DefaultTopP            = 0.8
	DefaultTopK            = 40
	DefaultMaxOutputTokens = 2048
)

var ErrTemperatureOutOfRange = errors.New("temperature must be between 0 and 1")

// GenerationConfig holds the sampling settings used for a single request.
type GenerationConfig struct {
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// NewGenerationConfig returns the fixed sampling limits with the given model and temperature.
func NewGenerationConfig(modelID string, temperature float64) GenerationConfig {
	return GenerationConfig{
		Model:           modelID,
		Temperature:     SnapTemperature(temperature),
		TopP:            DefaultTopP,
		TopK:            DefaultTopK,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
}

// Validate checks the operator-controlled fields.
func (c GenerationConfig) Validate() error {
	if c.Model == "" {
		return errors.New("model is required")
	}
	if math.IsNaN(c.Temperature) || c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("%w: got %v", ErrTemperatureOutOfRange, c.Temperature)
	}
	return nil
}

// SnapTemperature rounds to the slider step and clamps into [0,1].
func SnapTemperature(t float64) float64 {
	if math.IsNaN(t) {
		return DefaultTemperature
	}
	snapped := math.Round(t*10) / 10
	return math.Min(1, math.Max(0, snapped))
}
