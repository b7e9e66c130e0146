package catalog

// Tier describes the cost/capability class of a model.
type Tier string

const (
	TierFast           Tier = "fast"
	TierLowCost        Tier = "low-cost"
	TierHighCapability Tier = "high-capability"
)

// Model is a selectable entry of the model dropdown.
type Model struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Tier        Tier   `json:"tier"`
	Description string `json:"description,omitempty"`
}

// Seed provides the three fixed models offered to users; the first one is the default.
func Seed() []Model {
	return []Model{
		{
			ID:          "gemini-2.0-flash",
			Label:       "Gemini 2.0 Flash",
			Tier:        TierFast,
			Description: "Fast & recommended",
		},
		{
			ID:          "gemini-2.5-flash-lite",
			Label:       "Gemini 2.5 Flash-Lite",
			Tier:        TierLowCost,
			Description: "Cost-effective",
		},
		{
			ID:          "gemini-2.5-pro",
			Label:       "Gemini 2.5 Pro",
			Tier:        TierHighCapability,
			Description: "Powerful",
		},
	}
}
