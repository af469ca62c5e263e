// Package registry holds the catalog of generation models and their
// credit pricing. Prices are stored in USD and converted to credits at
// charge time so provider price changes only touch this file.
package registry

import "math"

type ModelType string

const (
	TypeImage ModelType = "image"
	TypeVideo ModelType = "video"
	Type3D    ModelType = "3d"
)

const (
	// USD price -> credits conversion: usd * markup * fx / inrPerCredit.
	markup       = 2.0
	usdToInr     = 100.0
	inrPerCredit = 5.0
)

// CreditParams carries the request attributes that influence price.
type CreditParams struct {
	Quality   string
	Duration  int
	ImageSize string
}

// Pricing describes a model's USD cost. Video models bill per second
// via PerSecond; image models bill a flat Base, optionally overridden
// per image size through Tiers.
type Pricing struct {
	Base      float64
	PerSecond float64
	Tiers     map[string]float64
}

type Capabilities struct {
	ImageInput     bool
	MultiImage     bool
	FirstLastFrame bool
	MaxDuration    int
	AspectRatios   []string
}

type ModelConfig struct {
	ID           string
	Name         string
	Provider     string
	Type         ModelType
	Pricing      Pricing
	Capabilities Capabilities
}

// CalculateCredits prices a single generation with this model.
func (m *ModelConfig) CalculateCredits(params CreditParams) int {
	if m.Type == TypeVideo {
		duration := params.Duration
		if duration <= 0 {
			duration = 8
		}
		return UsdToCredits(m.Pricing.PerSecond * float64(duration))
	}
	usd := m.Pricing.Base
	if params.ImageSize != "" {
		if tier, ok := m.Pricing.Tiers[params.ImageSize]; ok {
			usd = tier
		}
	}
	return UsdToCredits(usd)
}

// UsdToCredits converts a USD cost to whole credits, rounding up so a
// generation never bills below provider cost.
func UsdToCredits(usd float64) int {
	return int(math.Ceil(usd * markup * usdToInr / inrPerCredit))
}

const (
	DefaultImageModel     = "gemini-2.5-flash-image"
	DefaultImageModelHigh = "gemini-3-pro-image-preview"
	DefaultVideoModel     = "veo-3.1-fast-generate-preview"
	DefaultVideoModelHigh = "veo-3.1-generate-preview"
)

var catalog = map[string]*ModelConfig{
	"gemini-3-pro-image-preview": {
		ID:       "gemini-3-pro-image-preview",
		Name:     "Gemini 3 Pro Image",
		Provider: "google",
		Type:     TypeImage,
		Pricing: Pricing{
			Base: 0.134,
			Tiers: map[string]float64{
				"1K": 0.134,
				"2K": 0.134,
				"4K": 0.24,
			},
		},
		Capabilities: Capabilities{
			ImageInput:   true,
			MultiImage:   true,
			AspectRatios: []string{"1:1", "16:9", "9:16", "4:3", "3:4"},
		},
	},
	"gemini-2.5-flash-image": {
		ID:       "gemini-2.5-flash-image",
		Name:     "Gemini 2.5 Flash Image",
		Provider: "google",
		Type:     TypeImage,
		Pricing:  Pricing{Base: 0.039},
		Capabilities: Capabilities{
			ImageInput:   true,
			MultiImage:   true,
			AspectRatios: []string{"1:1", "16:9", "9:16", "4:3", "3:4"},
		},
	},
	"veo-3.1-generate-preview": {
		ID:       "veo-3.1-generate-preview",
		Name:     "Veo 3.1",
		Provider: "google",
		Type:     TypeVideo,
		Pricing:  Pricing{PerSecond: 0.40},
		Capabilities: Capabilities{
			ImageInput:     true,
			FirstLastFrame: true,
			MaxDuration:    8,
			AspectRatios:   []string{"16:9", "9:16"},
		},
	},
	"veo-3.1-fast-generate-preview": {
		ID:       "veo-3.1-fast-generate-preview",
		Name:     "Veo 3.1 Fast",
		Provider: "google",
		Type:     TypeVideo,
		Pricing:  Pricing{PerSecond: 0.15},
		Capabilities: Capabilities{
			ImageInput:     true,
			FirstLastFrame: true,
			MaxDuration:    8,
			AspectRatios:   []string{"16:9", "9:16"},
		},
	},
	"veo-3.0-generate-001": {
		ID:       "veo-3.0-generate-001",
		Name:     "Veo 3",
		Provider: "google",
		Type:     TypeVideo,
		Pricing:  Pricing{PerSecond: 0.40},
		Capabilities: Capabilities{
			ImageInput:   true,
			MaxDuration:  8,
			AspectRatios: []string{"16:9", "9:16"},
		},
	},
	"veo-3.0-fast-generate-001": {
		ID:       "veo-3.0-fast-generate-001",
		Name:     "Veo 3 Fast",
		Provider: "google",
		Type:     TypeVideo,
		Pricing:  Pricing{PerSecond: 0.15},
		Capabilities: Capabilities{
			ImageInput:   true,
			MaxDuration:  8,
			AspectRatios: []string{"16:9", "9:16"},
		},
	},
}

// Get returns the model with the given id, or nil if unknown.
func Get(id string) *ModelConfig {
	return catalog[id]
}

// ByType lists every model of the given type.
func ByType(t ModelType) []*ModelConfig {
	var out []*ModelConfig
	for _, m := range catalog {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Resolve maps a requested model id to a concrete catalog entry.
// Empty string and "auto" pick a default for the type, steered by the
// requested quality. An unknown explicit id resolves to nil.
func Resolve(t ModelType, id, quality string) *ModelConfig {
	if id == "" || id == "auto" {
		high := quality == "ultra" || quality == "high"
		switch t {
		case TypeVideo:
			if high {
				return catalog[DefaultVideoModelHigh]
			}
			return catalog[DefaultVideoModel]
		default:
			if high {
				return catalog[DefaultImageModelHigh]
			}
			return catalog[DefaultImageModel]
		}
	}
	return catalog[id]
}

// FallbackCost prices a generation when the model is not in the
// catalog. Video bills at the standard per-second rate; image bills at
// the default image model's flat rate.
func FallbackCost(t ModelType, params CreditParams) int {
	if t == TypeVideo {
		duration := params.Duration
		if duration <= 0 {
			duration = 8
		}
		return UsdToCredits(0.40 * float64(duration))
	}
	return catalog[DefaultImageModel].CalculateCredits(params)
}
