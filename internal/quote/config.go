package quote

import (
	"encoding/json"
	"fmt"
	"os"
)

// Product variants, in declaration order. The order is the tiebreak for
// equal-premium quotes.
const (
	VariantLifeShield     = "Life Shield"
	VariantLifeShieldPlus = "Life Shield Plus"
	VariantLifeShieldROP  = "Life Shield ROP"
)

// Variants lists the priced product variants.
var Variants = []string{VariantLifeShield, VariantLifeShieldPlus, VariantLifeShieldROP}

// Payment frequencies.
const (
	FrequencyYearly     = "yearly"
	FrequencyHalfYearly = "half_yearly"
	FrequencyQuarterly  = "quarterly"
	FrequencyMonthly    = "monthly"
)

// VariantRates holds the actuarial inputs for one variant: per-mille base
// rates by age band and gender, and exact-term multipliers.
type VariantRates struct {
	// AgeBands maps an age band ("26-30") to gender ("male"/"female") to the
	// annual rate per 1000 of sum assured.
	AgeBands map[string]map[string]float64 `json:"age_bands"`
	// PolicyTermFactors maps an exact term in years ("20") to a multiplier.
	// Terms not tabulated use 1.0.
	PolicyTermFactors map[string]float64 `json:"policy_term_factors"`
}

// OccupationCategory groups occupations sharing a loading factor.
type OccupationCategory struct {
	Factor      float64  `json:"factor"`
	Occupations []string `json:"occupations"`
}

// DiscountRule declares one named percentage discount.
type DiscountRule struct {
	Description string  `json:"description"`
	Percentage  float64 `json:"percentage"`
	// MinimumSumAssured gates the high-sum-assured rebate.
	MinimumSumAssured float64 `json:"minimum_sum_assured,omitempty"`
}

// Adjustments holds every multiplicative factor and discount rule applied on
// top of the base premium.
type Adjustments struct {
	TobaccoFactor        float64                       `json:"tobacco_factor"`
	OccupationCategories map[string]OccupationCategory `json:"occupation_categories"`
	HealthConditions     map[string]float64            `json:"health_conditions"`
	SumAssuredBands      map[string]float64            `json:"sum_assured_bands"`
	PaymentFrequency     map[string]float64            `json:"payment_frequency"`
	Discounts            map[string]DiscountRule       `json:"discounts"`
}

// Config is the full premium table set. Read-only after load; safe to share
// across concurrent calculations.
type Config struct {
	BaseRates   map[string]VariantRates `json:"base_rates"`
	Adjustments Adjustments             `json:"adjustments"`
}

// LoadConfig reads premium tables from a JSON file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("quote: read premium config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("quote: parse premium config: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig returns the built-in premium tables.
func DefaultConfig() *Config {
	shieldBands := map[string]map[string]float64{
		"18-25": {"male": 1.10, "female": 0.95},
		"26-30": {"male": 1.25, "female": 1.06},
		"31-35": {"male": 1.48, "female": 1.24},
		"36-40": {"male": 1.85, "female": 1.55},
		"41-45": {"male": 2.45, "female": 2.08},
		"46-50": {"male": 3.35, "female": 2.86},
		"51-55": {"male": 4.75, "female": 4.10},
		"56-60": {"male": 6.90, "female": 5.95},
		"61-65": {"male": 9.85, "female": 8.60},
	}
	scaleBands := func(factor float64) map[string]map[string]float64 {
		out := make(map[string]map[string]float64, len(shieldBands))
		for band, byGender := range shieldBands {
			scaled := make(map[string]float64, len(byGender))
			for gender, rate := range byGender {
				scaled[gender] = round2(rate * factor)
			}
			out[band] = scaled
		}
		return out
	}
	termFactors := map[string]float64{
		"10": 0.95,
		"15": 0.98,
		"20": 1.00,
		"25": 1.04,
		"30": 1.08,
		"35": 1.12,
		"40": 1.16,
	}

	return &Config{
		BaseRates: map[string]VariantRates{
			VariantLifeShield: {
				AgeBands:          shieldBands,
				PolicyTermFactors: termFactors,
			},
			VariantLifeShieldPlus: {
				AgeBands:          scaleBands(1.15),
				PolicyTermFactors: termFactors,
			},
			VariantLifeShieldROP: {
				AgeBands:          scaleBands(1.72),
				PolicyTermFactors: termFactors,
			},
		},
		Adjustments: Adjustments{
			TobaccoFactor: 1.75,
			OccupationCategories: map[string]OccupationCategory{
				"class_1": {
					Factor: 1.0,
					Occupations: []string{
						"software engineer", "engineer", "teacher", "doctor",
						"accountant", "banker", "lawyer", "consultant",
						"salaried", "manager",
					},
				},
				"class_2": {
					Factor: 1.15,
					Occupations: []string{
						"driver", "electrician", "plumber", "farmer",
						"mechanic", "carpenter",
					},
				},
				"class_3": {
					Factor: 1.40,
					Occupations: []string{
						"police officer", "firefighter", "pilot", "miner",
						"construction worker",
					},
				},
				"class_4": {
					Factor: 1.75,
					Occupations: []string{
						"armed forces", "deep sea diver", "stunt performer",
						"offshore rig worker",
					},
				},
			},
			HealthConditions: map[string]float64{
				"excellent":       0.95,
				"good":            1.00,
				"asthma":          1.15,
				"hypertension":    1.25,
				"diabetes":        1.35,
				"heart_condition": 1.90,
			},
			SumAssuredBands: map[string]float64{
				"up_to_25_lakh":      1.00,
				"25_to_50_lakh":      0.98,
				"50_lakh_to_1_crore": 0.95,
				"1_to_2_crore":       0.92,
				"above_2_crore":      0.90,
			},
			PaymentFrequency: map[string]float64{
				FrequencyYearly:     1.00,
				FrequencyHalfYearly: 1.02,
				FrequencyQuarterly:  1.04,
				FrequencyMonthly:    1.08,
			},
			Discounts: map[string]DiscountRule{
				"online_purchase": {
					Description: "Online Direct Purchase",
					Percentage:  6,
				},
				"high_sum_assured": {
					Description:       "High Sum Assured Rebate",
					Percentage:        8,
					MinimumSumAssured: 10_000_000,
				},
				"non_tobacco": {
					Description: "Non-Tobacco Preferred",
					Percentage:  10,
				},
				"loyalty": {
					Description: "Loyalty Discount",
					Percentage:  3,
				},
			},
		},
	}
}
