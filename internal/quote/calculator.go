package quote

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/insurelab/termlife-ai-platform/pkg/logging"
)

// Profile carries the customer facts that feed the adjustment pipeline.
type Profile struct {
	Gender           string
	TobaccoUser      bool
	Occupation       string
	HealthCondition  string
	PaymentFrequency string
	Age              int
	AnnualIncome     float64
	RiskProfile      string
	PurchaseChannel  string
	ExistingCustomer bool
}

// Discount is one applied discount with its absolute rupee amount.
type Discount struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	Amount     float64 `json:"amount"`
}

// Breakdown records the factor lookups used for a quote so replies can
// explain the price.
type Breakdown struct {
	Variant            string  `json:"variant"`
	AgeBand            string  `json:"age_band"`
	Gender             string  `json:"gender"`
	TobaccoUser        bool    `json:"tobacco_user"`
	OccupationCategory string  `json:"occupation_category"`
	HealthCondition    string  `json:"health_condition"`
	PolicyTerm         int     `json:"policy_term"`
	SumAssuredBand     string  `json:"sum_assured_band"`
	PaymentFrequency   string  `json:"payment_frequency"`
	BaseRatePerMille   float64 `json:"base_rate_per_mille"`
}

// Quote is an immutable computed artifact. Produced fresh on each
// calculation; replaced, never mutated.
type Quote struct {
	Variant             string              `json:"variant"`
	AnnualPremium       float64             `json:"annual_premium"`
	ModalPremiums       map[string]float64  `json:"modal_premiums"`
	SumAssured          float64             `json:"sum_assured"`
	PolicyTerm          int                 `json:"policy_term"`
	PremiumPayingTerm   int                 `json:"premium_paying_term"`
	TotalPremiumPayable float64             `json:"total_premium_payable"`
	Features            []string            `json:"features"`
	Benefits            map[string]any      `json:"benefits"`
	DiscountsApplied    map[string]Discount `json:"discounts_applied"`
	DiscountAmount      float64             `json:"discount_amount"`
	Recommended         bool                `json:"recommended"`
	BasePremium         float64             `json:"base_premium"`
	AdjustedPremium     float64             `json:"adjusted_premium"`
	Breakdown           Breakdown           `json:"calculation_breakdown"`
}

// Calculator prices the three product variants from static rate tables. The
// tables are read-only after construction, so a single Calculator is safe for
// concurrent use.
type Calculator struct {
	cfg    *Config
	logger *logging.Logger
}

// NewCalculator builds a calculator over the given tables. A nil config uses
// the built-in tables.
func NewCalculator(cfg *Config, logger *logging.Logger) *Calculator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Calculator{cfg: cfg, logger: logger}
}

// GenerateQuotes prices every variant and returns the results sorted
// ascending by annual premium (stable, so declaration order breaks ties). A
// variant whose calculation fails is skipped, never failing the batch.
func (c *Calculator) GenerateQuotes(age int, sumAssured float64, policyTerm, premiumPayingTerm int, profile Profile) []Quote {
	quotes := make([]Quote, 0, len(Variants))
	for _, variant := range Variants {
		q, err := c.CalculateQuote(variant, age, sumAssured, policyTerm, premiumPayingTerm, profile)
		if err != nil {
			c.logger.Error("quote calculation failed", "variant", variant, "error", err)
			continue
		}
		quotes = append(quotes, q)
	}
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].AnnualPremium < quotes[j].AnnualPremium
	})
	return quotes
}

// CalculateQuote prices a single variant.
func (c *Calculator) CalculateQuote(variant string, age int, sumAssured float64, policyTerm, premiumPayingTerm int, profile Profile) (Quote, error) {
	base, rate, err := c.basePremium(variant, age, sumAssured, policyTerm, profile)
	if err != nil {
		return Quote{}, err
	}

	adjusted := c.applyAdjustments(base, sumAssured, profile)

	discounts := c.applicableDiscounts(profile, sumAssured)
	var totalDiscount float64
	for key, d := range discounts {
		d.Amount = round2(adjusted * d.Percentage / 100)
		discounts[key] = d
		totalDiscount += d.Amount
	}

	// Discounts can never more than halve the adjusted premium.
	annual := math.Max(adjusted-totalDiscount, adjusted*0.5)

	return Quote{
		Variant:             variant,
		AnnualPremium:       round2(annual),
		ModalPremiums:       c.modalPremiums(annual),
		SumAssured:          sumAssured,
		PolicyTerm:          policyTerm,
		PremiumPayingTerm:   premiumPayingTerm,
		TotalPremiumPayable: round2(annual * float64(premiumPayingTerm)),
		Features:            VariantFeatures(variant),
		Benefits:            VariantBenefits(variant, sumAssured),
		DiscountsApplied:    discounts,
		DiscountAmount:      round2(totalDiscount),
		Recommended:         c.isRecommended(variant, profile),
		BasePremium:         round2(base),
		AdjustedPremium:     round2(adjusted),
		Breakdown: Breakdown{
			Variant:            variant,
			AgeBand:            ageBand(age),
			Gender:             normalizeGender(profile.Gender),
			TobaccoUser:        profile.TobaccoUser,
			OccupationCategory: c.occupationCategory(profile.Occupation),
			HealthCondition:    healthOrDefault(profile.HealthCondition),
			PolicyTerm:         policyTerm,
			SumAssuredBand:     sumAssuredBand(sumAssured),
			PaymentFrequency:   frequencyOrDefault(profile.PaymentFrequency),
			BaseRatePerMille:   rate,
		},
	}, nil
}

func (c *Calculator) basePremium(variant string, age int, sumAssured float64, policyTerm int, profile Profile) (premium, rate float64, err error) {
	rates, ok := c.cfg.BaseRates[variant]
	if !ok {
		return 0, 0, fmt.Errorf("quote: no premium rates for variant %q", variant)
	}
	band := ageBand(age)
	byGender, ok := rates.AgeBands[band]
	if !ok {
		return 0, 0, fmt.Errorf("quote: no rates for variant %q age band %s", variant, band)
	}
	gender := normalizeGender(profile.Gender)
	rate, ok = byGender[gender]
	if !ok {
		rate, ok = byGender["male"]
		if !ok {
			return 0, 0, fmt.Errorf("quote: no rate for variant %q band %s gender %s", variant, band, gender)
		}
	}

	premium = (sumAssured / 1000) * rate
	factor, ok := rates.PolicyTermFactors[strconv.Itoa(policyTerm)]
	if !ok {
		factor = 1.0
	}
	return premium * factor, rate, nil
}

// applyAdjustments multiplies the base premium by every applicable factor.
// All factors are multiplicative, so the sequence is commutative; each is
// looked up independently.
func (c *Calculator) applyAdjustments(base, sumAssured float64, profile Profile) float64 {
	adj := c.cfg.Adjustments
	premium := base

	if profile.TobaccoUser {
		premium *= adj.TobaccoFactor
	}
	premium *= c.occupationFactor(profile.Occupation)
	if factor, ok := adj.HealthConditions[healthOrDefault(profile.HealthCondition)]; ok {
		premium *= factor
	}
	premium *= c.sumAssuredFactor(sumAssured)
	if factor, ok := adj.PaymentFrequency[frequencyOrDefault(profile.PaymentFrequency)]; ok {
		premium *= factor
	}
	return premium
}

func (c *Calculator) occupationFactor(occupation string) float64 {
	if cat, ok := c.cfg.Adjustments.OccupationCategories[c.occupationCategory(occupation)]; ok {
		return cat.Factor
	}
	return 1.0
}

// occupationCategory matches free-text occupation against category lists,
// defaulting to the lowest-risk class.
func (c *Calculator) occupationCategory(occupation string) string {
	needle := strings.ToLower(strings.TrimSpace(occupation))
	if needle != "" {
		for name, cat := range c.cfg.Adjustments.OccupationCategories {
			for _, occ := range cat.Occupations {
				if needle == strings.ToLower(occ) {
					return name
				}
			}
		}
	}
	return "class_1"
}

func (c *Calculator) sumAssuredFactor(sumAssured float64) float64 {
	if factor, ok := c.cfg.Adjustments.SumAssuredBands[sumAssuredBand(sumAssured)]; ok {
		return factor
	}
	return 1.0
}

// modalPremiums derives the per-installment amount for each payment
// frequency. Non-yearly modes carry a loading factor, so twelve monthly
// installments cost more than one annual payment.
func (c *Calculator) modalPremiums(annual float64) map[string]float64 {
	out := make(map[string]float64, len(c.cfg.Adjustments.PaymentFrequency))
	for frequency, factor := range c.cfg.Adjustments.PaymentFrequency {
		installments, ok := modalInstallments[frequency]
		if !ok || installments <= 0 {
			installments = 1
		}
		out[frequency] = round2(annual * factor / installments)
	}
	return out
}

func (c *Calculator) applicableDiscounts(profile Profile, sumAssured float64) map[string]Discount {
	rules := c.cfg.Adjustments.Discounts
	out := map[string]Discount{}

	if profile.PurchaseChannel == "online" {
		if rule, ok := rules["online_purchase"]; ok {
			out["online_purchase"] = Discount{Name: rule.Description, Percentage: rule.Percentage}
		}
	}
	if rule, ok := rules["high_sum_assured"]; ok && sumAssured >= rule.MinimumSumAssured && rule.MinimumSumAssured > 0 {
		out["high_sum_assured"] = Discount{Name: rule.Description, Percentage: rule.Percentage}
	}
	if !profile.TobaccoUser {
		if rule, ok := rules["non_tobacco"]; ok {
			out["non_tobacco"] = Discount{Name: rule.Description, Percentage: rule.Percentage}
		}
	}
	if profile.ExistingCustomer {
		if rule, ok := rules["loyalty"]; ok {
			out["loyalty"] = Discount{Name: rule.Description, Percentage: rule.Percentage}
		}
	}
	return out
}

// isRecommended applies the variant recommendation rule over age, income and
// risk profile.
func (c *Calculator) isRecommended(variant string, profile Profile) bool {
	age := profile.Age
	income := profile.AnnualIncome
	if income == 0 {
		income = 500_000
	}
	switch {
	case age > 0 && age < 35 && income > 1_000_000:
		return variant == VariantLifeShieldPlus
	case age > 50 || income < 500_000:
		return variant == VariantLifeShield
	case profile.RiskProfile == "low" && income > 800_000:
		return variant == VariantLifeShieldROP
	default:
		return variant == VariantLifeShield
	}
}

// ValidateSumAssured checks requested cover against product limits and the
// income multiple cap.
func (c *Calculator) ValidateSumAssured(sumAssured, annualIncome float64) (bool, []string) {
	const (
		minSumAssured     = 500_000
		maxIncomeMultiple = 20
	)
	var messages []string
	valid := true
	if sumAssured < minSumAssured {
		valid = false
		messages = append(messages, fmt.Sprintf("minimum sum assured is ₹%.0f", float64(minSumAssured)))
	}
	if annualIncome > 0 && sumAssured > annualIncome*maxIncomeMultiple {
		valid = false
		messages = append(messages, fmt.Sprintf("sum assured cannot exceed %dx annual income", maxIncomeMultiple))
	}
	return valid, messages
}

// ageBand maps an age to its rate bucket. Ages outside the 18 to 65
// underwriting window have no band, which surfaces as a missing-rate error.
func ageBand(age int) string {
	switch {
	case age < 18 || age > 65:
		return ""
	case age <= 25:
		return "18-25"
	case age <= 30:
		return "26-30"
	case age <= 35:
		return "31-35"
	case age <= 40:
		return "36-40"
	case age <= 45:
		return "41-45"
	case age <= 50:
		return "46-50"
	case age <= 55:
		return "51-55"
	case age <= 60:
		return "56-60"
	default:
		return "61-65"
	}
}

var modalInstallments = map[string]float64{
	FrequencyYearly:     1,
	FrequencyHalfYearly: 2,
	FrequencyQuarterly:  4,
	FrequencyMonthly:    12,
}

func sumAssuredBand(sumAssured float64) string {
	switch {
	case sumAssured <= 2_500_000:
		return "up_to_25_lakh"
	case sumAssured <= 5_000_000:
		return "25_to_50_lakh"
	case sumAssured <= 10_000_000:
		return "50_lakh_to_1_crore"
	case sumAssured <= 20_000_000:
		return "1_to_2_crore"
	default:
		return "above_2_crore"
	}
}

func normalizeGender(gender string) string {
	g := strings.ToLower(strings.TrimSpace(gender))
	if g != "male" && g != "female" {
		return "male"
	}
	return g
}

func healthOrDefault(condition string) string {
	if condition == "" {
		return "good"
	}
	return strings.ToLower(condition)
}

func frequencyOrDefault(frequency string) string {
	if frequency == "" {
		return FrequencyYearly
	}
	return strings.ToLower(frequency)
}

// VariantFeatures lists the marketing feature set of a variant.
func VariantFeatures(variant string) []string {
	switch variant {
	case VariantLifeShield:
		return []string{
			"Death Benefit",
			"Terminal Illness Cover",
			"Waiver of Premium (ATPD/TI)",
			"Life Stage Upgrade Option",
		}
	case VariantLifeShieldPlus:
		return []string{
			"Death Benefit",
			"Terminal Illness Cover",
			"Accidental Death Benefit",
			"Waiver of Premium (ATPD/TI)",
			"Life Stage Upgrade Option",
		}
	case VariantLifeShieldROP:
		return []string{
			"Death Benefit",
			"Terminal Illness Cover",
			"Return of Premium at Maturity",
			"Waiver of Premium (ATPD/TI)",
		}
	default:
		return nil
	}
}

// VariantBenefits summarizes payout amounts for a variant at a given sum
// assured.
func VariantBenefits(variant string, sumAssured float64) map[string]any {
	benefits := map[string]any{
		"death_benefit": sumAssured,
	}
	if variant == VariantLifeShieldROP {
		benefits["terminal_illness"] = math.Min(sumAssured, 20_000_000)
		benefits["maturity_benefit"] = "Total Premiums Paid"
	} else {
		benefits["terminal_illness"] = sumAssured
	}
	if variant == VariantLifeShieldPlus {
		benefits["accidental_death"] = sumAssured
	}
	return benefits
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
