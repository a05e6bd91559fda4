// Package billing owns the purchase flow: translating plans to prices,
// starting hosted checkout sessions, and confirming completed payments
// into durable subscription records.
package billing

import (
	"fmt"

	"careervision/internal/config"
	"careervision/internal/types"
)

// Catalog is the single translation point between plans and provider price
// IDs. Nothing else in the codebase maps one to the other.
type Catalog struct {
	monthlyPriceID string
	yearlyPriceID  string
}

// NewCatalog builds the catalog from billing configuration.
func NewCatalog(cfg config.BillingConfig) *Catalog {
	return &Catalog{
		monthlyPriceID: cfg.PriceIDMonthly,
		yearlyPriceID:  cfg.PriceIDYearly,
	}
}

// PriceForPlan returns the provider price ID for a paid plan.
func (c *Catalog) PriceForPlan(plan types.Plan) (string, error) {
	switch plan {
	case types.PlanMonthly:
		return c.monthlyPriceID, nil
	case types.PlanYearly:
		return c.yearlyPriceID, nil
	default:
		return "", types.NewAppError(
			types.ErrCodeValidationInvalidPlan,
			fmt.Sprintf("plan %q cannot be purchased", plan),
			nil,
		)
	}
}

// PlanForPrice returns the plan a provider price ID sells, or PlanNone when
// the price is not in the catalog.
func (c *Catalog) PlanForPrice(priceID string) types.Plan {
	switch priceID {
	case c.monthlyPriceID:
		return types.PlanMonthly
	case c.yearlyPriceID:
		return types.PlanYearly
	default:
		return types.PlanNone
	}
}
