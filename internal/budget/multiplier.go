package budget

import (
	"github.com/shopspring/decimal"

	"github.com/armatrix/copilot-sdk-go/rpc"
)

// Multipliers maps model IDs to the number of premium requests one prompt
// costs on that model.
type Multipliers map[string]decimal.Decimal

var one = decimal.NewFromInt(1)

// MultipliersFromModels collects the billing multipliers reported by
// models.list. Models without billing information are left out.
func MultipliersFromModels(models []rpc.Model) Multipliers {
	m := make(Multipliers, len(models))
	for _, model := range models {
		if model.Billing != nil {
			m[model.ID] = model.Billing.Multiplier
		}
	}
	return m
}

// For returns the multiplier of model. Unknown models count as one request.
func (m Multipliers) For(model string) decimal.Decimal {
	if v, ok := m[model]; ok {
		return v
	}
	return one
}
