package types

import "github.com/shopspring/decimal"

// CostBreakdown is the derived cost summary shown before a deployment
// is confirmed. All fields are display-unit decimals; the breakdown is
// recomputed from the inputs on every use and never stored.
type CostBreakdown struct {
	ToolCosts        decimal.Decimal `json:"toolCosts"`
	PlatformFee      decimal.Decimal `json:"platformFee"`
	TotalCost        decimal.Decimal `json:"totalCost"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	FinalBalance     decimal.Decimal `json:"finalBalance"`
}

// ComputeCostBreakdown sums the given tool prices, applies the platform
// fee percentage and derives the balance remaining after payment. All
// arithmetic is decimal; float rounding never enters the computation.
func ComputeCostBreakdown(toolPrices []decimal.Decimal, feePercent, available decimal.Decimal) CostBreakdown {
	toolCosts := decimal.Zero
	for _, price := range toolPrices {
		toolCosts = toolCosts.Add(price)
	}

	fee := toolCosts.Mul(feePercent).Div(decimal.NewFromInt(100))
	total := toolCosts.Add(fee)

	return CostBreakdown{
		ToolCosts:        toolCosts,
		PlatformFee:      fee,
		TotalCost:        total,
		AvailableBalance: available,
		FinalBalance:     available.Sub(total),
	}
}

// Sufficient reports whether the available balance covers the total
// cost. Insufficiency gates the confirm action and is re-checked right
// before the funds move.
func (c CostBreakdown) Sufficient() bool {
	return !c.FinalBalance.IsNegative()
}
