package cost

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownModel is returned when a report names a model with no price.
var ErrUnknownModel = errors.New("no price configured for model")

// Price is the dollar cost per million tokens.
type Price struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// PriceTable maps model version to price.
type PriceTable map[string]Price

// DefaultPrices returns the published per-million-token prices.
func DefaultPrices() PriceTable {
	return PriceTable{
		"claude-3-5-sonnet-20240620": {Input: 3, Output: 15},
		"claude-3-5-sonnet-20241022": {Input: 3, Output: 15},
		"claude-3-7-sonnet-20250219": {Input: 3, Output: 15},
	}
}

// Lookup returns the price for model.
func (p PriceTable) Lookup(model string) (Price, error) {
	price, ok := p[model]
	if !ok {
		return Price{}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return price, nil
}

// Models lists the priced models in lexical order.
func (p PriceTable) Models() []string {
	out := make([]string, 0, len(p))
	for m := range p {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Cost converts a token count to dollars: tokens / 1,000,000 * pricePerMillion.
func Cost(tokens int64, pricePerMillion float64) float64 {
	return float64(tokens) / 1_000_000 * pricePerMillion
}

// Dollars is an input/output dollar pair.
type Dollars struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
	Total  float64 `json:"total"`
}

func (d Dollars) add(o Dollars) Dollars {
	return Dollars{Input: d.Input + o.Input, Output: d.Output + o.Output, Total: d.Total + o.Total}
}

// At applies a price to a token pair. Input and output are priced independently.
func (t Tokens) At(p Price) Dollars {
	in := Cost(t.Input, p.Input)
	out := Cost(t.Output, p.Output)
	return Dollars{Input: in, Output: out, Total: in + out}
}

// DailyCost holds one day's dollar totals split by model.
type DailyCost struct {
	Date    string             `json:"date"`
	ByModel map[string]Dollars `json:"by_model"`
	Total   Dollars            `json:"total"`
}

// CostReport mirrors Report in dollars.
type CostReport struct {
	Days        []DailyCost        `json:"days"`
	Models      []string           `json:"models"`
	ModelTotals map[string]Dollars `json:"model_totals"`
	Total       Dollars            `json:"total"`
}

// Costs prices every bucket of the report. Any model missing from prices
// fails the whole conversion.
func (r Report) Costs(prices PriceTable) (CostReport, error) {
	cr := CostReport{
		Days:        make([]DailyCost, 0, len(r.Days)),
		Models:      append([]string{}, r.Models...),
		ModelTotals: make(map[string]Dollars, len(r.ModelTotals)),
	}

	for _, model := range r.Models {
		price, err := prices.Lookup(model)
		if err != nil {
			return CostReport{}, err
		}
		d := r.ModelTotals[model].At(price)
		cr.ModelTotals[model] = d
		cr.Total = cr.Total.add(d)
	}

	for _, day := range r.Days {
		dc := DailyCost{Date: day.Date, ByModel: make(map[string]Dollars, len(day.ByModel))}
		for model, tokens := range day.ByModel {
			d := tokens.At(prices[model])
			dc.ByModel[model] = d
			dc.Total = dc.Total.add(d)
		}
		cr.Days = append(cr.Days, dc)
	}

	return cr, nil
}
