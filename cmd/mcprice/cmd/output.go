package cmd

import (
	"io"

	"github.com/shopspring/decimal"
	"github.com/xhhuango/json"

	"github.com/bcdannyboy/mcprice/pricing"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type report struct {
	ID                 string                     `json:"id,omitempty"`
	RunID              string                     `json:"run_id"`
	Price              decimal.Decimal            `json:"price"`
	StandardError      decimal.Decimal            `json:"standard_error"`
	Confidence         float64                    `json:"confidence"`
	ConfidenceInterval [2]decimal.Decimal         `json:"confidence_interval"`
	Paths              int                        `json:"paths"`
	ExpectedLife       decimal.Decimal            `json:"expected_life"`
	Process            string                     `json:"process"`
	Greeks             map[string]decimal.Decimal `json:"greeks,omitempty"`
	ElapsedMS          int64                      `json:"elapsed_ms"`
}

func round(x float64, places int) decimal.Decimal {
	return decimal.NewFromFloat(x).Round(int32(places))
}

func newReport(id string, res *pricing.Result, places int) report {
	r := report{
		ID:            id,
		RunID:         res.RunID,
		Price:         round(res.Price, places),
		StandardError: round(res.StandardError, places),
		Confidence:    res.Confidence,
		ConfidenceInterval: [2]decimal.Decimal{
			round(res.ConfidenceInterval.Low, places),
			round(res.ConfidenceInterval.High, places),
		},
		Paths:        res.Paths,
		ExpectedLife: round(res.ExpectedLife, places),
		Process:      res.Process,
		ElapsedMS:    res.Elapsed.Milliseconds(),
	}
	if len(res.Greeks) > 0 {
		r.Greeks = make(map[string]decimal.Decimal, len(res.Greeks))
		for name, v := range res.Greeks {
			r.Greeks[name] = round(v, places)
		}
	}
	return r
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
