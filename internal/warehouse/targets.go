package warehouse

// DefaultTargets declares the warehouse tables the shipped recipes load
// into. Column names match the canonical names the cleaners produce.
func DefaultTargets() []TargetTable {
	return []TargetTable{
		{
			Name: "fut_daily_quotes",
			Columns: []string{
				"trade_date", "contract", "delivery_month",
				"open", "high", "low", "close",
				"settlement", "volume", "open_interest",
			},
			Key: []string{"trade_date", "contract", "delivery_month"},
		},
		{
			Name: "opt_daily_quotes",
			Columns: []string{
				"trade_date", "contract", "delivery_month", "strike", "option_side",
				"open", "high", "low", "close",
				"settlement", "volume", "open_interest",
			},
			Key: []string{"trade_date", "contract", "delivery_month", "strike", "option_side"},
		},
	}
}
