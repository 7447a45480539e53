package core

// SummaryStatistics is the dashboard summary of one transaction/tag snapshot.
type SummaryStatistics struct {
	TotalTransactions int
	TotalTags         int
	Income            Money
	Expense           Money
	// Anomalies lists transactions whose amount could not be parsed and
	// were counted as zero.
	Anomalies []AmountAnomaly
}

// AmountAnomaly records a transaction with a malformed amount.
type AmountAnomaly struct {
	TransactionID string
	Raw           string
	Err           error
}

// Balance is income minus expense.
func (s SummaryStatistics) Balance() Money {
	return s.Income.Sub(s.Expense)
}

// Summarize aggregates a transaction snapshot. tagCount is the user's tag
// total as reported by the API, not the number of tags referenced by
// transactions. A malformed amount counts as zero and is reported in
// Anomalies.
func Summarize(transactions []Transaction, tagCount int) SummaryStatistics {
	stats := SummaryStatistics{
		TotalTransactions: len(transactions),
		TotalTags:         tagCount,
	}
	for _, t := range transactions {
		amount, err := t.Money()
		if err != nil {
			stats.Anomalies = append(stats.Anomalies, AmountAnomaly{TransactionID: t.ID, Raw: t.Amount, Err: err})
			continue
		}
		switch t.Kind {
		case Income:
			stats.Income = stats.Income.Add(amount)
		case Expense:
			stats.Expense = stats.Expense.Add(amount)
		}
	}
	return stats
}
