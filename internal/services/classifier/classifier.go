package classifier

import (
	"strings"
	"unicode"

	"findash/internal/models"
)

// Single-letter codes matched as whole tokens (upper case)
var (
	IncomeTokens  = []string{"I"}
	ExpenseTokens = []string{"G"}
)

// Words matched as substrings (upper case)
var (
	IncomeKeywords  = []string{"INGRESO"}
	ExpenseKeywords = []string{"GASTO"}
)

// ClassifyTransactions sets Kind on each transaction from its movement type
func ClassifyTransactions(transactions []models.Transaction) []models.Transaction {
	for i := range transactions {
		transactions[i].Kind = Classify(transactions[i].MovementType)
	}
	return transactions
}

// Classify resolves a movement type label to Income, Expense or Unclassified.
// Labels like "Ingreso (I)" or "Gasto (G)" are accepted. A label matching
// both rules is Income.
func Classify(movementType string) models.Kind {
	upper := strings.ToUpper(strings.TrimSpace(movementType))
	if upper == "" {
		return models.Unclassified
	}
	tokens := tokenize(upper)

	if containsToken(tokens, IncomeTokens) || containsAny(upper, IncomeKeywords) {
		return models.Income
	}
	if containsToken(tokens, ExpenseTokens) || containsAny(upper, ExpenseKeywords) {
		return models.Expense
	}
	return models.Unclassified
}

// tokenize splits on every rune that is not a letter or digit
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsToken(tokens, wanted []string) bool {
	for _, t := range tokens {
		for _, w := range wanted {
			if t == w {
				return true
			}
		}
	}
	return false
}

// containsAny checks if text contains any of the keywords
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
