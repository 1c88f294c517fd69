package models

// Preferences holds the user's saved dashboard defaults
type Preferences struct {
	// Filter applied when a request carries no month/category parameters.
	// Empty means everything is selected.
	DefaultMonths     []string `json:"default_months"`
	DefaultCategories []string `json:"default_categories"`

	// Currency symbol used in plain-text output
	Currency string `json:"currency"`
}

// DefaultPreferences returns preferences with every month and category selected
func DefaultPreferences() *Preferences {
	return &Preferences{
		Currency: "€",
	}
}
