package payments

// Package is a purchasable credit bundle.
type Package struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Credits     int64  `json:"credits"`
	PriceCents  int64  `json:"priceCents"`
	Popular     bool   `json:"popular,omitempty"`
}

var creditPackages = []Package{
	{
		ID:          "credits_5",
		Name:        "5 Interview Credits",
		Description: "Perfect for getting started with mock interviews",
		Credits:     5,
		PriceCents:  1999,
	},
	{
		ID:          "credits_10",
		Name:        "10 Interview Credits",
		Description: "Most popular choice for serious applicants",
		Credits:     10,
		PriceCents:  3499,
		Popular:     true,
	},
	{
		ID:          "credits_20",
		Name:        "20 Interview Credits",
		Description: "Best value for comprehensive interview preparation",
		Credits:     20,
		PriceCents:  5999,
	},
}

// Packages returns the purchasable credit bundles.
func Packages() []Package {
	packages := make([]Package, len(creditPackages))
	copy(packages, creditPackages)
	return packages
}

// PackageByID looks up a bundle by id.
func PackageByID(id string) (Package, bool) {
	for _, candidate := range creditPackages {
		if candidate.ID == id {
			return candidate, true
		}
	}
	return Package{}, false
}
