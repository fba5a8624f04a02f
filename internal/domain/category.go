package domain

// Group names for the three fixed card groups.
const (
	GroupProduce   = "Produce"
	GroupBaking    = "Baking"
	GroupLivestock = "Livestock"
)

// Groups lists every group in catalog order.
var Groups = []string{GroupProduce, GroupBaking, GroupLivestock}

// Category is immutable reference data: a scoring category and the group it belongs to.
type Category struct {
	Name  string
	Group string
}

// categoryKeys preserves catalog order for deterministic deck construction.
var categoryKeys = []string{
	"CARROTS", "PUMPKINS", "TOMATOES", "CORN",
	"PIES", "CAKES", "COOKIES", "BREADS",
	"PIGS", "COWS", "CHICKENS",
}

// Categories is the full catalog, keyed by category key.
var Categories = map[string]Category{
	"CARROTS":  {Name: "Carrots", Group: GroupProduce},
	"PUMPKINS": {Name: "Pumpkins", Group: GroupProduce},
	"TOMATOES": {Name: "Tomatoes", Group: GroupProduce},
	"CORN":     {Name: "Corn", Group: GroupProduce},
	"PIES":     {Name: "Pies", Group: GroupBaking},
	"CAKES":    {Name: "Cakes", Group: GroupBaking},
	"COOKIES":  {Name: "Cookies", Group: GroupBaking},
	"BREADS":   {Name: "Breads", Group: GroupBaking},
	"PIGS":     {Name: "Pigs", Group: GroupLivestock},
	"COWS":     {Name: "Cows", Group: GroupLivestock},
	"CHICKENS": {Name: "Chickens", Group: GroupLivestock},
}

// AllCategoryKeys returns the catalog keys in stable order.
func AllCategoryKeys() []string {
	keys := make([]string, len(categoryKeys))
	copy(keys, categoryKeys)
	return keys
}

// CategoryByName looks a category up by its display name.
func CategoryByName(name string) (Category, bool) {
	for _, key := range categoryKeys {
		if Categories[key].Name == name {
			return Categories[key], true
		}
	}
	return Category{}, false
}

// CategoryKeyByName returns the catalog key for a category display name.
func CategoryKeyByName(name string) (string, bool) {
	for _, key := range categoryKeys {
		if Categories[key].Name == name {
			return key, true
		}
	}
	return "", false
}

// CategoriesInGroup returns every catalog category belonging to the group.
func CategoriesInGroup(group string) []Category {
	var out []Category
	for _, key := range categoryKeys {
		if Categories[key].Group == group {
			out = append(out, Categories[key])
		}
	}
	return out
}

// ActiveCategoriesInGroup filters an active set down to one group, preserving order.
func ActiveCategoriesInGroup(active []Category, group string) []Category {
	var out []Category
	for _, cat := range active {
		if cat.Group == group {
			out = append(out, cat)
		}
	}
	return out
}
