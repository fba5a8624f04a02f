package domain

import "fmt"

// Card is a single fair entry card. Category cards score toward a fixed
// category; group cards score toward whichever category in their group the
// owner binds via Selected. A group card with no binding has no effective
// category and must never be counted by scoring.
type Card struct {
	Category string // category name, or group name when IsGroup
	Value    int
	IsGroup  bool
	Selected string // bound category for group cards; empty until assigned

	// Stamps recording when the card became visible or was committed
	// face-down. Fairs and rounds are 1-based; setup commitments are
	// stamped fair 0 so they resolve during the first fair.
	PlayedFair    int
	PlayedRound   int
	FaceDownFair  int
	FaceDownRound int
}

// EffectiveCategory resolves the category this card scores toward.
// ok is false for a group card that has not been bound yet; callers
// filtering by category must skip such cards.
func (c *Card) EffectiveCategory() (string, bool) {
	if !c.IsGroup {
		return c.Category, true
	}
	if c.Selected != "" {
		return c.Selected, true
	}
	return "", false
}

// DisplayName renders the card for logs and summaries.
func (c *Card) DisplayName() string {
	if c.IsGroup {
		return fmt.Sprintf("%s (Group Card)", c.Category)
	}
	return c.Category
}
