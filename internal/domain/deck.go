package domain

import "math/rand"

// CardValues is the value multiset dealt per active category.
var CardValues = []int{2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 5, 5, 6}

// GroupCardValues is the value multiset dealt per group, independent of how
// many categories in the group are active.
var GroupCardValues = []int{2, 2, 3, 3, 4, 4, 5, 5}

// NewDeck builds an unshuffled deck for the given active category keys:
// one card per CardValues entry per category, then one group card per
// GroupCardValues entry per group. Callers must shuffle before dealing.
func NewDeck(activeCategoryKeys []string) []*Card {
	deck := make([]*Card, 0, len(activeCategoryKeys)*len(CardValues)+len(Groups)*len(GroupCardValues))

	for _, key := range activeCategoryKeys {
		cat, ok := Categories[key]
		if !ok {
			continue
		}
		for _, value := range CardValues {
			deck = append(deck, &Card{Category: cat.Name, Value: value})
		}
	}

	for _, group := range Groups {
		for _, value := range GroupCardValues {
			deck = append(deck, &Card{Category: group, Value: value, IsGroup: true})
		}
	}

	return deck
}

// ShuffleDeck returns a uniformly shuffled copy of the given deck without
// mutating its argument.
func ShuffleDeck(rng *rand.Rand, deck []*Card) []*Card {
	out := make([]*Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
