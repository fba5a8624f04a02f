package domain

import (
	"math/rand"
	"testing"
)

func TestNewDeckComposition(t *testing.T) {
	tests := []struct {
		name string
		keys []string
	}{
		{name: "FivePlayerSet", keys: []string{"CARROTS", "PUMPKINS", "PIES", "CAKES", "PIGS"}},
		{name: "ThreePlayerSet", keys: []string{"TOMATOES", "COOKIES", "COWS", "CORN"}},
		{name: "FullCatalog", keys: AllCategoryKeys()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deck := NewDeck(tt.keys)

			wantTotal := 13*len(tt.keys) + 24
			if len(deck) != wantTotal {
				t.Fatalf("deck size = %d, want %d", len(deck), wantTotal)
			}

			groupCards := 0
			for _, c := range deck {
				if c.IsGroup {
					groupCards++
				}
			}
			if groupCards != 24 {
				t.Errorf("group cards = %d, want 24", groupCards)
			}
			if categoryCards := len(deck) - groupCards; categoryCards != 13*len(tt.keys) {
				t.Errorf("category cards = %d, want %d", categoryCards, 13*len(tt.keys))
			}
		})
	}
}

func TestNewDeckGroupCardsPerGroup(t *testing.T) {
	deck := NewDeck([]string{"CARROTS"})

	perGroup := make(map[string]int)
	for _, c := range deck {
		if c.IsGroup {
			perGroup[c.Category]++
		}
	}
	for _, group := range Groups {
		if perGroup[group] != 8 {
			t.Errorf("group %s cards = %d, want 8", group, perGroup[group])
		}
	}
}

func cardKey(c *Card) [3]interface{} {
	return [3]interface{}{c.Category, c.Value, c.IsGroup}
}

func TestShuffleDeckIsPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	deck := NewDeck([]string{"CARROTS", "PIES", "PIGS", "COWS"})

	before := make([]*Card, len(deck))
	copy(before, deck)

	shuffled := ShuffleDeck(rng, deck)

	if len(shuffled) != len(deck) {
		t.Fatalf("shuffled size = %d, want %d", len(shuffled), len(deck))
	}
	for i, c := range deck {
		if c != before[i] {
			t.Fatalf("ShuffleDeck mutated its argument at index %d", i)
		}
	}

	counts := make(map[[3]interface{}]int)
	for _, c := range deck {
		counts[cardKey(c)]++
	}
	for _, c := range shuffled {
		counts[cardKey(c)]--
	}
	for key, n := range counts {
		if n != 0 {
			t.Errorf("card multiset mismatch for %v: %d", key, n)
		}
	}
}

func TestDrawExhaustsWithoutRepeats(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	s := &Session{Deck: ShuffleDeck(rng, NewDeck([]string{"CARROTS", "PIES"}))}

	total := len(s.Deck)
	seen := make(map[*Card]bool)
	for i := 0; i < total; i++ {
		card, ok := s.Draw()
		if !ok {
			t.Fatalf("draw %d failed with %d cards left", i, total-i)
		}
		if seen[card] {
			t.Fatalf("card drawn twice: %s %d", card.Category, card.Value)
		}
		seen[card] = true
	}

	if _, ok := s.Draw(); ok {
		t.Fatal("draw from empty deck should report ok=false")
	}
}

func TestEffectiveCategory(t *testing.T) {
	plain := &Card{Category: "Carrots", Value: 5}
	if name, ok := plain.EffectiveCategory(); !ok || name != "Carrots" {
		t.Errorf("plain card effective = %q/%t, want Carrots/true", name, ok)
	}

	group := &Card{Category: GroupProduce, Value: 4, IsGroup: true}
	if _, ok := group.EffectiveCategory(); ok {
		t.Error("unbound group card must have no effective category")
	}

	group.Selected = "Pumpkins"
	if name, ok := group.EffectiveCategory(); !ok || name != "Pumpkins" {
		t.Errorf("bound group card effective = %q/%t, want Pumpkins/true", name, ok)
	}
}
