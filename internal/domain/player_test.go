package domain

import "testing"

func TestRemoveFromHandUsesIdentity(t *testing.T) {
	p := NewPlayer(0, "Alice")
	first := &Card{Category: "Carrots", Value: 3}
	twin := &Card{Category: "Carrots", Value: 3}
	p.AddToHand(first)
	p.AddToHand(twin)

	if !p.RemoveFromHand(twin) {
		t.Fatal("expected twin to be removed")
	}
	if len(p.Hand) != 1 || p.Hand[0] != first {
		t.Fatalf("expected first copy to remain, hand = %v", p.Hand)
	}
	if p.RemoveFromHand(&Card{Category: "Carrots", Value: 3}) {
		t.Fatal("equal-by-value card must not match by identity")
	}
}

func TestPlayCardFaceUpStampsAndMoves(t *testing.T) {
	p := NewPlayer(0, "Alice")
	p.CurrentFair = 2
	p.CurrentRound = 3
	card := &Card{Category: "Pies", Value: 4}
	p.AddToHand(card)

	if !p.PlayCardFaceUp(card) {
		t.Fatal("expected play to succeed")
	}
	if len(p.Hand) != 0 || len(p.PlayedCards) != 1 {
		t.Fatalf("hand=%d played=%d, want 0/1", len(p.Hand), len(p.PlayedCards))
	}
	if card.PlayedFair != 2 || card.PlayedRound != 3 {
		t.Errorf("stamp = fair %d round %d, want 2/3", card.PlayedFair, card.PlayedRound)
	}

	if p.PlayCardFaceUp(&Card{Category: "Pies", Value: 4}) {
		t.Fatal("card not in hand must be a no-op")
	}
}

func TestPlayCardFaceDownStampsCommitment(t *testing.T) {
	p := NewPlayer(0, "Bob")
	p.CurrentFair = 1
	p.CurrentRound = 2
	card := &Card{Category: "Cows", Value: 5}
	p.AddToHand(card)

	if !p.PlayCardFaceDown(card) {
		t.Fatal("expected face-down play to succeed")
	}
	if len(p.FaceDownCards) != 1 || len(p.PlayedCards) != 0 {
		t.Fatalf("faceDown=%d played=%d, want 1/0", len(p.FaceDownCards), len(p.PlayedCards))
	}
	if card.FaceDownFair != 1 || card.FaceDownRound != 2 {
		t.Errorf("commitment stamp = fair %d round %d, want 1/2", card.FaceDownFair, card.FaceDownRound)
	}
}

func TestFlipScheduledOnlyRevealsDueCards(t *testing.T) {
	p := NewPlayer(0, "Carol")
	p.CurrentFair = 2
	p.CurrentRound = 1

	due := &Card{Category: "Pigs", Value: 2}
	later := &Card{Category: "Corn", Value: 3}
	p.EnqueueFaceDown(due, 1, 1)
	p.EnqueueFaceDown(later, 1, 2)

	flipped := p.FlipScheduled(2, 1)
	if len(flipped) != 1 || flipped[0] != due {
		t.Fatalf("flipped = %v, want only the due card", flipped)
	}
	if len(p.FaceDownCards) != 1 || p.FaceDownCards[0] != later {
		t.Fatalf("remaining queue = %v, want only the later card", p.FaceDownCards)
	}
	if due.PlayedFair != 2 || due.PlayedRound != 1 {
		t.Errorf("reveal stamp = fair %d round %d, want 2/1", due.PlayedFair, due.PlayedRound)
	}
}

func TestFlipFaceDownCardsRevealsEverything(t *testing.T) {
	p := NewPlayer(0, "Dave")
	p.EnqueueFaceDown(&Card{Category: "Pigs", Value: 2}, 0, 1)
	p.EnqueueFaceDown(&Card{Category: "Corn", Value: 3}, 0, 2)

	flipped := p.FlipFaceDownCards()
	if len(flipped) != 2 || len(p.FaceDownCards) != 0 || len(p.PlayedCards) != 2 {
		t.Fatalf("flipped=%d queued=%d played=%d, want 2/0/2", len(flipped), len(p.FaceDownCards), len(p.PlayedCards))
	}
}

func TestGetCategoryTotalUsesEffectiveCategory(t *testing.T) {
	p := NewPlayer(0, "Alice")
	p.PlayedCards = []*Card{
		{Category: "Carrots", Value: 5},
		{Category: GroupProduce, Value: 4, IsGroup: true, Selected: "Carrots"},
		{Category: GroupProduce, Value: 3, IsGroup: true}, // unbound, never counts
		{Category: "Pumpkins", Value: 2},
	}

	if got := p.GetCategoryTotal("Carrots"); got != 9 {
		t.Errorf("Carrots total = %d, want 9", got)
	}
	if got := p.GetCategoryTotal("Pumpkins"); got != 2 {
		t.Errorf("Pumpkins total = %d, want 2", got)
	}
	if got := p.GetCategoryTotal(GroupProduce); got != 0 {
		t.Errorf("group name must never accumulate a total, got %d", got)
	}
}

func TestGetGroupVPExcludesRetiredCategories(t *testing.T) {
	p := NewPlayer(0, "Bob")
	p.AddRibbon("Carrots", RibbonGold, 2)
	p.AddRibbon("Pumpkins", RibbonSilver, 1)
	p.AddRibbon("Pies", RibbonGold, 3)

	active := []Category{
		{Name: "Carrots", Group: GroupProduce},
		{Name: "Pies", Group: GroupBaking},
	}

	// Pumpkins has been retired from the active set, so its ribbon does
	// not count toward Produce.
	if got := p.GetGroupVP(GroupProduce, active); got != 2 {
		t.Errorf("Produce VP = %d, want 2", got)
	}
	if got := p.GetGroupVP(GroupBaking, active); got != 3 {
		t.Errorf("Baking VP = %d, want 3", got)
	}
}

func TestClearForNextFairPreservesCommitments(t *testing.T) {
	p := NewPlayer(0, "Carol")
	p.AddToHand(&Card{Category: "Corn", Value: 2})
	p.PlayedCards = []*Card{{Category: "Corn", Value: 4}}
	p.EnqueueFaceDown(&Card{Category: "Cows", Value: 5}, 1, 3)
	p.AddRibbon("Corn", RibbonBronze, 1)

	p.ClearForNextFair()

	if len(p.Hand) != 0 || len(p.PlayedCards) != 0 {
		t.Errorf("hand=%d played=%d after clear, want 0/0", len(p.Hand), len(p.PlayedCards))
	}
	if len(p.FaceDownCards) != 1 {
		t.Errorf("faceDown=%d after clear, want 1", len(p.FaceDownCards))
	}
	if len(p.Ribbons) != 1 || p.TotalVP != 1 {
		t.Errorf("ribbons=%d totalVP=%d after clear, want 1/1", len(p.Ribbons), p.TotalVP)
	}
}
