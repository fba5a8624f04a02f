package domain

// Ribbon is an immutable award earned at fair scoring.
type Ribbon struct {
	Category string
	Type     RibbonType
	VP       int
}

// Player holds the per-participant aggregate: hand, face-down queue, board
// history, and the ribbon/VP ledger. It is exclusively owned and mutated by
// the orchestrator on behalf of one seat.
type Player struct {
	ID   int
	Name string

	Hand          []*Card
	FaceDownCards []*Card
	PlayedCards   []*Card
	Ribbons       []Ribbon
	TotalVP       int

	CurrentFair  int
	CurrentRound int
}

// NewPlayer creates a player for one seat.
func NewPlayer(id int, name string) *Player {
	return &Player{ID: id, Name: name, CurrentFair: 1, CurrentRound: 1}
}

// AddToHand appends a drawn card to the hand.
func (p *Player) AddToHand(card *Card) {
	p.Hand = append(p.Hand, card)
}

// RemoveFromHand removes a card by identity and reports whether it was found.
// Identity matters: hands may hold several cards with equal category/value.
func (p *Player) RemoveFromHand(card *Card) bool {
	for i, c := range p.Hand {
		if c == card {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// reveal stamps a card as visible this fair/round and puts it on the board.
func (p *Player) reveal(card *Card) {
	card.PlayedFair = p.CurrentFair
	card.PlayedRound = p.CurrentRound
	p.PlayedCards = append(p.PlayedCards, card)
}

// PlayCardFaceUp moves a card from the hand to the board, stamping it with
// the current fair/round. Returns false and leaves state unchanged if the
// card is not in the hand.
func (p *Player) PlayCardFaceUp(card *Card) bool {
	if !p.RemoveFromHand(card) {
		return false
	}
	p.reveal(card)
	return true
}

// PlayCardFaceDown moves a card from the hand to the face-down queue,
// stamping the commitment fair/round. Returns false if the card is not in
// the hand.
func (p *Player) PlayCardFaceDown(card *Card) bool {
	if !p.RemoveFromHand(card) {
		return false
	}
	p.EnqueueFaceDown(card, p.CurrentFair, p.CurrentRound)
	return true
}

// EnqueueFaceDown places a card directly in the face-down queue with an
// explicit commitment stamp. Used for setup deals, which never pass through
// the hand.
func (p *Player) EnqueueFaceDown(card *Card, fair, round int) {
	card.FaceDownFair = fair
	card.FaceDownRound = round
	p.FaceDownCards = append(p.FaceDownCards, card)
}

// FlipFaceDownCards reveals every queued face-down card at once and returns
// the flipped cards. The orchestrator normally narrows reveals to the cards
// scheduled for the current round via FlipScheduled.
func (p *Player) FlipFaceDownCards() []*Card {
	flipped := p.FaceDownCards
	p.FaceDownCards = nil
	for _, card := range flipped {
		p.reveal(card)
	}
	return flipped
}

// ScheduledReveals returns the face-down cards committed one fair earlier in
// the same round, i.e. the cards due to resolve at (fair, round).
func (p *Player) ScheduledReveals(fair, round int) []*Card {
	var due []*Card
	for _, card := range p.FaceDownCards {
		if card.FaceDownFair == fair-1 && card.FaceDownRound == round {
			due = append(due, card)
		}
	}
	return due
}

// FlipScheduled reveals only the cards due at (fair, round), leaving later
// commitments queued. Returns the flipped cards.
func (p *Player) FlipScheduled(fair, round int) []*Card {
	var flipped []*Card
	remaining := p.FaceDownCards[:0]
	for _, card := range p.FaceDownCards {
		if card.FaceDownFair == fair-1 && card.FaceDownRound == round {
			flipped = append(flipped, card)
			continue
		}
		remaining = append(remaining, card)
	}
	p.FaceDownCards = remaining
	for _, card := range flipped {
		p.reveal(card)
	}
	return flipped
}

// GetCategoryTotal sums the values of board cards whose effective category
// matches. Unbound group cards never count.
func (p *Player) GetCategoryTotal(categoryName string) int {
	total := 0
	for _, card := range p.PlayedCards {
		if name, ok := card.EffectiveCategory(); ok && name == categoryName {
			total += card.Value
		}
	}
	return total
}

// AddRibbon appends a ribbon and credits its VP. Ribbons are never removed
// and TotalVP never decreases.
func (p *Player) AddRibbon(category string, ribbonType RibbonType, vp int) {
	p.Ribbons = append(p.Ribbons, Ribbon{Category: category, Type: ribbonType, VP: vp})
	p.TotalVP += vp
}

// GetGroupVP sums ribbon VP for ribbons whose category belongs to the group
// per the current active set. Ribbons for categories retired from the active
// set are excluded: group membership is only resolved against live
// categories.
func (p *Player) GetGroupVP(group string, active []Category) int {
	total := 0
	for _, ribbon := range p.Ribbons {
		for _, cat := range active {
			if cat.Name == ribbon.Category && cat.Group == group {
				total += ribbon.VP
				break
			}
		}
	}
	return total
}

// ClearForNextFair empties the hand and board but preserves ribbons and the
// face-down queue; commitments made in round 3 resolve in the next fair.
func (p *Player) ClearForNextFair() {
	p.Hand = nil
	p.PlayedCards = nil
}
