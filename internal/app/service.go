package app

import (
	"errors"
	"math/rand"
	"time"

	"warfaire/internal/domain"
)

// Service contains the War Faire round/fair use-cases operating on a
// domain session. All randomness flows through its rng so tests can seed it.
type Service struct {
	rng *rand.Rand
}

// NewService constructs a Service with provided rng or a time-seeded default.
func NewService(rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{rng: rng}
}

var (
	ErrTooFewPlayers         = errors.New("not enough players to start")
	ErrWrongPhase            = errors.New("action not valid in current phase")
	ErrUnknownPlayer         = errors.New("player not found")
	ErrNoPendingChoice       = errors.New("no group card awaiting a category choice")
	ErrInvalidCategory       = errors.New("category not valid for this group card")
	ErrFaceDownForbidden     = errors.New("face-down plays are not allowed in the final fair")
	ErrMissingGroupSelection = errors.New("group card played without a category selection")
)

// CardRef identifies a card in a submission by its public attributes.
// Matching against the hand happens by these attributes, never by index,
// so stale client state degrades to a skipped play instead of a wrong one.
type CardRef struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
	IsGroup  bool   `json:"is_group"`
}

// GroupSelections carries the category bindings for group cards in a
// submission, one per slot.
type GroupSelections struct {
	FaceUp   string `json:"face_up,omitempty"`
	FaceDown string `json:"face_down,omitempty"`
}

// PlayRequest is one seat's submission for a round: one face-up card and,
// outside the final fair, one face-down commitment.
type PlayRequest struct {
	FaceUp          CardRef         `json:"face_up"`
	FaceDown        *CardRef        `json:"face_down,omitempty"`
	GroupSelections GroupSelections `json:"group_selections"`
}

// GroupChoice describes a pending category decision for a group card that
// is scheduled to flip this round.
type GroupChoice struct {
	PlayerIndex int
	Group       string
	Value       int
	Options     []string
}

// StartMatch creates a session for the named players (seat order preserved)
// and performs first-fair setup: activate playerCount+1 random categories,
// build and shuffle the deck, and deal each player three face-down cards
// stamped to resolve one per round across the first fair. Dealt group cards
// are bound to a uniformly random valid category immediately; the blind
// commitment has to resolve to something.
func (s *Service) StartMatch(id string, playerNames []string) (*domain.Session, []Event, error) {
	if len(playerNames) < MinPlayersToStartGame {
		return nil, nil, ErrTooFewPlayers
	}

	sess := domain.NewSession(id, playerNames)

	keys := domain.AllCategoryKeys()
	s.rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	numActive := len(playerNames) + 1
	if numActive > len(keys) {
		numActive = len(keys)
	}
	activeKeys := keys[:numActive]
	sess.InactiveCategories = append([]string(nil), keys[numActive:]...)

	for _, key := range activeKeys {
		cat := domain.Categories[key]
		sess.ActiveCategories = append(sess.ActiveCategories, cat)
		sess.Prestige[cat.Name] = 0
	}

	sess.Deck = domain.ShuffleDeck(s.rng, domain.NewDeck(activeKeys))
	sess.Fair = 1
	sess.Round = 0
	sess.Logf("fair 1 setup: %d active categories, %d cards", len(sess.ActiveCategories), len(sess.Deck))

	for _, p := range sess.Players {
		for i := 0; i < domain.SetupFaceDownCards; i++ {
			card, ok := sess.Draw()
			if !ok {
				break
			}
			if card.IsGroup {
				s.autoBindGroupCard(sess, card)
			}
			// Setup commitments are stamped fair 0 so they resolve one
			// per round across rounds 1..3 of the first fair.
			p.EnqueueFaceDown(card, 0, i+1)
		}
	}

	events := []Event{{
		Kind: EventMatchStarted,
		Payload: MatchStartedPayload{
			SessionID:        sess.ID,
			ActiveCategories: sess.ActiveCategories,
			Prestige:         sess.Prestige,
		},
	}}
	return sess, events, nil
}

// autoBindGroupCard assigns a uniformly random valid category. A group with
// no active categories leaves the card unbound; it can never score.
func (s *Service) autoBindGroupCard(sess *domain.Session, card *domain.Card) {
	options := domain.ActiveCategoriesInGroup(sess.ActiveCategories, card.Category)
	if len(options) == 0 {
		return
	}
	card.Selected = options[s.rng.Intn(len(options))].Name
}

// groupOptions lists the valid category names for a group card.
func (s *Service) groupOptions(sess *domain.Session, card *domain.Card) []string {
	cats := domain.ActiveCategoriesInGroup(sess.ActiveCategories, card.Category)
	names := make([]string, 0, len(cats))
	for _, cat := range cats {
		names = append(names, cat.Name)
	}
	return names
}

// BeginRound advances the session into the next round. Scheduled face-down
// reveals that are unbound group cards are auto-assigned for auto-played
// seats; human seats produce pending GroupChoices and put the session in the
// group-selection phase. When nothing is pending the round proceeds
// immediately (cards flip, players draw).
//
// auto[i] reports whether player i is played by the server (AI seat or
// abandoned human).
func (s *Service) BeginRound(sess *domain.Session, auto []bool) ([]Event, []GroupChoice, error) {
	if sess.Phase == domain.PhaseRound || sess.Phase == domain.PhaseGroupSelection || sess.Phase == domain.PhaseGameEnd {
		return nil, nil, ErrWrongPhase
	}

	sess.Round++
	for _, p := range sess.Players {
		p.CurrentFair = sess.Fair
		p.CurrentRound = sess.Round
	}

	var pending []GroupChoice
	for i, p := range sess.Players {
		for _, card := range p.ScheduledReveals(sess.Fair, sess.Round) {
			if !card.IsGroup || card.Selected != "" {
				continue
			}
			options := s.groupOptions(sess, card)
			if len(options) == 0 {
				continue
			}
			if i < len(auto) && auto[i] {
				card.Selected = options[s.rng.Intn(len(options))]
				continue
			}
			pending = append(pending, GroupChoice{
				PlayerIndex: i,
				Group:       card.Category,
				Value:       card.Value,
				Options:     options,
			})
		}
	}

	if len(pending) > 0 {
		sess.Phase = domain.PhaseGroupSelection
		events := make([]Event, 0, len(pending))
		for _, choice := range pending {
			events = append(events, Event{
				Kind: EventGroupChoiceRequired,
				Payload: GroupChoiceRequiredPayload{
					PlayerIndex: choice.PlayerIndex,
					Group:       choice.Group,
					Value:       choice.Value,
					Options:     choice.Options,
				},
				Recipients: []int{choice.PlayerIndex},
			})
		}
		return events, pending, nil
	}

	return s.FlipAndDeal(sess), nil, nil
}

// PendingGroupChoices lists the group cards scheduled to flip this round
// that still lack a category binding.
func (s *Service) PendingGroupChoices(sess *domain.Session) []GroupChoice {
	var pending []GroupChoice
	for i, p := range sess.Players {
		for _, card := range p.ScheduledReveals(sess.Fair, sess.Round) {
			if !card.IsGroup || card.Selected != "" {
				continue
			}
			options := s.groupOptions(sess, card)
			if len(options) == 0 {
				continue
			}
			pending = append(pending, GroupChoice{
				PlayerIndex: i,
				Group:       card.Category,
				Value:       card.Value,
				Options:     options,
			})
		}
	}
	return pending
}

// SelectFlipCategory applies a player's select_flip_category action to their
// pending scheduled group card.
func (s *Service) SelectFlipCategory(sess *domain.Session, playerIdx int, category string) error {
	if sess.Phase != domain.PhaseGroupSelection {
		return ErrWrongPhase
	}
	if playerIdx < 0 || playerIdx >= len(sess.Players) {
		return ErrUnknownPlayer
	}

	p := sess.Players[playerIdx]
	for _, card := range p.ScheduledReveals(sess.Fair, sess.Round) {
		if !card.IsGroup || card.Selected != "" {
			continue
		}
		for _, option := range s.groupOptions(sess, card) {
			if option == category {
				card.Selected = category
				sess.Logf("%s binds %s group card to %s", p.Name, card.Category, category)
				return nil
			}
		}
		return ErrInvalidCategory
	}
	return ErrNoPendingChoice
}

// AutoAssignPendingGroups resolves every remaining pending group card with a
// uniformly random valid category. Used when the selection timeout elapses.
func (s *Service) AutoAssignPendingGroups(sess *domain.Session) {
	for _, p := range sess.Players {
		for _, card := range p.ScheduledReveals(sess.Fair, sess.Round) {
			if card.IsGroup && card.Selected == "" {
				s.autoBindGroupCard(sess, card)
			}
		}
	}
}

// FlipAndDeal resolves all scheduled face-down reveals simultaneously, deals
// the round's draws (skipped entirely in the final fair), and enters the
// round phase. Callers must ensure no group choices remain pending.
func (s *Service) FlipAndDeal(sess *domain.Session) []Event {
	flipped := make(map[int][]*domain.Card)
	for i, p := range sess.Players {
		if cards := p.FlipScheduled(sess.Fair, sess.Round); len(cards) > 0 {
			flipped[i] = cards
		}
	}

	if !sess.IsFinalFair() {
		for _, p := range sess.Players {
			for i := 0; i < domain.CardsPerDraw; i++ {
				card, ok := sess.Draw()
				if !ok {
					break
				}
				p.AddToHand(card)
			}
		}
	}

	sess.Phase = domain.PhaseRound
	sess.Logf("fair %d round %d begins", sess.Fair, sess.Round)

	events := []Event{{
		Kind: EventRoundStarted,
		Payload: RoundStartedPayload{
			Fair:             sess.Fair,
			Round:            sess.Round,
			FinalFair:        sess.IsFinalFair(),
			ActiveCategories: sess.ActiveCategories,
			Prestige:         sess.Prestige,
			DeckSize:         len(sess.Deck),
			Flipped:          flipped,
		},
	}}
	for i, p := range sess.Players {
		events = append(events, Event{
			Kind:       EventHandDealt,
			Payload:    HandDealtPayload{PlayerIndex: i, Hand: p.Hand},
			Recipients: []int{i},
		})
	}
	return events
}

// ValidateSubmission checks the structural rules for a play_cards request:
// correct phase, no face-down component in the final fair, and category
// bindings present and valid for any group card. Card presence in the hand
// is deliberately not checked here; a missing card degrades to a skipped
// half at resolution time.
func (s *Service) ValidateSubmission(sess *domain.Session, playerIdx int, req PlayRequest) error {
	if sess.Phase != domain.PhaseRound {
		return ErrWrongPhase
	}
	if playerIdx < 0 || playerIdx >= len(sess.Players) {
		return ErrUnknownPlayer
	}
	// A missing face-down half outside the final fair is tolerated; deck
	// exhaustion can leave a hand too short to fill both slots.
	if sess.IsFinalFair() && req.FaceDown != nil {
		return ErrFaceDownForbidden
	}

	if req.FaceUp.IsGroup {
		if err := s.validateBinding(sess, req.FaceUp.Category, req.GroupSelections.FaceUp); err != nil {
			return err
		}
	}
	if req.FaceDown != nil && req.FaceDown.IsGroup {
		if err := s.validateBinding(sess, req.FaceDown.Category, req.GroupSelections.FaceDown); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) validateBinding(sess *domain.Session, group, selected string) error {
	if selected == "" {
		return ErrMissingGroupSelection
	}
	for _, cat := range domain.ActiveCategoriesInGroup(sess.ActiveCategories, group) {
		if cat.Name == selected {
			return nil
		}
	}
	return ErrInvalidCategory
}

// findInHand matches a submission half against the hand by public
// attributes, skipping the card already claimed by the other half so a
// single physical card is never applied twice.
func findInHand(p *domain.Player, ref CardRef, exclude *domain.Card) *domain.Card {
	for _, card := range p.Hand {
		if card == exclude {
			continue
		}
		if card.Category == ref.Category && card.Value == ref.Value && card.IsGroup == ref.IsGroup {
			return card
		}
	}
	return nil
}

// ResolveRound applies every seat's submission in one atomic pass, then
// advances to the round summary, or scores the fair after round 3. A
// submission half naming a card not in the hand is skipped; the matched
// half still applies.
func (s *Service) ResolveRound(sess *domain.Session, subs map[int]PlayRequest) ([]Event, error) {
	if sess.Phase != domain.PhaseRound {
		return nil, ErrWrongPhase
	}

	played := make(map[int]*domain.Card)
	for i, p := range sess.Players {
		req, ok := subs[i]
		if !ok {
			continue
		}

		faceUp := findInHand(p, req.FaceUp, nil)
		if faceUp != nil {
			if faceUp.IsGroup {
				faceUp.Selected = req.GroupSelections.FaceUp
			}
			if _, ok := faceUp.EffectiveCategory(); ok || !faceUp.IsGroup {
				p.PlayCardFaceUp(faceUp)
				played[i] = faceUp
				sess.Logf("%s plays %s (%d) face-up", p.Name, faceUp.DisplayName(), faceUp.Value)
			} else {
				faceUp = nil
			}
		}

		if req.FaceDown != nil && !sess.IsFinalFair() {
			if faceDown := findInHand(p, *req.FaceDown, faceUp); faceDown != nil {
				if faceDown.IsGroup && req.GroupSelections.FaceDown != "" {
					faceDown.Selected = req.GroupSelections.FaceDown
				}
				p.PlayCardFaceDown(faceDown)
				sess.Logf("%s commits a card face-down", p.Name)
			}
		}
	}

	pendingCounts := make(map[int]int, len(sess.Players))
	for i, p := range sess.Players {
		pendingCounts[i] = len(p.FaceDownCards)
	}

	events := []Event{{
		Kind: EventRoundResolved,
		Payload: RoundResolvedPayload{
			Fair:    sess.Fair,
			Round:   sess.Round,
			Played:  played,
			Pending: pendingCounts,
		},
	}}

	if sess.Round >= domain.RoundsPerFair {
		events = append(events, s.scoreFair(sess)...)
	} else {
		sess.Phase = domain.PhaseRoundSummary
	}
	return events, nil
}

// scoreFair runs fair scoring and prestige updates, entering the fair
// summary phase.
func (s *Service) scoreFair(sess *domain.Session) []Event {
	result := domain.ScoreFair(sess.Players, sess.ActiveCategories, sess.Prestige)
	gainers := domain.UpdatePrestige(sess.Prestige, result)
	sess.Phase = domain.PhaseFairSummary
	sess.Logf("fair %d scored; prestige gained by %v", sess.Fair, gainers)

	return []Event{{
		Kind: EventFairEnded,
		Payload: FairEndedPayload{
			Fair:            sess.Fair,
			Results:         result,
			PrestigeGainers: gainers,
			Standings:       sess.Standings(),
		},
	}}
}

// AdvanceFromSummary handles continue_from_summary: out of a round summary
// into the next round, or out of a fair summary into the next fair's first
// round (or game end after the final fair).
func (s *Service) AdvanceFromSummary(sess *domain.Session, auto []bool) ([]Event, []GroupChoice, error) {
	switch sess.Phase {
	case domain.PhaseRoundSummary:
		return s.BeginRound(sess, auto)
	case domain.PhaseFairSummary:
		if sess.IsFinalFair() {
			sess.Phase = domain.PhaseGameEnd
			winner := sess.Winner()
			sess.Logf("game over; %s wins with %d VP", winner.Name, winner.TotalVP)
			return []Event{{
				Kind: EventGameEnded,
				Payload: GameEndedPayload{
					Winner:    winner,
					Standings: sess.Standings(),
				},
			}}, nil, nil
		}
		events := s.PrepareNextFair(sess)
		roundEvents, pending, err := s.BeginRound(sess, auto)
		if err != nil {
			return events, nil, err
		}
		return append(events, roundEvents...), pending, nil
	default:
		return nil, nil, ErrWrongPhase
	}
}

// PrepareNextFair applies the fair-boundary rotation: retire the
// lowest-performing category (below the seat cap, while benched categories
// remain) and promote the longest-benched one with fresh prestige, then
// clear per-fair player state and rebuild the deck from the updated active
// set. The retirement ranking re-tallies category totals from the played
// cards; ribbons were already issued when the fair was scored.
func (s *Service) PrepareNextFair(sess *domain.Session) []Event {
	if len(sess.Players) < domain.RetirementPlayerCap && len(sess.InactiveCategories) > 0 {
		result := domain.TallyCategoryTotals(sess.Players, sess.ActiveCategories)
		if retire := domain.FindCategoryToRetire(sess.ActiveCategories, sess.Prestige, result); retire != nil {
			key, _ := domain.CategoryKeyByName(retire.Name)

			active := sess.ActiveCategories[:0]
			for _, cat := range sess.ActiveCategories {
				if cat.Name != retire.Name {
					active = append(active, cat)
				}
			}
			sess.ActiveCategories = active
			delete(sess.Prestige, retire.Name)
			sess.InactiveCategories = append(sess.InactiveCategories, key)
			sess.Logf("retiring category %s", retire.Name)

			if len(sess.InactiveCategories) > 1 {
				front := sess.InactiveCategories[0]
				sess.InactiveCategories = sess.InactiveCategories[1:]
				promoted := domain.Categories[front]
				sess.ActiveCategories = append(sess.ActiveCategories, promoted)
				sess.Prestige[promoted.Name] = 0
				sess.Logf("promoting category %s", promoted.Name)
			}
		}
	}

	for _, p := range sess.Players {
		p.ClearForNextFair()
	}

	sess.Deck = domain.ShuffleDeck(s.rng, domain.NewDeck(sess.ActiveCategoryKeys()))
	sess.Fair++
	sess.Round = 0
	sess.Phase = domain.PhaseRoundSummary // transient; BeginRound follows immediately
	sess.Logf("fair %d ready with %d cards", sess.Fair, len(sess.Deck))

	return []Event{{
		Kind: EventNextFairReady,
		Payload: NextFairReadyPayload{
			Fair:             sess.Fair,
			ActiveCategories: sess.ActiveCategories,
			Prestige:         sess.Prestige,
		},
	}}
}
