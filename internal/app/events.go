package app

import "warfaire/internal/domain"

// EventKind identifies emitted game events for dispatch by the host adapter.
type EventKind string

const (
	EventMatchStarted        EventKind = "match_started"
	EventHandDealt           EventKind = "hand_dealt"
	EventRoundStarted        EventKind = "round_started"
	EventGroupChoiceRequired EventKind = "group_choice_required"
	EventRoundResolved       EventKind = "round_resolved"
	EventFairEnded           EventKind = "fair_ended"
	EventNextFairReady       EventKind = "next_fair_ready"
	EventGameEnded           EventKind = "game_ended"
)

// Event is a game event with optional targeted recipients.
// Recipients are player indexes; empty means broadcast to the table.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []int
}

type MatchStartedPayload struct {
	SessionID        string
	ActiveCategories []domain.Category
	Prestige         map[string]int
}

type HandDealtPayload struct {
	PlayerIndex int
	Hand        []*domain.Card
}

type RoundStartedPayload struct {
	Fair             int
	Round            int
	FinalFair        bool
	ActiveCategories []domain.Category
	Prestige         map[string]int
	DeckSize         int
	Flipped          map[int][]*domain.Card // player index -> cards revealed this round start
}

// GroupChoiceRequiredPayload asks one player to bind a scheduled group card.
// The selection deadline is owned by the transport layer, which stamps the
// wire message with its configured timeout.
type GroupChoiceRequiredPayload struct {
	PlayerIndex int
	Group       string
	Value       int
	Options     []string
}

type RoundResolvedPayload struct {
	Fair    int
	Round   int
	Played  map[int]*domain.Card // player index -> face-up card applied this round
	Pending map[int]int          // player index -> face-down queue size
}

type FairEndedPayload struct {
	Fair            int
	Results         domain.FairResult
	PrestigeGainers []string
	Standings       []*domain.Player
}

type NextFairReadyPayload struct {
	Fair             int
	ActiveCategories []domain.Category
	Prestige         map[string]int
}

type GameEndedPayload struct {
	Winner    *domain.Player
	Standings []*domain.Player
}
