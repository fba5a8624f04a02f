package domain

import (
	"fmt"
	"sort"
)

// Phase is the coarse lifecycle stage of a session. Finer-grained phase
// labels for clients are derived via PhaseLabel.
type Phase string

const (
	// PhaseLobby is the pre-game state where players can join.
	PhaseLobby Phase = "lobby"
	// PhaseGroupSelection waits for players to bind group cards about to flip.
	PhaseGroupSelection Phase = "group_selection"
	// PhaseRound is the active play state where cards are submitted.
	PhaseRound Phase = "round"
	// PhaseRoundSummary displays the board between rounds of a fair.
	PhaseRoundSummary Phase = "round_summary"
	// PhaseFairSummary displays fair scoring results.
	PhaseFairSummary Phase = "fair_summary"
	// PhaseGameEnd is the state after the final fair concludes.
	PhaseGameEnd Phase = "game_end"
)

const (
	// FairsPerMatch is the fixed match length.
	FairsPerMatch = 3
	// RoundsPerFair is the fixed number of rounds in each fair.
	RoundsPerFair = 3
	// CardsPerDraw is how many cards each player draws at round start.
	CardsPerDraw = 3
	// SetupFaceDownCards is how many face-down cards each player is dealt
	// during first-fair setup.
	SetupFaceDownCards = 3
	// RetirementPlayerCap disables category rotation at or above this many
	// seated players.
	RetirementPlayerCap = 10
)

// Session is the authoritative aggregate for one War Faire match. It is
// created at hand start, mutated by the orchestrator only, and discarded
// when the table returns to the lobby.
type Session struct {
	ID    string
	Phase Phase

	Players            []*Player
	Deck               []*Card
	ActiveCategories   []Category
	InactiveCategories []string // catalog keys, FIFO benched order
	Prestige           map[string]int

	Fair  int
	Round int

	Log []string
}

// NewSession creates a session in the lobby phase for the named players,
// seat order preserved.
func NewSession(id string, playerNames []string) *Session {
	s := &Session{
		ID:       id,
		Phase:    PhaseLobby,
		Prestige: make(map[string]int),
	}
	for i, name := range playerNames {
		s.Players = append(s.Players, NewPlayer(i, name))
	}
	return s
}

// maxLogLines bounds the session log; older lines are dropped.
const maxLogLines = 200

// Logf appends a formatted line to the session log.
func (s *Session) Logf(format string, args ...interface{}) {
	s.Log = append(s.Log, fmt.Sprintf(format, args...))
	if len(s.Log) > maxLogLines {
		s.Log = s.Log[len(s.Log)-maxLogLines:]
	}
}

// Draw pops the top card of the deck. ok is false when the deck is empty;
// running out of cards late in a match is expected, not an error.
func (s *Session) Draw() (*Card, bool) {
	if len(s.Deck) == 0 {
		return nil, false
	}
	card := s.Deck[len(s.Deck)-1]
	s.Deck = s.Deck[:len(s.Deck)-1]
	return card, true
}

// ActiveCategoryKeys returns the catalog keys of the active set in order.
func (s *Session) ActiveCategoryKeys() []string {
	keys := make([]string, 0, len(s.ActiveCategories))
	for _, cat := range s.ActiveCategories {
		if key, ok := CategoryKeyByName(cat.Name); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// IsFinalFair reports whether the current fair is the last of the match.
func (s *Session) IsFinalFair() bool {
	return s.Fair >= FairsPerMatch
}

// PhaseLabel encodes the current phase for clients, e.g. "Fair2Round1",
// "Fair2Round1GroupSelection", "RoundSummary2_1", "FairSummary2", "GameEnd".
func (s *Session) PhaseLabel() string {
	switch s.Phase {
	case PhaseLobby:
		return "Lobby"
	case PhaseGroupSelection:
		return fmt.Sprintf("Fair%dRound%dGroupSelection", s.Fair, s.Round)
	case PhaseRound:
		return fmt.Sprintf("Fair%dRound%d", s.Fair, s.Round)
	case PhaseRoundSummary:
		return fmt.Sprintf("RoundSummary%d_%d", s.Fair, s.Round)
	case PhaseFairSummary:
		return fmt.Sprintf("FairSummary%d", s.Fair)
	case PhaseGameEnd:
		return "GameEnd"
	}
	return string(s.Phase)
}

// Standings returns players ordered by descending total VP. The sort is
// stable, so seat order breaks ties.
func (s *Session) Standings() []*Player {
	out := make([]*Player, len(s.Players))
	copy(out, s.Players)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalVP > out[j].TotalVP })
	return out
}

// Winner returns the player with the highest total VP, or nil before any
// players exist.
func (s *Session) Winner() *Player {
	standings := s.Standings()
	if len(standings) == 0 {
		return nil
	}
	return standings[0]
}
