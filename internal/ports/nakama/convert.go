package nakama

import (
	"strconv"

	"warfaire/internal/domain"
)

// MatchLabel is the JSON label Nakama indexes for match listing queries.
type MatchLabel struct {
	Open  bool   `json:"open"`
	Game  string `json:"game"`
	Phase string `json:"phase"`
}

// WireCard is the client-facing card representation.
type WireCard struct {
	Category    string `json:"category"`
	Value       int    `json:"value"`
	IsGroup     bool   `json:"is_group"`
	Selected    string `json:"selected,omitempty"`
	PlayedFair  int    `json:"played_fair,omitempty"`
	PlayedRound int    `json:"played_round,omitempty"`
}

func cardToWire(c *domain.Card) WireCard {
	return WireCard{
		Category:    c.Category,
		Value:       c.Value,
		IsGroup:     c.IsGroup,
		Selected:    c.Selected,
		PlayedFair:  c.PlayedFair,
		PlayedRound: c.PlayedRound,
	}
}

func cardsToWire(cards []*domain.Card) []WireCard {
	out := make([]WireCard, 0, len(cards))
	for _, c := range cards {
		out = append(out, cardToWire(c))
	}
	return out
}

// WireCategory carries an active category and its current prestige.
type WireCategory struct {
	Name     string `json:"name"`
	Group    string `json:"group"`
	Prestige int    `json:"prestige"`
}

func categoriesToWire(cats []domain.Category, prestige map[string]int) []WireCategory {
	out := make([]WireCategory, 0, len(cats))
	for _, cat := range cats {
		out = append(out, WireCategory{
			Name:     cat.Name,
			Group:    cat.Group,
			Prestige: prestige[cat.Name],
		})
	}
	return out
}

// WireStanding is one row of the VP leaderboard.
type WireStanding struct {
	Seat    int    `json:"seat"`
	Name    string `json:"name"`
	TotalVP int    `json:"total_vp"`
	Ribbons int    `json:"ribbons"`
}

// WireRibbonAward is one ribbon issued during fair scoring.
type WireRibbonAward struct {
	Seat   int    `json:"seat"`
	Name   string `json:"name"`
	Ribbon string `json:"ribbon"`
	Total  int    `json:"total"`
	VP     int    `json:"vp"`
}

// WireCategoryResult is one category's scoring outcome.
type WireCategoryResult struct {
	Name        string            `json:"name"`
	Prestige    int               `json:"prestige"`
	TotalPoints int               `json:"total_points"`
	Winners     []WireRibbonAward `json:"winners"`
}

// WireGroupResult is one group's winner for the fair.
type WireGroupResult struct {
	Group      string `json:"group"`
	WinnerSeat int    `json:"winner_seat"`
	WinnerName string `json:"winner_name"`
	VP         int    `json:"vp"`
}

// seatKey renders a seat index as a JSON object key.
func seatKey(seat int) string {
	return strconv.Itoa(seat)
}
