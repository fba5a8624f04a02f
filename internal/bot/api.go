package bot

import (
	"warfaire/internal/domain"
)

// Move represents the decision made by the AI for one round: a face-up card
// and, outside the final fair, a face-down commitment. Group cards carry the
// category the bot bound them to.
type Move struct {
	FaceUp           *domain.Card
	FaceUpCategory   string
	FaceDown         *domain.Card
	FaceDownCategory string
}

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	CalculateMove(sess *domain.Session, player *domain.Player) (Move, error)
	ChooseCategory(options []string) string
}
