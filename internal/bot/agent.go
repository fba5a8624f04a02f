package bot

import (
	"warfaire/internal/domain"
)

// Agent represents an autonomous bot player.
type Agent struct {
	ID       string
	Name     string
	Strategy Brain
}

// PlayAtSeat asks the agent to calculate its submission for the player at
// the given seat index.
func (a *Agent) PlayAtSeat(sess *domain.Session, seat int) (Move, error) {
	if seat < 0 || seat >= len(sess.Players) {
		return Move{}, nil
	}
	return a.Strategy.CalculateMove(sess, sess.Players[seat])
}

// ChooseCategory picks a category binding for a flipping group card.
func (a *Agent) ChooseCategory(options []string) string {
	return a.Strategy.ChooseCategory(options)
}
