package bot

import (
	"math/rand"
	"time"

	"warfaire/internal/domain"
)

// RandomBot plays uniformly at random: two distinct cards from hand (one in
// the final fair), and a uniformly random valid category for any group card.
type RandomBot struct {
	rng *rand.Rand
}

// NewRandomBot constructs a RandomBot with the provided rng or a time-seeded default.
func NewRandomBot(rng *rand.Rand) *RandomBot {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomBot{rng: rng}
}

func (b *RandomBot) CalculateMove(sess *domain.Session, player *domain.Player) (Move, error) {
	if player == nil || len(player.Hand) == 0 {
		return Move{}, nil
	}

	var move Move

	faceUpIdx := b.rng.Intn(len(player.Hand))
	move.FaceUp = player.Hand[faceUpIdx]
	if move.FaceUp.IsGroup {
		category, ok := b.pickCategory(sess, move.FaceUp.Category)
		if !ok {
			// No live category in the group; the card cannot score.
			move.FaceUp = nil
		} else {
			move.FaceUpCategory = category
		}
	}

	if sess.IsFinalFair() || len(player.Hand) < 2 {
		return move, nil
	}

	faceDownIdx := b.rng.Intn(len(player.Hand) - 1)
	if faceDownIdx >= faceUpIdx {
		faceDownIdx++
	}
	move.FaceDown = player.Hand[faceDownIdx]
	if move.FaceDown.IsGroup {
		category, ok := b.pickCategory(sess, move.FaceDown.Category)
		if !ok {
			move.FaceDown = nil
		} else {
			move.FaceDownCategory = category
		}
	}

	return move, nil
}

func (b *RandomBot) ChooseCategory(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[b.rng.Intn(len(options))]
}

func (b *RandomBot) pickCategory(sess *domain.Session, group string) (string, bool) {
	cats := domain.ActiveCategoriesInGroup(sess.ActiveCategories, group)
	if len(cats) == 0 {
		return "", false
	}
	return cats[b.rng.Intn(len(cats))].Name, true
}
