// scoring/scoring.go
package scoring

import (
	"errors"
	"sort"

	"github.com/ShomaShirai/Ito-game/models"
)

// ErrIncompleteOrder is returned when a round is evaluated before every
// player has an arranged position.
var ErrIncompleteOrder = errors.New("not every player has an arranged position")

// Outcome is the result of judging one round.
type Outcome struct {
	// Displacements maps player id to the absolute distance between the
	// player's arranged slot and their slot in the true ascending order.
	Displacements map[string]int
	// Max is the largest displacement in the round.
	Max int
	// Penalized lists every player tied at the maximum displacement. Empty
	// when the arrangement was perfect.
	Penalized []string
	// Perfect is true when the arranged order equals the true order.
	Perfect bool
}

// Evaluate judges a completed round: the true order is ascending by secret
// number, the arranged order comes from the 1-based positions the host
// saved. The penalty goes to everyone sharing the maximum displacement.
func Evaluate(numbers []models.PlayerNumber) (*Outcome, error) {
	if len(numbers) == 0 {
		return nil, ErrIncompleteOrder
	}
	for i := range numbers {
		if numbers[i].Position == nil {
			return nil, ErrIncompleteOrder
		}
	}

	truth := make([]models.PlayerNumber, len(numbers))
	copy(truth, numbers)
	sort.Slice(truth, func(i, j int) bool {
		return truth[i].Number < truth[j].Number
	})
	trueIndex := make(map[string]int, len(truth))
	for i := range truth {
		trueIndex[truth[i].PlayerID] = i
	}

	out := &Outcome{Displacements: make(map[string]int, len(numbers))}
	for i := range numbers {
		arranged := *numbers[i].Position - 1
		d := arranged - trueIndex[numbers[i].PlayerID]
		if d < 0 {
			d = -d
		}
		out.Displacements[numbers[i].PlayerID] = d
		if d > out.Max {
			out.Max = d
		}
	}

	if out.Max == 0 {
		out.Perfect = true
		return out, nil
	}
	for i := range numbers {
		if out.Displacements[numbers[i].PlayerID] == out.Max {
			out.Penalized = append(out.Penalized, numbers[i].PlayerID)
		}
	}
	sort.Strings(out.Penalized)
	return out, nil
}

// Penalty is the life cost applied to each penalized player per round.
const Penalty = 1
