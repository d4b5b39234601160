// scoring/scoring_test.go
package scoring

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ShomaShirai/Ito-game/models"
)

func numbersWithPositions(entries ...[2]int) []models.PlayerNumber {
	// entries are (number, position) pairs; player ids are p0, p1, ...
	names := []string{"p0", "p1", "p2", "p3", "p4"}
	out := make([]models.PlayerNumber, 0, len(entries))
	for i, e := range entries {
		pos := e[1]
		out = append(out, models.PlayerNumber{
			ID:       names[i] + "-num",
			PlayerID: names[i],
			Number:   e[0],
			Position: &pos,
		})
	}
	return out
}

func TestEvaluatePerfectOrder(t *testing.T) {
	numbers := numbersWithPositions([2]int{12, 1}, [2]int{47, 2}, [2]int{88, 3})

	out, err := Evaluate(numbers)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !out.Perfect {
		t.Error("expected a perfect round")
	}
	if out.Max != 0 {
		t.Errorf("Max = %d, want 0", out.Max)
	}
	if len(out.Penalized) != 0 {
		t.Errorf("Penalized = %v, want none", out.Penalized)
	}
}

func TestEvaluateSingleWorstPlayer(t *testing.T) {
	// True ascending order: p0(10) p1(20) p2(30) p3(40).
	// Arranged: p3 first, everyone else shifted right by one.
	numbers := numbersWithPositions([2]int{10, 2}, [2]int{20, 3}, [2]int{30, 4}, [2]int{40, 1})

	out, err := Evaluate(numbers)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Perfect {
		t.Error("round should not be perfect")
	}
	if out.Max != 3 {
		t.Errorf("Max = %d, want 3", out.Max)
	}
	if !reflect.DeepEqual(out.Penalized, []string{"p3"}) {
		t.Errorf("Penalized = %v, want [p3]", out.Penalized)
	}
}

func TestEvaluateTiedMaxSharesPenalty(t *testing.T) {
	// p0 and p1 swapped, both displaced by one.
	numbers := numbersWithPositions([2]int{10, 2}, [2]int{20, 1}, [2]int{30, 3})

	out, err := Evaluate(numbers)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Max != 1 {
		t.Errorf("Max = %d, want 1", out.Max)
	}
	if !reflect.DeepEqual(out.Penalized, []string{"p0", "p1"}) {
		t.Errorf("Penalized = %v, want [p0 p1]", out.Penalized)
	}
	if out.Displacements["p2"] != 0 {
		t.Errorf("p2 displacement = %d, want 0", out.Displacements["p2"])
	}
}

func TestEvaluateRejectsMissingPositions(t *testing.T) {
	numbers := numbersWithPositions([2]int{10, 1}, [2]int{20, 2})
	numbers[1].Position = nil

	if _, err := Evaluate(numbers); !errors.Is(err, ErrIncompleteOrder) {
		t.Errorf("err = %v, want ErrIncompleteOrder", err)
	}
}

func TestEvaluateRejectsEmptyRound(t *testing.T) {
	if _, err := Evaluate(nil); !errors.Is(err, ErrIncompleteOrder) {
		t.Errorf("err = %v, want ErrIncompleteOrder", err)
	}
}

func TestEvaluateDoesNotMutateInput(t *testing.T) {
	numbers := numbersWithPositions([2]int{30, 1}, [2]int{10, 2}, [2]int{20, 3})
	if _, err := Evaluate(numbers); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if numbers[0].Number != 30 || numbers[1].Number != 10 {
		t.Error("input slice was reordered")
	}
}
