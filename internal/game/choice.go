package game

import (
	"fmt"
	"strings"
)

// Choice is a rock-paper-scissors move
type Choice string

const (
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"
)

// beats maps each choice to the one it defeats
var beats = map[Choice]Choice{
	Rock:     Scissors,
	Scissors: Paper,
	Paper:    Rock,
}

// ParseChoice accepts the choice name in any case.
func ParseChoice(s string) (Choice, error) {
	c := Choice(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := beats[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
	return c, nil
}

func (c Choice) Valid() bool {
	_, ok := beats[c]
	return ok
}

func (c Choice) Beats(other Choice) bool {
	return beats[c] == other
}

// Decide returns 1 when a wins, -1 when b wins and 0 on a draw.
func Decide(a, b Choice) int {
	switch {
	case a == b:
		return 0
	case a.Beats(b):
		return 1
	default:
		return -1
	}
}

// Outcome is a player's result in a finished session
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLose    Outcome = "lose"
	OutcomeDraw    Outcome = "draw"
	OutcomeForfeit Outcome = "forfeit"
)
