// Package questions holds the curated interview question banks and the
// per-session random selection.
package questions

import (
	"errors"
	"math/rand"
)

// Question is one curated interview prompt.
type Question struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
	Text string `json:"question"`
}

var ErrEmptyBank = errors.New("empty question bank")

// Programs lists the supported program categories.
func Programs() []string {
	programs := make([]string, len(programOptions))
	copy(programs, programOptions)
	return programs
}

// KnownProgram reports whether the category has a dedicated or fallback bank.
func KnownProgram(program string) bool {
	for _, candidate := range programOptions {
		if candidate == program {
			return true
		}
	}
	return false
}

// Bank returns the question set for a program. Programs without a dedicated
// bank fall back to the medical set, matching the curated content available.
func Bank(program string) []Question {
	if bank, ok := banks[program]; ok {
		return bank
	}
	return banks[ProgramMedical]
}

// Deal picks n distinct questions from the program's bank in random order.
// Asking for more than the bank holds returns the whole bank shuffled.
func Deal(program string, n int, rng *rand.Rand) ([]Question, error) {
	bank := Bank(program)
	if len(bank) == 0 {
		return nil, ErrEmptyBank
	}
	if n > len(bank) {
		n = len(bank)
	}
	indexes := rng.Perm(len(bank))
	dealt := make([]Question, 0, n)
	for _, index := range indexes[:n] {
		dealt = append(dealt, bank[index])
	}
	return dealt, nil
}
