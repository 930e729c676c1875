package questions

import (
	"math/rand"
	"testing"
)

func TestDealReturnsDistinctQuestions(test *testing.T) {
	test.Parallel()
	rng := rand.New(rand.NewSource(1))
	dealt, err := Deal(ProgramMedical, 2, rng)
	if err != nil {
		test.Fatalf("deal: %v", err)
	}
	if len(dealt) != 2 {
		test.Fatalf("expected 2 questions, got %d", len(dealt))
	}
	if dealt[0].ID == dealt[1].ID {
		test.Fatalf("dealt duplicate question %d", dealt[0].ID)
	}
}

func TestDealCapsAtBankSize(test *testing.T) {
	test.Parallel()
	rng := rand.New(rand.NewSource(1))
	dealt, err := Deal(ProgramDental, 100, rng)
	if err != nil {
		test.Fatalf("deal: %v", err)
	}
	if len(dealt) != len(Bank(ProgramDental)) {
		test.Fatalf("expected whole bank, got %d", len(dealt))
	}
}

func TestBankFallsBackToMedical(test *testing.T) {
	test.Parallel()
	fallback := Bank(ProgramLaw)
	medical := Bank(ProgramMedical)
	if len(fallback) != len(medical) {
		test.Fatalf("expected medical fallback for law, got %d questions", len(fallback))
	}
}

func TestKnownProgram(test *testing.T) {
	test.Parallel()
	if !KnownProgram(ProgramPharmacy) {
		test.Fatalf("pharmacy should be known")
	}
	if KnownProgram("Culinary School") {
		test.Fatalf("unexpected program should be unknown")
	}
}
