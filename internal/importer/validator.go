package importer

import (
	"fmt"

	"github.com/chess2lichess/chess2lichess/internal/pgn"
)

// ValidationResult contains the outcome of batch validation.
type ValidationResult struct {
	Passed   bool
	Errors   []string
	Warnings []string

	// Err is the first parse failure, if any.
	Err error

	// Unique holds the records to submit, in input order, with repeated ids removed.
	Unique []pgn.GameRecord
	// Texts holds the PGN block for each entry of Unique.
	Texts []string
}

// ValidateBatch parses every block and performs sanity checks before any
// game is submitted:
// - every block yields a record (a single failure fails the batch)
// - repeated game ids inside the batch are dropped with a warning
// - zero ratings and self-play are reported as warnings
func ValidateBatch(texts []string) ValidationResult {
	result := ValidationResult{Passed: true}
	seen := make(map[string]int, len(texts))

	for i, text := range texts {
		rec, err := pgn.Extract(text)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("game %d: %v", i, err))
			result.Passed = false
			if result.Err == nil {
				result.Err = fmt.Errorf("game %d: %w", i, err)
			}
			continue
		}

		if first, ok := seen[rec.GameID]; ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("game %s appears twice (blocks %d and %d), keeping the first", rec.GameID, first, i))
			continue
		}
		seen[rec.GameID] = i

		if rec.WhiteElo == 0 || rec.BlackElo == 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("game %s has a zero rating", rec.GameID))
		}
		if rec.White == rec.Black {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("game %s has the same player on both sides", rec.GameID))
		}

		result.Unique = append(result.Unique, rec)
		result.Texts = append(result.Texts, text)
	}

	return result
}
