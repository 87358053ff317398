package domain

import (
	"errors"

	"github.com/google/uuid"
)

// ErrCardRefIncomplete is returned when a card reference lacks an identifier.
var ErrCardRefIncomplete = errors.New("card reference requires card and module IDs")

// CardRef is the engine's view of a flashcard owned by the content system.
// Display fields (term, definition, example, audio) live with the content
// system and are never read here.
type CardRef struct {
	ID       uuid.UUID `json:"id"`
	ModuleID uuid.UUID `json:"module_id"`
}

// Validate checks that both identifiers are present.
func (c *CardRef) Validate() error {
	if c.ID == uuid.Nil || c.ModuleID == uuid.Nil {
		return ErrCardRefIncomplete
	}
	return nil
}
