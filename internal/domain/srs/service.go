package srs

import (
	"time"

	"github.com/phrazzld/scry-srs/internal/domain"
)

// Service defines the interface for SRS algorithm operations
type Service interface {
	// Advance computes the next review state from prior (nil for a card that
	// has never been reviewed) and a quality rating.
	Advance(prior *domain.ReviewState, quality int, now time.Time) (*domain.ReviewState, error)

	// Params returns the parameters the service schedules with.
	Params() *Params
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new SRS service with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new SRS service with custom parameters.
// Returns ErrInvalidParams if the parameters cannot drive the algorithm.
func NewServiceWithParams(params *Params) (Service, error) {
	if params == nil {
		return NewDefaultService(), nil
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &defaultService{
		params: params,
	}, nil
}

// Advance implements Service.Advance
func (s *defaultService) Advance(
	prior *domain.ReviewState,
	quality int,
	now time.Time,
) (*domain.ReviewState, error) {
	return Advance(prior, quality, now, s.params)
}

// Params implements Service.Params
func (s *defaultService) Params() *Params {
	return s.params
}
