package leads

import "errors"

var (
	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrInvalidQualification is returned when a qualification result holds
	// values outside its closed enums.
	ErrInvalidQualification = errors.New("invalid qualification result")

	// ErrScoreWithoutQualification guards the score/qualification pairing.
	ErrScoreWithoutQualification = errors.New("lead score requires a qualification result")

	// ErrEmptyPatch is returned when an update carries no fields.
	ErrEmptyPatch = errors.New("patch has no fields")
)
