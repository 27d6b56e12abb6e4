package plan

import "errors"

var (
	ErrFailedToLoadPlans        = errors.New("failed to load plan catalog")
	ErrInvalidPlanConfiguration = errors.New("invalid plan configuration")
)
