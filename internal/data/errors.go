package data

import apperrors "github.com/target/console-api/internal/errors"

// Shared sentinel errors for data-layer repositories. They are AppErrors so
// callers can match them with errors.Is or classify them by code.
var (
	ErrJobNotFound     = apperrors.NotFound("job not found")
	ErrDiagramNotFound = apperrors.NotFound("diagram not found")
)
