package aws

import (
	"errors"

	"github.com/aws/smithy-go"
)

// Error codes that mean the resource is already there. Creation treats
// them as convergence, not failure.
var conflictCodes = map[string]bool{
	"ResourceConflictException": true,
	"ConflictException":         true,
	"ResourceInUseException":    true,
	"BucketAlreadyOwnedByYou":   true,
}

// Error codes that mean the resource is already gone. Deletion treats
// them as success.
var notFoundCodes = map[string]bool{
	"NotFound":                  true,
	"NotFoundException":         true,
	"ResourceNotFoundException": true,
	"NoSuchBucket":              true,
	"NoSuchEntity":              true,
}

func isConflict(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && conflictCodes[ae.ErrorCode()]
}

func isNotFound(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && notFoundCodes[ae.ErrorCode()]
}
