package models

import (
	"errors"
	"strings"
)

var (
	ErrDuplicateUserEmail     = errors.New("user with this email already exists")
	ErrDuplicateGuardianEmail = errors.New("guardian with this email already exists")
	ErrHeartbeatSettingExists = errors.New("heartbeat settings already exist for user")

	ErrPriorityInUse           = errors.New("priority already in use")
	ErrGuardianAlreadyAssigned = errors.New("guardian is already assigned")
	ErrGuardianNotOwned        = errors.New("guardian belongs to a different user")

	ErrHeartbeatProtocolInactive = errors.New("heartbeat protocol is not active")

	ErrDuplicateJob = errors.New("job with the given name already exists in queue")
)

// isUniqueConstraintViolation reports whether err is the sqlite duplicate-key
// failure for a unique index covering 'column'. The raw driver error never
// leaves this package; callers only ever see the sentinel errors above.
func isUniqueConstraintViolation(err error, column string) bool {
	if err == nil {
		return false
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), column)
}
