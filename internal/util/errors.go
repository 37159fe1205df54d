package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrMissionNotFound    = errors.New("mission not found")
	ErrUnknownMigration   = errors.New("unknown migration")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrConfirmRequired    = errors.New("destructive operation requires confirmation")
	ErrProtectedData      = errors.New("collection holds user data and is protected")
	ErrMissingDocumentID  = errors.New("document has no id")
	ErrUnsupportedFormat  = errors.New("unsupported fixture format")
	ErrLedgerDisabled     = errors.New("run ledger is not configured")
	ErrReconcileInProcess = errors.New("a reconciliation run is already in progress")
)
