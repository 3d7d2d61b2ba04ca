package ledger

import "errors"

var (
	// ErrLedgerFull - the ledger reached its configured size
	ErrLedgerFull = errors.New("ledger is full")

	// ErrDuplicatedID - the message id is already pending
	ErrDuplicatedID = errors.New("message id is already pending")
)
