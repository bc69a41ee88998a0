package workflow

import (
	"fmt"
	"strings"
)

// TransactionStatus is the lifecycle state of a transaction record.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "Pending"
	TransactionCompleted TransactionStatus = "Completed"
	TransactionFailed    TransactionStatus = "Failed"
)

// Terminal reports whether s is an admin decision.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionCompleted || s == TransactionFailed
}

// ParseTransactionStatus accepts the stored names case-insensitively.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return TransactionPending, nil
	case "completed":
		return TransactionCompleted, nil
	case "failed":
		return TransactionFailed, nil
	default:
		return "", fmt.Errorf("unknown transaction status %q", s)
	}
}

// CredentialStatus is the lifecycle state of a credential request.
type CredentialStatus string

const (
	CredentialRequested      CredentialStatus = "Requested"
	CredentialCreated        CredentialStatus = "Created"
	CredentialUsernameExists CredentialStatus = "UsernameExists"
)

// legacyUsernameExists is how older records spell the rejection.
const legacyUsernameExists = "Username Exists"

// Terminal reports whether s is an admin decision.
func (s CredentialStatus) Terminal() bool {
	return s == CredentialCreated || s == CredentialUsernameExists
}

// ParseCredentialStatus accepts the stored names, including the legacy
// "Username Exists" spelling.
func ParseCredentialStatus(s string) (CredentialStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "requested":
		return CredentialRequested, nil
	case "created":
		return CredentialCreated, nil
	case "usernameexists", strings.ToLower(legacyUsernameExists):
		return CredentialUsernameExists, nil
	default:
		return "", fmt.Errorf("unknown credential status %q", s)
	}
}
