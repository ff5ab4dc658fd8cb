package usersvc

import "errors"

var (
	// ErrAccountNotFound is returned when no account exists for the account number.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountLocked is returned by login while the lockout window is open.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidCredentials is returned when the password does not verify
	// or the account has no password set.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid covers malformed, expired, badly signed and
	// wrong-purpose tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned when a well-formed access token no longer
	// matches the fingerprint bound to its account.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrAccountForbidden is returned when a valid token belongs to a
	// currently locked account.
	ErrAccountForbidden = errors.New("account forbidden")
	// ErrAccountExists is returned by registration for a taken account number.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidAccountNumber is returned for non-positive account numbers.
	ErrInvalidAccountNumber = errors.New("invalid account number")
	// ErrPasswordPolicy is returned when a new password violates length limits.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidProfile is returned when required profile fields are missing.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrEngineNotReady is returned by a zero or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInfrastructure wraps every account store and ledger failure.
	ErrInfrastructure = errors.New("infrastructure failure")
)

// ErrorKind groups engine errors by how a boundary layer should answer them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindAuthFailure: AccountNotFound, AccountLocked, InvalidCredentials.
	KindAuthFailure
	// KindTokenFailure: TokenInvalid, TokenRevoked.
	KindTokenFailure
	// KindForbidden: AccountForbidden.
	KindForbidden
	// KindConflict: AccountExists.
	KindConflict
	// KindInvalidInput: bad account number, password policy, missing fields.
	KindInvalidInput
	// KindInfrastructure: store or ledger unreachable.
	KindInfrastructure
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthFailure:
		return "auth_failure"
	case KindTokenFailure:
		return "token_failure"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by the Engine to its ErrorKind.
// Infrastructure wins over any other sentinel found in the chain.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInfrastructure):
		return KindInfrastructure
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrInvalidCredentials):
		return KindAuthFailure
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenRevoked):
		return KindTokenFailure
	case errors.Is(err, ErrAccountForbidden):
		return KindForbidden
	case errors.Is(err, ErrAccountExists):
		return KindConflict
	case errors.Is(err, ErrInvalidAccountNumber),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrInvalidProfile):
		return KindInvalidInput
	default:
		return KindUnknown
	}
}
