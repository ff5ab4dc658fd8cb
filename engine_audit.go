package usersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// recordAttempt appends one login attempt to the Ledger and mirrors it to
// the structured log. A ledger failure is an infrastructure error.
func (e *Engine) recordAttempt(ctx context.Context, acctNo *int64, origin string, at time.Time, reason Reason) error {
	attempt := LoginAttempt{
		AcctNo:  acctNo,
		Origin:  origin,
		At:      at.UTC(),
		Success: reason == ReasonLoginSuccess,
		Reason:  reason,
	}

	ev := e.log.WithLevel(attemptLevel(reason)).
		Str("reason", string(reason)).
		Bool("success", attempt.Success)
	if acctNo != nil {
		ev = ev.Int64("acct_no", *acctNo)
	}
	if origin != "" {
		ev = ev.Str("origin", origin)
	}
	ev.Msg("login attempt")

	if err := e.ledger.Append(ctx, attempt); err != nil {
		e.metricInc(MetricLedgerAppendFailure)
		e.log.Error().Err(err).Str("reason", string(reason)).Msg("ledger append failed")
		return fmt.Errorf("%w: append login attempt: %w", ErrInfrastructure, err)
	}
	return nil
}

func attemptLevel(reason Reason) zerolog.Level {
	switch reason {
	case ReasonAccountLocked:
		return zerolog.WarnLevel
	case ReasonLoginSuccess:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
