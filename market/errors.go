package market

import "errors"

var (
	// Initialization
	ErrAlreadyInitialized  = errors.New("account already initialized")
	ErrNotInitialized      = errors.New("account not initialized")
	ErrInvalidConfig       = errors.New("invalid config")
	ErrInvalidDenomination = errors.New("vault denomination does not match config")

	// Authorization
	ErrUnauthorized           = errors.New("only admin can perform this action")
	ErrUnauthorizedWithdrawal = errors.New("only the host can withdraw")
	ErrSignerNotWinner        = errors.New("only winner can claim rewards")
	ErrCannotJoinOwnGame      = errors.New("you cannot join your own game")

	// Lookup
	ErrGameNotFound = errors.New("game not found")

	// State conflicts
	ErrGameAlreadyClosed    = errors.New("game is already closed")
	ErrGameAlreadyJoined    = errors.New("game already has an opponent")
	ErrWithdrawalNotAllowed = errors.New("cannot withdraw after opponent has joined")
	ErrGameNotStarted       = errors.New("game not started yet")
	ErrGameNotFinished      = errors.New("game is not finished yet - win threshold not reached")

	// Input and market conditions
	ErrInvalidPrice       = errors.New("invalid price value, must be > 0")
	ErrPriceMovedTooMuch  = errors.New("price moved too much since game creation")
	ErrInsufficientFunds  = errors.New("insufficient token balance")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// Internal: a game references a price the feed does not hold. Not a
	// caller error, so it has no code.
	ErrPriceOutOfRange = errors.New("price index out of range")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrAlreadyInitialized, "AlreadyInitialized"},
	{ErrNotInitialized, "NotInitialized"},
	{ErrInvalidConfig, "InvalidConfig"},
	{ErrInvalidDenomination, "InvalidDenomination"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrUnauthorizedWithdrawal, "UnauthorizedWithdrawal"},
	{ErrSignerNotWinner, "SignerNotWinner"},
	{ErrCannotJoinOwnGame, "CannotJoinOwnGame"},
	{ErrGameNotFound, "GameNotFound"},
	{ErrGameAlreadyClosed, "GameAlreadyClosed"},
	{ErrGameAlreadyJoined, "GameAlreadyJoined"},
	{ErrWithdrawalNotAllowed, "WithdrawalNotAllowed"},
	{ErrGameNotStarted, "GameNotStarted"},
	{ErrGameNotFinished, "GameNotFinished"},
	{ErrInvalidPrice, "InvalidPrice"},
	{ErrPriceMovedTooMuch, "PriceMovedTooMuch"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
}

// Code returns the stable name of a program error, or "" for anything else
// (storage failures, cancelled contexts).
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
