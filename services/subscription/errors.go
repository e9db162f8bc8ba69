package subscription

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyActive    = errors.New("an active subscription already exists for this product")
	ErrAlreadyTrialed   = errors.New("the trial for this product has already been used")
	ErrTrialUnavailable = errors.New("this product does not offer a trial")
	ErrInvalidPlan      = errors.New("plan is not available for this product")
	ErrNotTrial         = errors.New("only trial subscriptions can be upgraded")
	ErrNotCancellable   = errors.New("only active or trial subscriptions can be cancelled")
	ErrNotRenewable     = errors.New("cancelled subscriptions cannot be renewed")
	ErrPaymentFailed    = errors.New("payment failed")
	ErrInvoicePaid      = errors.New("invoice is already paid")
)
