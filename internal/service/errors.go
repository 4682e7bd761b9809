package service

import "errors"

// Domain validation failures surfaced to the interactive path. Remote and
// persistence errors pass through wrapped, these are the business rules.
var (
	ErrInvalidDuration   = errors.New("duration must be a positive number of days")
	ErrTrialNotRenewable = errors.New("trial subscriptions cannot be renewed")
	ErrTrafficFloor      = errors.New("traffic limit cannot go below the floor")
	ErrNoTrialDays       = errors.New("no trial days left")
	ErrTrialDisabled     = errors.New("trial activation is disabled")
	ErrNoActiveServer    = errors.New("no active server available")
	ErrNotOwner          = errors.New("subscription does not belong to this user")

	ErrPromoNotFound    = errors.New("promocode not found or inactive")
	ErrPromoExpired     = errors.New("promocode is no longer valid")
	ErrPromoExhausted   = errors.New("promocode usage cap reached")
	ErrPromoAlreadyUsed = errors.New("promocode already redeemed by this user")

	ErrTariffNotFound  = errors.New("no tariff for this category and duration")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrNotPaid         = errors.New("invoice is not paid yet")
	ErrInvoiceExpired  = errors.New("invoice expired before payment")
	ErrAlreadySettled  = errors.New("payment already settled")
	ErrCheckInProgress = errors.New("payment check already in progress")
)
