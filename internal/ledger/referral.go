package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var ErrSelfReferral = errors.New("account cannot refer itself")

// ReferralAmount scales base by multiplier for VIP referrers, rounded to whole points.
func ReferralAmount(base int64, vip bool, multiplier float64) int64 {
	if !vip || multiplier <= 1 {
		return base
	}
	return int64(math.Round(float64(base) * multiplier))
}

// ReferralResult reports what a referral paid out.
type ReferralResult struct {
	ReferrerCredit int64
	InviteeCredit  int64
}

// Fresh reports whether an account has never had a ledger entry. Only fresh
// accounts can be referred.
func Fresh(ctx context.Context, s Store, accountID string) (bool, error) {
	entries, err := s.Entries(ctx, accountID, 1)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// CreditReferral pays the invitee and then the referrer (VIP-scaled). Both
// credits are keyed by the invitee, and the invitee's welcome credit goes
// first so a second referrer for the same invitee is refused.
func CreditReferral(ctx context.Context, s Store, referrerID, inviteeID string, base, inviteeReward int64, vip bool, multiplier float64) (*ReferralResult, error) {
	if referrerID == "" || inviteeID == "" || referrerID == HouseAccount || inviteeID == HouseAccount {
		return nil, ErrInvalidAccount
	}
	if referrerID == inviteeID {
		return nil, ErrSelfReferral
	}

	res := &ReferralResult{}
	if inviteeReward > 0 {
		_, err := s.Credit(ctx, inviteeID, inviteeReward, Ref{
			Type:        EntryWelcome,
			Key:         "welcome:" + inviteeID,
			Reference:   referrerID,
			Description: "Joined via referral",
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateEntry) {
				return nil, err
			}
			return nil, fmt.Errorf("credit invitee %s: %w", inviteeID, err)
		}
		res.InviteeCredit = inviteeReward
	}

	amount := ReferralAmount(base, vip, multiplier)
	if amount > 0 {
		_, err := s.Credit(ctx, referrerID, amount, Ref{
			Type:        EntryReferral,
			Key:         "referral:" + inviteeID,
			Reference:   inviteeID,
			Description: "Referral reward",
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateEntry) {
				return res, err
			}
			return res, fmt.Errorf("credit referrer %s: %w", referrerID, err)
		}
		res.ReferrerCredit = amount
		if err := s.IncrementInvites(ctx, referrerID); err != nil {
			return res, fmt.Errorf("increment invites for %s: %w", referrerID, err)
		}
	}

	return res, nil
}
