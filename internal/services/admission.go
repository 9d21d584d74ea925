package services

import (
	"context"
	"time"

	"github.com/you/gatekeeper/domain"
)

// DirectAdmission admits and denies through the join-request API. Used
// when the bot has admin rights on the target channel.
type DirectAdmission struct {
	gateway domain.Gateway
}

// NewDirectAdmission creates the direct strategy.
func NewDirectAdmission(gw domain.Gateway) *DirectAdmission {
	return &DirectAdmission{gateway: gw}
}

// Admit implements domain.AdmissionStrategy.
func (a *DirectAdmission) Admit(ctx context.Context, userID int64) error {
	return a.gateway.ApproveJoinRequest(ctx, userID)
}

// Deny implements domain.AdmissionStrategy.
func (a *DirectAdmission) Deny(ctx context.Context, userID int64) error {
	return a.gateway.DeclineJoinRequest(ctx, userID)
}

// InviteLinkTTL is how long an issued invite link stays valid.
const InviteLinkTTL = 24 * time.Hour

// InviteAdmission hands verified users a time-limited single-use
// invite link instead of touching the join-request API. Used when the
// bot has no admin rights on the channel.
type InviteAdmission struct {
	gateway domain.Gateway
}

// NewInviteAdmission creates the invite-link strategy.
func NewInviteAdmission(gw domain.Gateway) *InviteAdmission {
	return &InviteAdmission{gateway: gw}
}

// Admit implements domain.AdmissionStrategy.
func (a *InviteAdmission) Admit(ctx context.Context, userID int64) error {
	link, err := a.gateway.CreateInviteLink(ctx, InviteLinkTTL, true)
	if err != nil {
		return err
	}
	_, err = a.gateway.SendMessage(ctx, userID,
		"🎁 Here is your invite link. It is single use and valid for 24 hours.",
		&domain.SendOptions{Keyboard: [][]domain.ButtonSpec{{
			{Text: "🎪 Join the channel", URL: link},
		}}},
	)
	return err
}

// Deny implements domain.AdmissionStrategy. There is no pending join
// request to decline in this deployment.
func (a *InviteAdmission) Deny(ctx context.Context, userID int64) error {
	return nil
}
