package service

import (
	"context"
	"errors"
	"fmt"

	"voyago/internal/domain"
	"voyago/internal/events"
	"voyago/internal/models"

	"github.com/rs/zerolog"
)

var ErrNotGroupTour = errors.New("resource is not a group tour")

// GroupService tracks membership of group tours. Capacity is enforced by
// the store's conditional approve, so two concurrent approvals for the
// last slot admit exactly one member.
type GroupService struct {
	members  domain.MembershipStore
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewGroupService(members domain.MembershipStore, eventBus domain.EventPublisher, logger *zerolog.Logger) *GroupService {
	return &GroupService{
		members:  members,
		eventBus: eventBus,
		logger:   logger,
	}
}

// RequestJoin files a pending membership request. Joining is first come,
// first served on the owner's approval, not on the request itself, so a
// full group still accepts requests.
func (s *GroupService) RequestJoin(ctx context.Context, tourID, userID int64, message string) (*models.Membership, error) {
	if _, err := s.groupTour(tourID); err != nil {
		return nil, err
	}

	m := &models.Membership{
		TourID:  tourID,
		UserID:  userID,
		Status:  models.MemberPending,
		Message: message,
	}
	if err := s.members.CreateMembership(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("tour_id", tourID).Int64("user_id", userID).Msg("Join request created")
	return m, nil
}

// Approve admits a pending member if the group still has room.
func (s *GroupService) Approve(ctx context.Context, tourID, userID, actorID int64, actorRole string) error {
	res, err := s.groupTour(tourID)
	if err != nil {
		return err
	}
	if !ownerOrAdmin(res, actorID, actorRole) {
		return ErrNotAuthorized
	}

	if err := s.members.ApproveMembership(ctx, tourID, userID, res.TotalCapacity); err != nil {
		return err
	}

	s.publishDecision(events.EventMemberApproved, tourID, userID, models.MemberApproved, actorID)
	return nil
}

// Reject declines a pending request or removes an approved member,
// freeing that member's slot.
func (s *GroupService) Reject(ctx context.Context, tourID, userID, actorID int64, actorRole string) error {
	res, err := s.groupTour(tourID)
	if err != nil {
		return err
	}
	if !ownerOrAdmin(res, actorID, actorRole) {
		return ErrNotAuthorized
	}

	if err := s.members.RejectMembership(ctx, tourID, userID); err != nil {
		return err
	}

	s.publishDecision(events.EventMemberRejected, tourID, userID, models.MemberRejected, actorID)
	return nil
}

// Leave removes the user's membership entirely, freeing their slot if it
// was approved. A later re-join starts from a fresh request.
func (s *GroupService) Leave(ctx context.Context, tourID, userID int64) error {
	if _, err := s.groupTour(tourID); err != nil {
		return err
	}
	return s.members.DeleteMembership(ctx, tourID, userID)
}

func (s *GroupService) Members(ctx context.Context, tourID int64) ([]*models.Membership, error) {
	return s.members.GetMemberships(ctx, tourID)
}

func (s *GroupService) ApprovedCount(ctx context.Context, tourID int64) (int64, error) {
	return s.members.ApprovedMemberCount(ctx, tourID)
}

func (s *GroupService) groupTour(tourID int64) (*models.Resource, error) {
	res, err := s.members.GetResource(tourID)
	if err != nil {
		return nil, err
	}
	if res.Type != models.ResourceGroupTour {
		return nil, fmt.Errorf("%w: resource %d is %s", ErrNotGroupTour, tourID, res.Type)
	}
	return res, nil
}

func (s *GroupService) publishDecision(eventType string, tourID, userID int64, status string, decidedBy int64) {
	if s.eventBus == nil {
		return
	}
	payload := events.MembershipEventPayload{
		TourID:    tourID,
		UserID:    userID,
		Status:    status,
		DecidedBy: decidedBy,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Int64("tour_id", tourID).Int64("user_id", userID).Msg("publish event error")
	}
}
