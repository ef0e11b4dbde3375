package membership

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tripline-dev/tripline/internal/models"
	"gorm.io/gorm"
)

var (
	ErrAlreadyMember = errors.New("already requested to join or already a member of this trip")
	ErrNotAdmin      = errors.New("only trip admins can approve or reject join requests")
	ErrInvalidStatus = errors.New("status must be approved or rejected")
	ErrNotLeavable   = errors.New("membership cannot be left in its current status")
)

// Orchestrator applies membership transitions and triggers the matching
// notification side effect exactly once per actual state change.
type Orchestrator struct {
	DB *gorm.DB
}

func New(database *gorm.DB) *Orchestrator {
	return &Orchestrator{DB: database}
}

// RequestJoin creates a pending membership for the user and notifies every
// approved admin of the trip. It fails with ErrAlreadyMember when any record
// for (user, trip) exists, regardless of its status.
func (o *Orchestrator) RequestJoin(userID uint, tripID uint) (*models.TripMember, error) {
	var trip models.Trip

	if err := o.DB.First(&trip, tripID).Error; err != nil {
		return nil, err
	}

	var count int64

	err := o.DB.Model(&models.TripMember{}).
		Where("user_id = ? AND trip_id = ?", userID, tripID).
		Count(&count).Error

	if err != nil {
		return nil, err
	}

	if count > 0 {
		return nil, ErrAlreadyMember
	}

	member := models.TripMember{
		UserID:   userID,
		TripID:   tripID,
		Role:     models.RoleMember,
		Status:   models.StatusPending,
		JoinedAt: time.Now(),
	}

	if err := o.DB.Create(&member).Error; err != nil {
		// The unique index on (user_id, trip_id) closes the race between
		// the existence check and the insert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyMember
		}
		return nil, err
	}

	var requester models.User

	if err := o.DB.First(&requester, userID).Error; err != nil {
		return nil, err
	}

	var admins []models.TripMember

	err = o.DB.Where("trip_id = ? AND role = ? AND status = ?", tripID, models.RoleAdmin, models.StatusApproved).
		Find(&admins).Error

	if err != nil {
		log.Printf("Failed to load admins for trip %d: %v", tripID, err)
		return &member, nil
	}

	content := fmt.Sprintf("%s requested to join your trip: %s", requester.Username, trip.Title)

	for _, admin := range admins {
		o.notify(admin.UserID, content)
	}

	return &member, nil
}

// SetStatus moves a membership to approved or rejected on behalf of a trip
// admin. Setting the status it already has is a silent no-op; an actual
// change emits exactly one notification to the affected member.
func (o *Orchestrator) SetStatus(adminID uint, memberID uint, newStatus string) (*models.TripMember, error) {
	if newStatus != models.StatusApproved && newStatus != models.StatusRejected {
		return nil, ErrInvalidStatus
	}

	var member models.TripMember

	if err := o.DB.Preload("Trip").First(&member, memberID).Error; err != nil {
		return nil, err
	}

	var count int64

	err := o.DB.Model(&models.TripMember{}).
		Where("user_id = ? AND trip_id = ? AND role = ? AND status = ?", adminID, member.TripID, models.RoleAdmin, models.StatusApproved).
		Count(&count).Error

	if err != nil {
		return nil, err
	}

	if count == 0 {
		return nil, ErrNotAdmin
	}

	if member.Status == newStatus {
		return &member, nil
	}

	if err := o.DB.Model(&member).Update("status", newStatus).Error; err != nil {
		return nil, err
	}

	var content string

	switch newStatus {
	case models.StatusApproved:
		content = fmt.Sprintf("✅ Your request to join '%s' was approved!", member.Trip.Title)
	case models.StatusRejected:
		content = fmt.Sprintf("❌ Your request to join '%s' was rejected.", member.Trip.Title)
	}

	o.notify(member.UserID, content)

	return &member, nil
}

// Leave deletes the user's membership for the trip. Only pending and
// approved memberships can be left; a rejected record stays for audit.
func (o *Orchestrator) Leave(userID uint, tripID uint) error {
	var member models.TripMember

	err := o.DB.Where("user_id = ? AND trip_id = ?", userID, tripID).
		First(&member).Error

	if err != nil {
		return err
	}

	if member.Status != models.StatusPending && member.Status != models.StatusApproved {
		return ErrNotLeavable
	}

	// Hard delete: the (user_id, trip_id) unique index spans soft-deleted
	// rows, and a user who left must be able to request to join again.
	return o.DB.Unscoped().Delete(&member).Error
}

// notify appends one inbox entry. Fan-out is best-effort: a failed write is
// logged and never fails the transition that triggered it.
func (o *Orchestrator) notify(userID uint, content string) {
	notification := models.Notification{
		UserID:  userID,
		Content: content,
	}

	if err := o.DB.Create(&notification).Error; err != nil {
		log.Printf("Failed to create notification for user %d: %v", userID, err)
	}
}
