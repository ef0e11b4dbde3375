package guard

import (
	"errors"
	"time"

	"github.com/tripline-dev/tripline/internal/models"
	"gorm.io/gorm"
)

// Review eligibility denials. The error text doubles as the machine-readable
// reason string handlers return to clients.
var (
	ErrTripNotEnded    = errors.New("not-ended")
	ErrNotMember       = errors.New("not-member")
	ErrAlreadyReviewed = errors.New("already-reviewed")
)

// Guard derives authorization decisions from the membership ledger. It never
// caches; every check reads the current ledger state.
type Guard struct {
	DB  *gorm.DB
	Now func() time.Time
}

func New(database *gorm.DB) *Guard {
	return &Guard{DB: database, Now: time.Now}
}

func (g *Guard) IsApprovedMember(userID uint, tripID uint) (bool, error) {
	var count int64

	err := g.DB.Model(&models.TripMember{}).
		Where("user_id = ? AND trip_id = ? AND status = ?", userID, tripID, models.StatusApproved).
		Count(&count).Error

	return count > 0, err
}

func (g *Guard) IsAdmin(userID uint, tripID uint) (bool, error) {
	var count int64

	err := g.DB.Model(&models.TripMember{}).
		Where("user_id = ? AND trip_id = ? AND role = ? AND status = ?", userID, tripID, models.RoleAdmin, models.StatusApproved).
		Count(&count).Error

	return count > 0, err
}

// CanReview reports whether userID may review the trip. A nil return means
// eligible; otherwise the error is one of ErrTripNotEnded, ErrNotMember or
// ErrAlreadyReviewed so callers can surface the exact failed check.
func (g *Guard) CanReview(userID uint, trip *models.Trip) error {
	now := g.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// The trip must have ended strictly before today.
	if !trip.EndDate.Before(today) {
		return ErrTripNotEnded
	}

	approved, err := g.IsApprovedMember(userID, trip.ID)

	if err != nil {
		return err
	}

	if !approved {
		return ErrNotMember
	}

	var count int64

	err = g.DB.Model(&models.Review{}).
		Where("user_id = ? AND trip_id = ?", userID, trip.ID).
		Count(&count).Error

	if err != nil {
		return err
	}

	if count > 0 {
		return ErrAlreadyReviewed
	}

	return nil
}

// ApprovedMembers returns the trip's current approved roster with users
// preloaded. Notification fan-out re-derives the recipient set through this
// on every send.
func (g *Guard) ApprovedMembers(tripID uint) ([]models.TripMember, error) {
	var members []models.TripMember

	err := g.DB.Preload("User").
		Where("trip_id = ? AND status = ?", tripID, models.StatusApproved).
		Find(&members).Error

	return members, err
}
