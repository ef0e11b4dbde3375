package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tripline-dev/tripline/db"
	"github.com/tripline-dev/tripline/internal/guard"
	"github.com/tripline-dev/tripline/internal/models"
	"github.com/tripline-dev/tripline/internal/utils"
	"gorm.io/gorm"
)

type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

type UpdateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

type ReviewResponse struct {
	ID        uint   `json:"id"`
	TripID    uint   `json:"trip_id"`
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"created_at"`
}

func reviewResponse(review models.Review) ReviewResponse {
	return ReviewResponse{
		ID:        review.ID,
		TripID:    review.TripID,
		UserID:    review.UserID,
		Username:  review.User.Username,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// CreateReview stores a review once the guard confirms the trip has ended,
// the caller is an approved member and has not reviewed this trip before.
// Denials carry the exact reason of the failed check.
func CreateReview(ctx *gin.Context) {
	tripID, err := utils.GetTripID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body CreateReviewRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Rating between 1 and 5 is required"})
		return
	}

	var trip models.Trip

	if err := db.DB.First(&trip, tripID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve trip"})
		}
		return
	}

	err = guard.New(db.DB).CanReview(userID, &trip)

	if err != nil {
		switch {
		case errors.Is(err, guard.ErrTripNotEnded),
			errors.Is(err, guard.ErrNotMember),
			errors.Is(err, guard.ErrAlreadyReviewed):
			ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			log.Printf("Failed to check review eligibility: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create review"})
		}
		return
	}

	review := models.Review{
		UserID:  userID,
		TripID:  tripID,
		Rating:  body.Rating,
		Comment: body.Comment,
	}

	if err := db.DB.Create(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			ctx.JSON(http.StatusConflict, gin.H{"error": guard.ErrAlreadyReviewed.Error()})
			return
		}
		log.Printf("Failed to create review: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create review"})
		return
	}

	if err := db.DB.Preload("User").First(&review, review.ID).Error; err != nil {
		log.Printf("Failed to reload review %d: %v", review.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create review"})
		return
	}

	ctx.JSON(http.StatusCreated, reviewResponse(review))
}

func ListReviews(ctx *gin.Context) {
	tripID, err := utils.GetTripID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var reviews []models.Review

	err = db.DB.Preload("User").
		Where("trip_id = ?", tripID).
		Order("created_at DESC").
		Find(&reviews).Error

	if err != nil {
		log.Printf("Failed to list reviews: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reviews"})
		return
	}

	response := make([]ReviewResponse, 0, len(reviews))

	for _, review := range reviews {
		response = append(response, reviewResponse(review))
	}

	ctx.JSON(http.StatusOK, response)
}

func UpdateReview(ctx *gin.Context) {
	reviewID, err := utils.GetReviewID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body UpdateReviewRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Rating between 1 and 5 is required"})
		return
	}

	var review models.Review

	if err := db.DB.Where("id = ? AND user_id = ?", reviewID, userID).First(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve review"})
		}
		return
	}

	review.Rating = body.Rating
	review.Comment = body.Comment

	if err := db.DB.Save(&review).Error; err != nil {
		log.Printf("Failed to update review %d: %v", reviewID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update review"})
		return
	}

	if err := db.DB.Preload("User").First(&review, review.ID).Error; err != nil {
		log.Printf("Failed to reload review %d: %v", review.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update review"})
		return
	}

	ctx.JSON(http.StatusOK, reviewResponse(review))
}

func DeleteReview(ctx *gin.Context) {
	reviewID, err := utils.GetReviewID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var review models.Review

	if err := db.DB.Where("id = ? AND user_id = ?", reviewID, userID).First(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve review"})
		}
		return
	}

	// Hard delete: the (user_id, trip_id) unique index spans soft-deleted
	// rows and a deleted review must not block a new one.
	if err := db.DB.Unscoped().Delete(&review).Error; err != nil {
		log.Printf("Failed to delete review %d: %v", reviewID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete review"})
		return
	}

	ctx.Status(http.StatusNoContent)
}
