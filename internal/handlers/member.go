package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tripline-dev/tripline/db"
	"github.com/tripline-dev/tripline/internal/guard"
	"github.com/tripline-dev/tripline/internal/membership"
	"github.com/tripline-dev/tripline/internal/models"
	"github.com/tripline-dev/tripline/internal/utils"
	"gorm.io/gorm"
)

type MemberResponse struct {
	ID       uint   `json:"id"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	TripID   uint   `json:"trip_id"`
	Role     string `json:"role"`
	Status   string `json:"status"`
	JoinedAt string `json:"joined_at"`
}

func memberResponse(member models.TripMember) MemberResponse {
	return MemberResponse{
		ID:       member.ID,
		UserID:   member.UserID,
		Username: member.User.Username,
		TripID:   member.TripID,
		Role:     member.Role,
		Status:   member.Status,
		JoinedAt: member.JoinedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func JoinTrip(ctx *gin.Context) {
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

	_, err = membership.New(db.DB).RequestJoin(userID, tripID)

	if err != nil {
		switch {
		case errors.Is(err, membership.ErrAlreadyMember):
			ctx.JSON(http.StatusConflict, gin.H{"error": "You have already requested to join or are already a member of this trip."})
		case errors.Is(err, gorm.ErrRecordNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
		default:
			log.Printf("Failed to create join request: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create join request"})
		}
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": "Join request sent successfully."})
}

func LeaveTrip(ctx *gin.Context) {
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

	err = membership.New(db.DB).Leave(userID, tripID)

	if err != nil {
		switch {
		case errors.Is(err, membership.ErrNotLeavable):
			ctx.JSON(http.StatusForbidden, gin.H{"error": "Membership cannot be left in its current status"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Membership not found"})
		default:
			log.Printf("Failed to leave trip: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave trip"})
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}

// ListMembers returns the trip's roster. Visible to trip admins and
// approved members only.
func ListMembers(ctx *gin.Context) {
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

	approved, err := guard.New(db.DB).IsApprovedMember(userID, tripID)

	if err != nil {
		log.Printf("Failed to check membership: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve members"})
		return
	}

	if !approved {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Only approved members can view the roster"})
		return
	}

	var members []models.TripMember

	if err := db.DB.Preload("User").Where("trip_id = ?", tripID).Find(&members).Error; err != nil {
		log.Printf("Failed to list members: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve members"})
		return
	}

	response := make([]MemberResponse, 0, len(members))

	for _, member := range members {
		response = append(response, memberResponse(member))
	}

	ctx.JSON(http.StatusOK, response)
}

// UpdateMember approves or rejects a join request. The request body must
// contain the status field and nothing else.
func UpdateMember(ctx *gin.Context) {
	memberID, err := utils.GetMemberID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body map[string]interface{}

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	rawStatus, hasStatus := body["status"]

	if !hasStatus || len(body) > 1 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Only the status field can be updated."})
		return
	}

	newStatus, ok := rawStatus.(string)

	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Only the status field can be updated."})
		return
	}

	member, err := membership.New(db.DB).SetStatus(userID, memberID, newStatus)

	if err != nil {
		switch {
		case errors.Is(err, membership.ErrNotAdmin):
			ctx.JSON(http.StatusForbidden, gin.H{"error": "Only trip admins can approve or reject join requests."})
		case errors.Is(err, membership.ErrInvalidStatus):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Status must be approved or rejected"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Membership not found"})
		default:
			log.Printf("Failed to update membership %d: %v", memberID, err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update membership"})
		}
		return
	}

	if err := db.DB.Preload("User").First(member, member.ID).Error; err != nil {
		log.Printf("Failed to reload membership %d: %v", member.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update membership"})
		return
	}

	ctx.JSON(http.StatusOK, memberResponse(*member))
}
