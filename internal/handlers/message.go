package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tripline-dev/tripline/db"
	"github.com/tripline-dev/tripline/internal/guard"
	"github.com/tripline-dev/tripline/internal/models"
	"github.com/tripline-dev/tripline/internal/utils"
)

type MessageResponse struct {
	ID        uint   `json:"id"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// ListMessages returns the trip's chat history, oldest first. Approved
// members only.
func ListMessages(ctx *gin.Context) {
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
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}

	if !approved {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Only approved members can read the trip chat"})
		return
	}

	var messages []models.Message

	err = db.DB.Preload("Sender").
		Where("trip_id = ?", tripID).
		Order("created_at ASC").
		Find(&messages).Error

	if err != nil {
		log.Printf("Failed to list messages: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))

	for _, message := range messages {
		response = append(response, MessageResponse{
			ID:        message.ID,
			Message:   message.Content,
			Sender:    message.Sender.Username,
			Timestamp: message.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	ctx.JSON(http.StatusOK, response)
}
