package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tripline-dev/tripline/db"
	"github.com/tripline-dev/tripline/internal/models"
	"github.com/tripline-dev/tripline/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type CreateTripRequest struct {
	Title       string   `json:"title" binding:"required"`
	Destination string   `json:"destination" binding:"required"`
	Description string   `json:"description"`
	StartDate   string   `json:"start_date" binding:"required"`
	EndDate     string   `json:"end_date" binding:"required"`
	Budget      *float64 `json:"budget"`
	Tags        []string `json:"tags"`
}

type UpdateTripRequest struct {
	Title       string   `json:"title" binding:"required"`
	Destination string   `json:"destination" binding:"required"`
	Description string   `json:"description"`
	StartDate   string   `json:"start_date" binding:"required"`
	EndDate     string   `json:"end_date" binding:"required"`
	Budget      *float64 `json:"budget"`
	Tags        []string `json:"tags"`
}

type TripResponse struct {
	ID          uint     `json:"id"`
	Title       string   `json:"title"`
	Destination string   `json:"destination"`
	Description string   `json:"description"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Budget      *float64 `json:"budget"`
	Tags        []string `json:"tags"`
	CreatorID   uint     `json:"creator_id"`
	Creator     string   `json:"creator"`
}

func tripResponse(trip models.Trip) TripResponse {
	var tags []string

	if len(trip.Tags) > 0 {
		if err := json.Unmarshal(trip.Tags, &tags); err != nil {
			log.Printf("Invalid tags payload for trip %d: %v", trip.ID, err)
		}
	}

	return TripResponse{
		ID:          trip.ID,
		Title:       trip.Title,
		Destination: trip.Destination,
		Description: trip.Description,
		StartDate:   trip.StartDate.Format(dateLayout),
		EndDate:     trip.EndDate.Format(dateLayout),
		Budget:      trip.Budget,
		Tags:        tags,
		CreatorID:   trip.CreatorID,
		Creator:     trip.Creator.Username,
	}
}

func parseTripDates(startDate string, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startDate)

	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start_date must be formatted as YYYY-MM-DD")
	}

	end, err := time.Parse(dateLayout, endDate)

	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end_date must be formatted as YYYY-MM-DD")
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end_date must not be before start_date")
	}

	return start, end, nil
}

func marshalTags(tags []string) (datatypes.JSON, error) {
	if tags == nil {
		tags = []string{}
	}

	raw, err := json.Marshal(tags)

	if err != nil {
		return nil, err
	}

	return datatypes.JSON(raw), nil
}

// CreateTrip stores the trip and the creator's admin membership in one
// transaction; a trip never exists without an approved admin.
func CreateTrip(ctx *gin.Context) {
	var body CreateTripRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	start, end, err := parseTripDates(body.StartDate, body.EndDate)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tags, err := marshalTags(body.Tags)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tags"})
		return
	}

	trip := models.Trip{
		Title:       body.Title,
		Destination: body.Destination,
		Description: body.Description,
		StartDate:   start,
		EndDate:     end,
		Budget:      body.Budget,
		Tags:        tags,
		CreatorID:   userID,
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&trip).Error; err != nil {
			return err
		}

		member := models.TripMember{
			UserID:   userID,
			TripID:   trip.ID,
			Role:     models.RoleAdmin,
			Status:   models.StatusApproved,
			JoinedAt: time.Now(),
		}

		return tx.Create(&member).Error
	})

	if err != nil {
		log.Printf("Failed to create trip: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create trip"})
		return
	}

	ctx.JSON(http.StatusCreated, tripResponse(trip))
}

// ListTrips returns trips matching the optional destination, start_date,
// end_date and tags query filters.
func ListTrips(ctx *gin.Context) {
	query := db.DB.Preload("Creator").Model(&models.Trip{})

	if destination := ctx.Query("destination"); destination != "" {
		query = query.Where("LOWER(destination) LIKE ?", "%"+strings.ToLower(destination)+"%")
	}

	if startDate := ctx.Query("start_date"); startDate != "" {
		start, err := time.Parse(dateLayout, startDate)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be formatted as YYYY-MM-DD"})
			return
		}
		query = query.Where("start_date >= ?", start)
	}

	if endDate := ctx.Query("end_date"); endDate != "" {
		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be formatted as YYYY-MM-DD"})
			return
		}
		query = query.Where("end_date <= ?", end)
	}

	var trips []models.Trip

	if err := query.Find(&trips).Error; err != nil {
		log.Printf("Failed to list trips: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve trips"})
		return
	}

	wanted := parseTagsFilter(ctx.Query("tags"))

	response := make([]TripResponse, 0, len(trips))

	for _, trip := range trips {
		resp := tripResponse(trip)

		if !hasAllTags(resp.Tags, wanted) {
			continue
		}

		response = append(response, resp)
	}

	ctx.JSON(http.StatusOK, response)
}

func parseTagsFilter(raw string) []string {
	if raw == "" {
		return nil
	}

	var tags []string

	for _, tag := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}

	return tags
}

func hasAllTags(tags []string, wanted []string) bool {
	for _, want := range wanted {
		found := false
		for _, tag := range tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func GetTrip(ctx *gin.Context) {
	tripID, err := utils.GetTripID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var trip models.Trip

	if err := db.DB.Preload("Creator").First(&trip, tripID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve trip"})
		}
		return
	}

	ctx.JSON(http.StatusOK, tripResponse(trip))
}

func UpdateTrip(ctx *gin.Context) {
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

	var body UpdateTripRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var trip models.Trip

	if err := db.DB.Where("id = ? AND creator_id = ?", tripID, userID).First(&trip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve trip"})
		}
		return
	}

	start, end, err := parseTripDates(body.StartDate, body.EndDate)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tags, err := marshalTags(body.Tags)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tags"})
		return
	}

	trip.Title = body.Title
	trip.Destination = body.Destination
	trip.Description = body.Description
	trip.StartDate = start
	trip.EndDate = end
	trip.Budget = body.Budget
	trip.Tags = tags

	if err := db.DB.Save(&trip).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update trip"})
		return
	}

	ctx.JSON(http.StatusOK, tripResponse(trip))
}

func DeleteTrip(ctx *gin.Context) {
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

	var trip models.Trip

	if err := db.DB.Where("id = ? AND creator_id = ?", tripID, userID).First(&trip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve trip"})
		}
		return
	}

	if err := db.DB.Delete(&trip).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete trip"})
		return
	}

	ctx.Status(http.StatusNoContent)
}
