package utils

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetTripID(ctx *gin.Context) (uint, error) {
	return getIDParam(ctx, "trip_id", "Trip")
}

func GetMemberID(ctx *gin.Context) (uint, error) {
	return getIDParam(ctx, "member_id", "Member")
}

func GetNotificationID(ctx *gin.Context) (uint, error) {
	return getIDParam(ctx, "notification_id", "Notification")
}

func GetReviewID(ctx *gin.Context) (uint, error) {
	return getIDParam(ctx, "review_id", "Review")
}

func getIDParam(ctx *gin.Context, name string, label string) (uint, error) {
	idStr := ctx.Param(name)

	if idStr == "" {
		return 0, errors.New(label + " ID not found")
	}

	id, err := strconv.ParseUint(idStr, 10, 32)

	if err != nil {
		return 0, errors.New("Invalid " + label + " ID")
	}

	return uint(id), nil
}
