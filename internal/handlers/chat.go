package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tripline-dev/tripline/db"
	"github.com/tripline-dev/tripline/internal/auth"
	"github.com/tripline-dev/tripline/internal/chat"
	"github.com/tripline-dev/tripline/internal/guard"
	"github.com/tripline-dev/tripline/internal/models"
	"github.com/tripline-dev/tripline/internal/types"
	"github.com/tripline-dev/tripline/internal/utils"
	"github.com/tripline-dev/tripline/internal/workers"
)

var (
	chatRegistry = chat.NewRegistry()
	chatPool     *workers.Pool
)

// InitChat wires the shared worker pool into the chat handler. Must be
// called once before the router starts serving.
func InitChat(pool *workers.Pool) {
	chatPool = pool
}

// ChatRegistry exposes the room registry so membership tooling and tests
// can observe it.
func ChatRegistry() *chat.Registry {
	return chatRegistry
}

var chatUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range types.AllowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	},
}

// ChatSocket authenticates and authorizes a realtime connection, then hands
// it to a chat session. Failures reject the connection silently, before any
// registry join. Membership is checked once here, at connect time: an admin
// rejecting or removing a member does not terminate that member's open
// connection.
func ChatSocket(ctx *gin.Context) {
	tripID, err := utils.GetTripID(ctx)

	if err != nil {
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}

	token, found := chat.ExtractCredential(ctx.Request)

	if !found {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	userID, err := auth.ParseUserID(token)

	if err != nil {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var user models.User

	if err := db.DB.First(&user, userID).Error; err != nil {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var trip models.Trip

	if err := db.DB.First(&trip, tripID).Error; err != nil {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	approved, err := guard.New(db.DB).IsApprovedMember(user.ID, trip.ID)

	if err != nil {
		log.Printf("Failed to check membership for trip %d: %v", trip.ID, err)
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	if !approved {
		ctx.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := chatUpgrader.Upgrade(ctx.Writer, ctx.Request, nil)

	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	session := chat.NewSession(conn, chatRegistry, chatPool, db.DB, trip.ID, user, trip.Title)
	session.Run()
}
