package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/tripline-dev/tripline/db"
	"github.com/tripline-dev/tripline/internal/auth"
	"github.com/tripline-dev/tripline/internal/handlers"
	"github.com/tripline-dev/tripline/internal/models"
	"github.com/tripline-dev/tripline/internal/router"
	"github.com/tripline-dev/tripline/internal/workers"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	os.Setenv("JWT_SECRET", "test-secret")
	if err := auth.InitJWTSecret(); err != nil {
		panic(err)
	}

	pool := workers.NewPool(1)
	handlers.InitChat(pool)

	code := m.Run()

	pool.Shutdown()
	os.Exit(code)
}

func setupTest(t *testing.T) *gin.Engine {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = database.AutoMigrate(
		&models.User{},
		&models.Trip{},
		&models.TripMember{},
		&models.Message{},
		&models.Notification{},
		&models.Review{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db.DB = database

	return router.NewRouter()
}

func createUser(t *testing.T, username string) (models.User, string) {
	t.Helper()

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}

	token, err := auth.GenerateJWT(user.ID, user.Email)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	return user, token
}

func doJSON(t *testing.T, engine *gin.Engine, method string, path string, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	return recorder
}

func creatorDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func notificationCount(t *testing.T, userID uint) int64 {
	t.Helper()

	var count int64
	if err := db.DB.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}

	return count
}

func TestMembershipLifecycleOverHTTP(t *testing.T) {
	engine := setupTest(t)

	alice, aliceToken := createUser(t, "alice")
	bob, bobToken := createUser(t, "bob")

	// Alice creates a trip and becomes its approved admin atomically.
	resp := doJSON(t, engine, http.MethodPost, "/api/trips", aliceToken, gin.H{
		"title":       "Porto Weekend",
		"destination": "Porto",
		"start_date":  "2026-05-01",
		"end_date":    "2026-05-08",
		"tags":        []string{"food", "surf"},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create trip: expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}

	var trip struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &trip); err != nil {
		t.Fatalf("decode trip: %v", err)
	}

	var creatorRecord models.TripMember
	err := db.DB.Where("user_id = ? AND trip_id = ?", alice.ID, trip.ID).First(&creatorRecord).Error
	if err != nil {
		t.Fatalf("creator membership missing: %v", err)
	}
	if creatorRecord.Role != models.RoleAdmin || creatorRecord.Status != models.StatusApproved {
		t.Fatalf("expected admin/approved creator record, got %s/%s", creatorRecord.Role, creatorRecord.Status)
	}

	tripPath := fmt.Sprintf("/api/trips/%d", trip.ID)

	// Bob requests to join; Alice is notified once.
	resp = doJSON(t, engine, http.MethodPost, tripPath+"/join", bobToken, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("join: expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}
	if got := notificationCount(t, alice.ID); got != 1 {
		t.Fatalf("expected 1 notification for alice, got %d", got)
	}

	// A duplicate join request conflicts and creates nothing.
	resp = doJSON(t, engine, http.MethodPost, tripPath+"/join", bobToken, nil)
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate join: expected 409, got %d", resp.Code)
	}

	var bobRecord models.TripMember
	if err := db.DB.Where("user_id = ? AND trip_id = ?", bob.ID, trip.ID).First(&bobRecord).Error; err != nil {
		t.Fatalf("bob membership missing: %v", err)
	}

	memberPath := fmt.Sprintf("/api/members/%d", bobRecord.ID)

	// Non-admins cannot change statuses.
	resp = doJSON(t, engine, http.MethodPatch, memberPath, bobToken, gin.H{"status": "approved"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("non-admin update: expected 403, got %d", resp.Code)
	}

	// The update payload must contain the status field and nothing else.
	resp = doJSON(t, engine, http.MethodPatch, memberPath, aliceToken, gin.H{"status": "approved", "role": "admin"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("multi-field update: expected 400, got %d", resp.Code)
	}

	// Approval notifies Bob exactly once.
	resp = doJSON(t, engine, http.MethodPatch, memberPath, aliceToken, gin.H{"status": "approved"})
	if resp.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if got := notificationCount(t, bob.ID); got != 1 {
		t.Fatalf("expected 1 notification for bob, got %d", got)
	}
	if got := notificationCount(t, alice.ID); got != 1 {
		t.Fatalf("expected no additional notification for alice, got %d", got)
	}

	// Re-applying the same status is silent.
	resp = doJSON(t, engine, http.MethodPatch, memberPath, aliceToken, gin.H{"status": "approved"})
	if resp.Code != http.StatusOK {
		t.Fatalf("idempotent approve: expected 200, got %d", resp.Code)
	}
	if got := notificationCount(t, bob.ID); got != 1 {
		t.Fatalf("expected still 1 notification for bob, got %d", got)
	}

	// Bob can now read the roster.
	resp = doJSON(t, engine, http.MethodGet, tripPath+"/members", bobToken, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("roster: expected 200, got %d", resp.Code)
	}

	// Bob leaves; his record is gone and the roster denies him.
	resp = doJSON(t, engine, http.MethodDelete, tripPath+"/membership", bobToken, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("leave: expected 204, got %d", resp.Code)
	}

	resp = doJSON(t, engine, http.MethodGet, tripPath+"/members", bobToken, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("roster after leave: expected 403, got %d", resp.Code)
	}
}

func TestChatSocketRejections(t *testing.T) {
	engine := setupTest(t)

	alice, _ := createUser(t, "alice")
	_, carolToken := createUser(t, "carol")

	trip := models.Trip{
		Title:       "Alps Trek",
		Destination: "Chamonix",
		StartDate:   creatorDate(2026, 8, 1),
		EndDate:     creatorDate(2026, 8, 10),
		CreatorID:   alice.ID,
	}
	if err := db.DB.Create(&trip).Error; err != nil {
		t.Fatalf("create trip: %v", err)
	}

	member := models.TripMember{
		UserID: alice.ID, TripID: trip.ID,
		Role: models.RoleAdmin, Status: models.StatusApproved,
		JoinedAt: creatorDate(2026, 1, 1),
	}
	if err := db.DB.Create(&member).Error; err != nil {
		t.Fatalf("create member: %v", err)
	}

	wsPath := fmt.Sprintf("/api/ws/trips/%d", trip.ID)

	// No extractable credential: rejected before any registry join.
	resp := doJSON(t, engine, http.MethodGet, wsPath, "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("no credential: expected 401, got %d", resp.Code)
	}

	// Garbage credential.
	resp = doJSON(t, engine, http.MethodGet, wsPath+"?token=garbage", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("invalid credential: expected 401, got %d", resp.Code)
	}

	// Valid identity without an approved membership.
	resp = doJSON(t, engine, http.MethodGet, wsPath+"?token="+carolToken, "", nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("non-member: expected 403, got %d", resp.Code)
	}

	if got := handlers.ChatRegistry().Count(trip.ID); got != 0 {
		t.Fatalf("expected no registered sessions after rejections, got %d", got)
	}
}

func TestReviewEligibilityOverHTTP(t *testing.T) {
	engine := setupTest(t)

	alice, aliceToken := createUser(t, "alice")
	_, carolToken := createUser(t, "carol")

	// A trip that ended long ago.
	past := models.Trip{
		Title:       "Rome 2020",
		Destination: "Rome",
		StartDate:   creatorDate(2020, 2, 1),
		EndDate:     creatorDate(2020, 2, 8),
		CreatorID:   alice.ID,
	}
	if err := db.DB.Create(&past).Error; err != nil {
		t.Fatalf("create trip: %v", err)
	}
	member := models.TripMember{
		UserID: alice.ID, TripID: past.ID,
		Role: models.RoleAdmin, Status: models.StatusApproved,
		JoinedAt: creatorDate(2020, 1, 1),
	}
	if err := db.DB.Create(&member).Error; err != nil {
		t.Fatalf("create member: %v", err)
	}

	reviewPath := fmt.Sprintf("/api/trips/%d/reviews", past.ID)

	// Non-members get the precise reason.
	resp := doJSON(t, engine, http.MethodPost, reviewPath, carolToken, gin.H{"rating": 4})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("non-member review: expected 403, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("not-member")) {
		t.Fatalf("expected not-member reason, got %s", resp.Body.String())
	}

	// First review succeeds.
	resp = doJSON(t, engine, http.MethodPost, reviewPath, aliceToken, gin.H{"rating": 5, "comment": "great"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("review: expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}

	// Second attempt by the same reviewer is refused.
	resp = doJSON(t, engine, http.MethodPost, reviewPath, aliceToken, gin.H{"rating": 3})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("duplicate review: expected 403, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("already-reviewed")) {
		t.Fatalf("expected already-reviewed reason, got %s", resp.Body.String())
	}

	// A trip that has not ended cannot be reviewed.
	future := models.Trip{
		Title:       "Tokyo 2199",
		Destination: "Tokyo",
		StartDate:   creatorDate(2199, 2, 1),
		EndDate:     creatorDate(2199, 2, 8),
		CreatorID:   alice.ID,
	}
	if err := db.DB.Create(&future).Error; err != nil {
		t.Fatalf("create trip: %v", err)
	}
	futureMember := models.TripMember{
		UserID: alice.ID, TripID: future.ID,
		Role: models.RoleAdmin, Status: models.StatusApproved,
		JoinedAt: creatorDate(2199, 1, 1),
	}
	if err := db.DB.Create(&futureMember).Error; err != nil {
		t.Fatalf("create member: %v", err)
	}

	resp = doJSON(t, engine, http.MethodPost, fmt.Sprintf("/api/trips/%d/reviews", future.ID), aliceToken, gin.H{"rating": 5})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("unfinished trip review: expected 403, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("not-ended")) {
		t.Fatalf("expected not-ended reason, got %s", resp.Body.String())
	}
}
