package membership

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/tripline-dev/tripline/internal/models"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
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

	return database
}

func createUser(t *testing.T, database *gorm.DB, username string) models.User {
	t.Helper()

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	if err := database.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}

	return user
}

func createTrip(t *testing.T, database *gorm.DB, creator models.User, title string) models.Trip {
	t.Helper()

	trip := models.Trip{
		Title:       title,
		Destination: "Porto",
		StartDate:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC),
		CreatorID:   creator.ID,
	}
	if err := database.Create(&trip).Error; err != nil {
		t.Fatalf("create trip: %v", err)
	}

	return trip
}

func addMember(t *testing.T, database *gorm.DB, user models.User, trip models.Trip, role string, status string) models.TripMember {
	t.Helper()

	member := models.TripMember{
		UserID:   user.ID,
		TripID:   trip.ID,
		Role:     role,
		Status:   status,
		JoinedAt: time.Now(),
	}
	if err := database.Create(&member).Error; err != nil {
		t.Fatalf("add member: %v", err)
	}

	return member
}

func notificationsFor(t *testing.T, database *gorm.DB, userID uint) []models.Notification {
	t.Helper()

	var notifications []models.Notification
	if err := database.Where("user_id = ?", userID).Order("id ASC").Find(&notifications).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}

	return notifications
}

func memberCount(t *testing.T, database *gorm.DB, userID uint, tripID uint) int64 {
	t.Helper()

	var count int64
	err := database.Model(&models.TripMember{}).
		Where("user_id = ? AND trip_id = ?", userID, tripID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count members: %v", err)
	}

	return count
}

func TestRequestJoinCreatesPendingAndNotifiesAdmins(t *testing.T) {
	database := newTestDB(t)
	o := New(database)

	alice := createUser(t, database, "alice")
	dave := createUser(t, database, "dave")
	bob := createUser(t, database, "bob")
	pete := createUser(t, database, "pete")
	trip := createTrip(t, database, alice, "Porto Weekend")

	addMember(t, database, alice, trip, models.RoleAdmin, models.StatusApproved)
	addMember(t, database, dave, trip, models.RoleAdmin, models.StatusApproved)
	addMember(t, database, pete, trip, models.RoleMember, models.StatusApproved)

	member, err := o.RequestJoin(bob.ID, trip.ID)
	if err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}

	if member.Role != models.RoleMember || member.Status != models.StatusPending {
		t.Fatalf("expected pending member record, got role=%q status=%q", member.Role, member.Status)
	}

	want := "bob requested to join your trip: Porto Weekend"

	for _, admin := range []models.User{alice, dave} {
		notifications := notificationsFor(t, database, admin.ID)
		if len(notifications) != 1 {
			t.Fatalf("expected 1 notification for %s, got %d", admin.Username, len(notifications))
		}
		if notifications[0].Content != want {
			t.Fatalf("unexpected notification content: %q", notifications[0].Content)
		}
	}

	// Approved non-admin members are not notified about join requests.
	if got := notificationsFor(t, database, pete.ID); len(got) != 0 {
		t.Fatalf("expected no notification for pete, got %d", len(got))
	}
}

func TestRequestJoinConflictLeavesStateUnchanged(t *testing.T) {
	database := newTestDB(t)
	o := New(database)

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	trip := createTrip(t, database, alice, "Porto Weekend")

	addMember(t, database, alice, trip, models.RoleAdmin, models.StatusApproved)

	for _, status := range []string{models.StatusPending, models.StatusApproved, models.StatusRejected} {
		t.Run(status, func(t *testing.T) {
			user := createUser(t, database, fmt.Sprintf("user-%s", status))
			addMember(t, database, user, trip, models.RoleMember, status)

			_, err := o.RequestJoin(user.ID, trip.ID)
			if !errors.Is(err, ErrAlreadyMember) {
				t.Fatalf("expected ErrAlreadyMember, got %v", err)
			}

			if count := memberCount(t, database, user.ID, trip.ID); count != 1 {
				t.Fatalf("expected 1 record, got %d", count)
			}
		})
	}

	if _, err := o.RequestJoin(bob.ID, 9999); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found for missing trip, got %v", err)
	}
}

func TestSetStatusNotifiesOnlyOnChange(t *testing.T) {
	database := newTestDB(t)
	o := New(database)

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	trip := createTrip(t, database, alice, "Porto Weekend")

	addMember(t, database, alice, trip, models.RoleAdmin, models.StatusApproved)
	member := addMember(t, database, bob, trip, models.RoleMember, models.StatusPending)

	updated, err := o.SetStatus(alice.ID, member.ID, models.StatusApproved)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.Status != models.StatusApproved {
		t.Fatalf("expected approved, got %q", updated.Status)
	}

	notifications := notificationsFor(t, database, bob.ID)
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].Content != "✅ Your request to join 'Porto Weekend' was approved!" {
		t.Fatalf("unexpected approval wording: %q", notifications[0].Content)
	}

	// Idempotent update is silent.
	if _, err := o.SetStatus(alice.ID, member.ID, models.StatusApproved); err != nil {
		t.Fatalf("SetStatus repeat: %v", err)
	}
	if got := notificationsFor(t, database, bob.ID); len(got) != 1 {
		t.Fatalf("expected no notification for idempotent update, got %d", len(got))
	}

	if _, err := o.SetStatus(alice.ID, member.ID, models.StatusRejected); err != nil {
		t.Fatalf("SetStatus reject: %v", err)
	}

	notifications = notificationsFor(t, database, bob.ID)
	if len(notifications) != 2 {
		t.Fatalf("expected 2 notifications after approve+reject, got %d", len(notifications))
	}
	if notifications[1].Content != "❌ Your request to join 'Porto Weekend' was rejected." {
		t.Fatalf("unexpected rejection wording: %q", notifications[1].Content)
	}

	// The admin got nothing throughout.
	if got := notificationsFor(t, database, alice.ID); len(got) != 0 {
		t.Fatalf("expected no notifications for admin, got %d", len(got))
	}
}

func TestSetStatusDenials(t *testing.T) {
	database := newTestDB(t)
	o := New(database)

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	carol := createUser(t, database, "carol")
	trip := createTrip(t, database, alice, "Porto Weekend")

	addMember(t, database, alice, trip, models.RoleAdmin, models.StatusApproved)
	addMember(t, database, carol, trip, models.RoleMember, models.StatusApproved)
	member := addMember(t, database, bob, trip, models.RoleMember, models.StatusPending)

	if _, err := o.SetStatus(carol.ID, member.ID, models.StatusApproved); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin for approved non-admin, got %v", err)
	}

	if _, err := o.SetStatus(alice.ID, member.ID, models.StatusPending); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	if _, err := o.SetStatus(alice.ID, 9999, models.StatusApproved); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found, got %v", err)
	}

	var unchanged models.TripMember
	if err := database.First(&unchanged, member.ID).Error; err != nil {
		t.Fatalf("reload member: %v", err)
	}
	if unchanged.Status != models.StatusPending {
		t.Fatalf("expected record unchanged, got %q", unchanged.Status)
	}
}

func TestLeave(t *testing.T) {
	database := newTestDB(t)
	o := New(database)

	alice := createUser(t, database, "alice")
	trip := createTrip(t, database, alice, "Porto Weekend")
	addMember(t, database, alice, trip, models.RoleAdmin, models.StatusApproved)

	pending := createUser(t, database, "pending-user")
	approved := createUser(t, database, "approved-user")
	rejected := createUser(t, database, "rejected-user")

	addMember(t, database, pending, trip, models.RoleMember, models.StatusPending)
	addMember(t, database, approved, trip, models.RoleMember, models.StatusApproved)
	addMember(t, database, rejected, trip, models.RoleMember, models.StatusRejected)

	if err := o.Leave(pending.ID, trip.ID); err != nil {
		t.Fatalf("leave pending: %v", err)
	}
	if count := memberCount(t, database, pending.ID, trip.ID); count != 0 {
		t.Fatalf("expected pending record deleted, got %d", count)
	}

	if err := o.Leave(approved.ID, trip.ID); err != nil {
		t.Fatalf("leave approved: %v", err)
	}

	if err := o.Leave(rejected.ID, trip.ID); !errors.Is(err, ErrNotLeavable) {
		t.Fatalf("expected ErrNotLeavable for rejected record, got %v", err)
	}
	if count := memberCount(t, database, rejected.ID, trip.ID); count != 1 {
		t.Fatalf("expected rejected record retained, got %d", count)
	}

	outsider := createUser(t, database, "outsider")
	if err := o.Leave(outsider.ID, trip.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found, got %v", err)
	}
}

func TestLeaveThenRejoin(t *testing.T) {
	database := newTestDB(t)
	o := New(database)

	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	trip := createTrip(t, database, alice, "Porto Weekend")

	addMember(t, database, alice, trip, models.RoleAdmin, models.StatusApproved)
	addMember(t, database, bob, trip, models.RoleMember, models.StatusApproved)

	if err := o.Leave(bob.ID, trip.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	// The old record is gone for good, so a fresh join request is allowed.
	member, err := o.RequestJoin(bob.ID, trip.ID)
	if err != nil {
		t.Fatalf("rejoin after leave: %v", err)
	}
	if member.Status != models.StatusPending {
		t.Fatalf("expected fresh pending record, got %q", member.Status)
	}
}
