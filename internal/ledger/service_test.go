package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tmarchetti/brickfolio-backend/pkg/db/models"
	"github.com/tmarchetti/brickfolio-backend/pkg/enums"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:ledger_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  stripe_subscription_id TEXT NOT NULL,
  stripe_customer_id TEXT NOT NULL,
  user_id TEXT,
  status TEXT NOT NULL DEFAULT 'incomplete',
  current_period_start DATETIME,
  current_period_end DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	subIdx := `CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_stripe_subscription_id ON subscriptions(stripe_subscription_id);`
	profiles := `
CREATE TABLE IF NOT EXISTS profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  email TEXT NOT NULL,
  stripe_customer_id TEXT,
  subscription_status TEXT NOT NULL DEFAULT 'inactive',
  created_at DATETIME,
  updated_at DATETIME
);`
	profileIdx := `CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_user_id ON profiles(user_id);`

	for _, stmt := range []string{subscriptions, subIdx, profiles, profileIdx} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newTestLedger(t *testing.T, db *gorm.DB) (*Service, *Repository) {
	t.Helper()
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func activeSnapshot(subID, custID string) Snapshot {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return Snapshot{
		SubscriptionID:     subID,
		CustomerID:         custID,
		Status:             enums.SubscriptionStatusActive,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}
}

func TestRecord_ReplayedSnapshotKeepsOneRow(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc, repo := newTestLedger(t, db)
	ctx := context.Background()
	userID := uuid.New()

	snap := activeSnapshot("sub_1", "cus_1")
	require.NoError(t, svc.Record(ctx, snap, &userID))
	require.NoError(t, svc.Record(ctx, snap, &userID))

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	stored, err := repo.FindBySubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, enums.SubscriptionStatusActive, stored.Status)
}

func TestRecord_LastSnapshotWins(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc, repo := newTestLedger(t, db)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, activeSnapshot("sub_1", "cus_1"), nil))

	canceled := activeSnapshot("sub_1", "cus_1")
	canceled.Status = enums.SubscriptionStatusCanceled
	require.NoError(t, svc.Record(ctx, canceled, nil))

	stored, err := repo.FindBySubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	require.Equal(t, enums.SubscriptionStatusCanceled, stored.Status)
}

func TestRecord_UserLinkIsMonotonic(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc, repo := newTestLedger(t, db)
	ctx := context.Background()
	userID := uuid.New()

	// Unlinked first, then linked, then a late event without linkage.
	require.NoError(t, svc.Record(ctx, activeSnapshot("sub_1", "cus_1"), nil))

	stored, err := repo.FindBySubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	require.Nil(t, stored.UserID)

	require.NoError(t, svc.Record(ctx, activeSnapshot("sub_1", "cus_1"), &userID))
	stored, err = repo.FindBySubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, stored.UserID)
	require.Equal(t, userID, *stored.UserID)

	require.NoError(t, svc.Record(ctx, activeSnapshot("sub_1", "cus_1"), nil))
	stored, err = repo.FindBySubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, stored.UserID, "established link must never be nulled")
	require.Equal(t, userID, *stored.UserID)
}

func TestRecord_ProjectsProfileStatusByUserID(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc, _ := newTestLedger(t, db)
	ctx := context.Background()
	userID := uuid.New()

	custID := "cus_1"
	profile := models.Profile{
		ID:                 uuid.New(),
		UserID:             userID,
		Email:              "user@example.com",
		StripeCustomerID:   &custID,
		SubscriptionStatus: enums.ProfileSubscriptionInactive,
	}
	require.NoError(t, db.Create(&profile).Error)

	require.NoError(t, svc.Record(ctx, activeSnapshot("sub_1", custID), &userID))

	var refreshed models.Profile
	require.NoError(t, db.First(&refreshed, "user_id = ?", userID).Error)
	require.Equal(t, enums.ProfileSubscriptionActive, refreshed.SubscriptionStatus)
}

func TestRecord_LifecycleProjectsByCustomerID(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc, _ := newTestLedger(t, db)
	ctx := context.Background()
	userID := uuid.New()

	custID := "cus_1"
	profile := models.Profile{
		ID:                 uuid.New(),
		UserID:             userID,
		Email:              "user@example.com",
		StripeCustomerID:   &custID,
		SubscriptionStatus: enums.ProfileSubscriptionActive,
	}
	require.NoError(t, db.Create(&profile).Error)

	canceled := activeSnapshot("sub_1", custID)
	canceled.Status = enums.SubscriptionStatusCanceled
	require.NoError(t, svc.Record(ctx, canceled, nil))

	var refreshed models.Profile
	require.NoError(t, db.First(&refreshed, "user_id = ?", userID).Error)
	require.Equal(t, enums.ProfileSubscriptionInactive, refreshed.SubscriptionStatus)
}

func TestRecord_RejectsInvalidSnapshot(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc, _ := newTestLedger(t, db)
	ctx := context.Background()

	err := svc.Record(ctx, Snapshot{CustomerID: "cus_1", Status: enums.SubscriptionStatusActive}, nil)
	require.Error(t, err, "missing subscription id")

	err = svc.Record(ctx, Snapshot{SubscriptionID: "sub_1", Status: enums.SubscriptionStatus("nonsense")}, nil)
	require.Error(t, err, "unknown status")
}

func TestDeleteByUserID_RemovesLinkedRows(t *testing.T) {
	db := setupLedgerTestDB(t)
	svc, repo := newTestLedger(t, db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, svc.Record(ctx, activeSnapshot("sub_1", "cus_1"), &userID))
	require.NoError(t, svc.Record(ctx, activeSnapshot("sub_other", "cus_other"), nil))

	require.NoError(t, repo.DeleteByUserID(ctx, userID))

	gone, err := repo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	require.Nil(t, gone)

	still, err := repo.FindBySubscriptionID(ctx, "sub_other")
	require.NoError(t, err)
	require.NotNil(t, still, "unlinked rows stay untouched")
}
