package alertdb

import (
	"os"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *AlertDB {
	t.Helper()
	os.Remove("test_alertdb.sqlite")
	db, err := Open(logs.NewTestingLog(t), "test_alertdb.sqlite")
	require.NoError(t, err)
	t.Cleanup(func() {
		os.Remove("test_alertdb.sqlite")
		os.Remove("test_alertdb.sqlite-shm")
		os.Remove("test_alertdb.sqlite-wal")
	})
	return db
}

func TestAddAndList(t *testing.T) {
	db := setup(t)

	alerts, err := db.ListAlerts("", 0)
	require.NoError(t, err)
	require.Empty(t, alerts)

	base := time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC)
	require.NoError(t, db.AddAlert("Unwanted Pose Detected (Drinking)", "driver@example.com", "screenshots/driver@example.com_20250309_143000.jpg", base))
	require.NoError(t, db.AddAlert("Unwanted Pose Detected (Phone (Left Hand))", "driver@example.com", "screenshots/driver@example.com_20250309_143012.jpg", base.Add(12*time.Second)))

	// Newest first
	alerts, err = db.ListAlerts("", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	require.Contains(t, alerts[0].AlertType, "Phone (Left Hand)")
	require.Contains(t, alerts[1].AlertType, "Drinking")

	shots, err := db.ListScreenshots("", 0)
	require.NoError(t, err)
	require.Len(t, shots, 2)
	require.Contains(t, shots[0].ImagePath, "143012")

	// Alert and screenshot pair share type, subject and timestamp
	require.Equal(t, alerts[0].AlertType, shots[0].AlertType)
	require.Equal(t, alerts[0].UserEmail, shots[0].UserEmail)
	require.Equal(t, alerts[0].Timestamp, shots[0].Timestamp)

	shot, err := db.GetScreenshot(shots[0].ID)
	require.NoError(t, err)
	require.Equal(t, shots[0].ImagePath, shot.ImagePath)
}

func TestListBySubject(t *testing.T) {
	db := setup(t)
	base := time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC)
	require.NoError(t, db.AddAlert("Unwanted Pose Detected (Makeup)", "one@example.com", "screenshots/a.jpg", base))
	require.NoError(t, db.AddAlert("Unwanted Pose Detected (Makeup)", "two@example.com", "screenshots/b.jpg", base.Add(time.Minute)))

	alerts, err := db.ListAlerts("one@example.com", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, "one@example.com", alerts[0].UserEmail)

	shots, err := db.ListScreenshots("two@example.com", 0)
	require.NoError(t, err)
	require.Len(t, shots, 1)
	require.Equal(t, "screenshots/b.jpg", shots[0].ImagePath)
}

func TestListLimit(t *testing.T) {
	db := setup(t)
	base := time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.AddAlert("Unwanted Pose Detected (Looking Away)", "driver@example.com", "screenshots/x.jpg", base.Add(time.Duration(i)*time.Minute)))
	}
	alerts, err := db.ListAlerts("", 3)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	require.True(t, alerts[0].Timestamp >= alerts[1].Timestamp)
	require.True(t, alerts[1].Timestamp >= alerts[2].Timestamp)
}
