package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	bridge "daikin_bridge"
)

func newSnapshotMock(t *testing.T) (*SnapshotSQLite, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return NewSnapshotSQLite(db), mock, func() { _ = db.Close() }
}

func TestSnapshotSave(t *testing.T) {
	repo, mock, closeDB := newSnapshotMock(t)
	defer closeDB()

	fetched := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO device_snapshot").
		WithArgs(1, true, bridge.ModeCool, 21.5, bridge.FanAuto, bridge.SwingOff,
			`{"inside_temp":23}`, fetched).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Save(context.Background(), bridge.DeviceSnapshot{
		Power:             true,
		Mode:              bridge.ModeCool,
		TargetTemperature: 21.5,
		FanMode:           bridge.FanAuto,
		SwingMode:         bridge.SwingOff,
		SensorReadings:    map[string]float64{bridge.SensorInsideTemp: 23},
		FetchedAt:         fetched,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSnapshotSaveStampsMissingTime(t *testing.T) {
	repo, mock, closeDB := newSnapshotMock(t)
	defer closeDB()

	mock.ExpectExec("INSERT INTO device_snapshot").
		WithArgs(1, false, bridge.ModeOff, 0.0, "", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), bridge.DeviceSnapshot{Mode: bridge.ModeOff}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSnapshotLoad(t *testing.T) {
	repo, mock, closeDB := newSnapshotMock(t)
	defer closeDB()

	fetched := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"power", "mode", "target_c", "fan_mode", "swing_mode", "sensors", "fetched_at"}).
		AddRow(true, bridge.ModeHeat, 24.0, bridge.FanQuiet, bridge.SwingVertical, `{"humidity":50}`, fetched)
	mock.ExpectQuery("SELECT power, mode, target_c, fan_mode, swing_mode, sensors, fetched_at").
		WithArgs(1).
		WillReturnRows(rows)

	snap, ok, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected a persisted snapshot")
	}
	if snap.Mode != bridge.ModeHeat || snap.TargetTemperature != 24 {
		t.Errorf("snapshot = %+v", snap)
	}
	if got := snap.SensorReadings[bridge.SensorHumidity]; got != 50 {
		t.Errorf("humidity = %v", got)
	}
	if !snap.FetchedAt.Equal(fetched) {
		t.Errorf("fetched_at = %v", snap.FetchedAt)
	}
}

func TestSnapshotLoadEmpty(t *testing.T) {
	repo, mock, closeDB := newSnapshotMock(t)
	defer closeDB()

	mock.ExpectQuery("SELECT power, mode").WithArgs(1).WillReturnError(sql.ErrNoRows)

	_, ok, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("empty table must report ok=false")
	}
}
