package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	bridge "daikin_bridge"
)

type SnapshotSQLite struct {
	db *sql.DB
}

func NewSnapshotSQLite(db *sql.DB) *SnapshotSQLite {
	return &SnapshotSQLite{db: db}
}

var _ SnapshotRepo = (*SnapshotSQLite)(nil)

const (
	snapshotRowID = 1

	upsertSnapshotSQL = `
		INSERT INTO device_snapshot (id, power, mode, target_c, fan_mode, swing_mode, sensors, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			power=excluded.power,
			mode=excluded.mode,
			target_c=excluded.target_c,
			fan_mode=excluded.fan_mode,
			swing_mode=excluded.swing_mode,
			sensors=excluded.sensors,
			fetched_at=excluded.fetched_at
	`

	selectSnapshotSQL = `
		SELECT power, mode, target_c, fan_mode, swing_mode, sensors, fetched_at
		FROM device_snapshot WHERE id=?
	`
)

func marshalSensors(readings map[string]float64) (string, error) {
	if len(readings) == 0 {
		return "", nil
	}
	b, err := json.Marshal(readings)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalSensors(s string) (map[string]float64, error) {
	if s == "" {
		return nil, nil
	}
	var readings map[string]float64
	if err := json.Unmarshal([]byte(s), &readings); err != nil {
		return nil, err
	}
	return readings, nil
}

// Save upserts the device_snapshot row (id always 1).
func (r *SnapshotSQLite) Save(ctx context.Context, s bridge.DeviceSnapshot) error {
	sensorsJSON, err := marshalSensors(s.SensorReadings)
	if err != nil {
		return err
	}

	ts := s.FetchedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	_, err = r.db.ExecContext(ctx, upsertSnapshotSQL,
		snapshotRowID,
		s.Power,
		s.Mode,
		s.TargetTemperature,
		s.FanMode,
		s.SwingMode,
		sensorsJSON,
		ts,
	)
	return err
}

// Load fetches the persisted snapshot. ok is false when nothing has
// been saved yet.
func (r *SnapshotSQLite) Load(ctx context.Context) (bridge.DeviceSnapshot, bool, error) {
	row := r.db.QueryRowContext(ctx, selectSnapshotSQL, snapshotRowID)

	var s bridge.DeviceSnapshot
	var sensorsJSON string
	if err := row.Scan(
		&s.Power,
		&s.Mode,
		&s.TargetTemperature,
		&s.FanMode,
		&s.SwingMode,
		&sensorsJSON,
		&s.FetchedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bridge.DeviceSnapshot{}, false, nil
		}
		return bridge.DeviceSnapshot{}, false, err
	}

	readings, err := unmarshalSensors(sensorsJSON)
	if err != nil {
		return bridge.DeviceSnapshot{}, false, err
	}
	s.SensorReadings = readings
	s.FetchedAt = s.FetchedAt.UTC()

	return s, true, nil
}
