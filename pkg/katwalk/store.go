package katwalk

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/robotalks/katwalk/pkg/l0/comm"
)

//go:embed schema.sql
var schemaSQL string

const angleZeroKey = "angle_zero"

// Store persists the latest sensor metadata and the heading reference
// so a new session starts with known sensors.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the SQLite database at path.
func OpenStore(path string) (*Store, error) {
	dsn := path
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		dsn = "file:" + path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// a single connection keeps :memory: databases alive and serializes writes.
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const upsertSensorSQL = `
INSERT INTO sensors (slot, sensor_id, version, charging, charge, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET
    sensor_id = excluded.sensor_id,
    version = excluded.version,
    charging = excluded.charging,
    charge = excluded.charge,
    updated_at = excluded.updated_at`

// SaveSensor records the metadata of a configured sensor slot.
func (s *Store) SaveSensor(kind comm.SensorKind, info comm.SensorInfo, at time.Time) error {
	if kind == comm.SensorNone || !info.Configured() {
		return fmt.Errorf("sensor %s not configured", kind)
	}
	if _, err := s.db.Exec(upsertSensorSQL,
		kind.String(), info.ID, info.Version, info.Charging, info.Charge, at.UnixMilli()); err != nil {
		return fmt.Errorf("saving sensor %s: %w", kind, err)
	}
	return nil
}

const selectSensorsSQL = `
SELECT slot, sensor_id, version, charging, charge
FROM sensors`

// LoadSensors returns the recorded metadata per slot.
func (s *Store) LoadSensors() (infos map[comm.SensorKind]comm.SensorInfo, err error) {
	rows, err := s.db.Query(selectSensorsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying sensors: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	infos = make(map[comm.SensorKind]comm.SensorInfo)
	for rows.Next() {
		var slot string
		var info comm.SensorInfo
		if err = rows.Scan(&slot, &info.ID, &info.Version, &info.Charging, &info.Charge); err != nil {
			return nil, fmt.Errorf("scanning sensor: %w", err)
		}
		if kind := sensorKindByName(slot); kind != comm.SensorNone {
			infos[kind] = info
		}
	}
	return infos, rows.Err()
}

func sensorKindByName(name string) comm.SensorKind {
	for _, kind := range []comm.SensorKind{comm.SensorDirection, comm.SensorLeftFoot, comm.SensorRightFoot} {
		if kind.String() == name {
			return kind
		}
	}
	return comm.SensorNone
}

const upsertCalibrationSQL = `
INSERT INTO calibration (name, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
    value = excluded.value,
    updated_at = excluded.updated_at`

// SaveAngleZero records the heading reference.
func (s *Store) SaveAngleZero(deg float64, at time.Time) error {
	if _, err := s.db.Exec(upsertCalibrationSQL, angleZeroKey, deg, at.UnixMilli()); err != nil {
		return fmt.Errorf("saving angle zero: %w", err)
	}
	return nil
}

// LoadAngleZero returns the recorded heading reference, ok is false if
// never recorded.
func (s *Store) LoadAngleZero() (deg float64, ok bool, err error) {
	err = s.db.QueryRow(`SELECT value FROM calibration WHERE name = ?`, angleZeroKey).Scan(&deg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("loading angle zero: %w", err)
	}
	return deg, true, nil
}

// RestoreInto applies recorded state to a new Engine.
func (s *Store) RestoreInto(engine *comm.Engine) error {
	infos, err := s.LoadSensors()
	if err != nil {
		return err
	}
	for kind, info := range infos {
		engine.Restore(kind, info)
	}
	deg, ok, err := s.LoadAngleZero()
	if err != nil {
		return err
	}
	if ok {
		engine.SetAngleZero(deg)
	}
	return nil
}
