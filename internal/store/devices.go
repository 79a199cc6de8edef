package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/vthunder/plantbud/internal/types"
)

// DeviceReading is one row of the device log
type DeviceReading struct {
	Timestamp   time.Time           `json:"timestamp"`
	Temperature *float64            `json:"temperature,omitempty"`
	Humidity    *float64            `json:"humidity,omitempty"`
	Devices     []types.DeviceState `json:"devices"`
	Comments    []string            `json:"comments,omitempty"`
}

// Environment returns the sensor part of the reading
func (d DeviceReading) Environment() types.EnvironmentReading {
	return types.EnvironmentReading{Temperature: d.Temperature, Humidity: d.Humidity}
}

// AppendDeviceReading logs the device snapshot taken at the start of a cycle
func (s *DB) AppendDeviceReading(ctx context.Context, r DeviceReading) error {
	devices, err := json.Marshal(r.Devices)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO device_readings (ts, temperature, humidity, devices, comments)
		VALUES (?, ?, ?, ?, ?)`,
		r.Timestamp.UTC(), nullFloat(r.Temperature), nullFloat(r.Humidity),
		string(devices), strings.Join(r.Comments, "\n"))
	return err
}

// LatestDeviceReading returns the newest reading, or nil when none exists
func (s *DB) LatestDeviceReading(ctx context.Context) (*DeviceReading, error) {
	var (
		r                 DeviceReading
		temp, hum         sql.NullFloat64
		devices, comments sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT ts, temperature, humidity, devices, comments
		FROM device_readings ORDER BY id DESC LIMIT 1`).
		Scan(&r.Timestamp, &temp, &hum, &devices, &comments)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Temperature = floatPtr(temp)
	r.Humidity = floatPtr(hum)
	if devices.String != "" {
		if err := json.Unmarshal([]byte(devices.String), &r.Devices); err != nil {
			return nil, err
		}
	}
	if comments.String != "" {
		r.Comments = strings.Split(comments.String, "\n")
	}
	return &r, nil
}
