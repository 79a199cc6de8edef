// Package sinric talks to the Sinric Pro REST API: it lists the indoor garden
// devices with their sensor values and switches actuators on and off.
package sinric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vthunder/plantbud/internal/logging"
	"github.com/vthunder/plantbud/internal/types"
)

// DefaultBaseURL is the hosted Sinric Pro API
const DefaultBaseURL = "https://api.sinric.pro/api/v1"

// tokens are reused for this long before re-authenticating
const tokenTTL = 30 * time.Minute

// Config identifies the account and devices to control
type Config struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	// Group filters devices by name substring
	Group    string                    `mapstructure:"group"`
	Devices  map[string]types.Actuator `mapstructure:"devices"` // device ID -> actuator
	SensorID string                    `mapstructure:"sensor_id"`
}

// Client is a Sinric Pro API client
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient creates a client. Callers pass a context with their own deadline
// on every call; the http timeout is only a backstop.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type apiDevice struct {
	ID          string   `json:"id"`
	DeviceID    string   `json:"deviceId"`
	Name        string   `json:"name"`
	PowerState  string   `json:"powerState"`
	IsOnline    bool     `json:"isOnline"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// ListDevices returns the devices of the configured group
func (c *Client) ListDevices(ctx context.Context) ([]types.DeviceState, error) {
	var resp struct {
		Devices []apiDevice `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/devices", nil, &resp); err != nil {
		return nil, err
	}

	out := []types.DeviceState{}
	for _, d := range resp.Devices {
		if c.cfg.Group != "" && !strings.Contains(d.Name, c.cfg.Group) {
			continue
		}
		id := d.ID
		if id == "" {
			id = d.DeviceID
		}
		power := d.PowerState
		if power == "" {
			power = "Off"
		}
		out = append(out, types.DeviceState{
			ID:          id,
			Name:        d.Name,
			Actuator:    c.classify(id, d),
			PowerState:  power,
			Online:      d.IsOnline,
			Temperature: d.Temperature,
			Humidity:    d.Humidity,
		})
	}
	logging.Debug("sinric", "%d devices in group %q", len(out), c.cfg.Group)
	return out, nil
}

// classify maps a device to an actuator. Configured IDs win; otherwise the
// name decides. Sensors return "".
func (c *Client) classify(id string, d apiDevice) types.Actuator {
	if a, ok := c.cfg.Devices[id]; ok {
		return a
	}
	if id == c.cfg.SensorID || d.Temperature != nil || d.Humidity != nil {
		return ""
	}
	name := strings.ToLower(d.Name)
	switch {
	case strings.Contains(name, "sensor"):
		return ""
	case strings.Contains(name, "light"), strings.Contains(name, "luz"), strings.Contains(name, "iluminacion"):
		return types.ActuatorLighting
	case strings.Contains(name, "aeration"), strings.Contains(name, "ventilacion"):
		return types.ActuatorAeration
	}
	return ""
}

// Reading extracts the environment from the sensor device, falling back to
// the first device reporting a value.
func (c *Client) Reading(devices []types.DeviceState) types.EnvironmentReading {
	var env types.EnvironmentReading
	for _, d := range devices {
		if d.ID == c.cfg.SensorID {
			return types.EnvironmentReading{Temperature: d.Temperature, Humidity: d.Humidity}
		}
	}
	for _, d := range devices {
		if env.Temperature == nil {
			env.Temperature = d.Temperature
		}
		if env.Humidity == nil {
			env.Humidity = d.Humidity
		}
	}
	return env
}

// SetPowerState switches one device
func (c *Client) SetPowerState(ctx context.Context, deviceID string, state types.PowerState) error {
	if deviceID == "" {
		return fmt.Errorf("empty device id")
	}
	value, _ := json.Marshal(map[string]string{"state": wireState(state)})
	body := map[string]string{
		"type":   "request",
		"action": "setPowerState",
		"value":  string(value),
	}
	return c.do(ctx, http.MethodPost, "/devices/"+deviceID+"/action", body, nil)
}

// SetState switches every device bound to actuator. It is a no-op success
// for devices that already report the desired state.
func (c *Client) SetState(ctx context.Context, actuator types.Actuator, state types.PowerState, current []types.DeviceState) error {
	var errs []error
	found := false
	for _, d := range current {
		if d.Actuator != actuator {
			continue
		}
		found = true
		if strings.EqualFold(d.PowerState, wireState(state)) {
			continue
		}
		if err := c.SetPowerState(ctx, d.ID, state); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
			continue
		}
		logging.Info("sinric", "%s => %s", d.Name, wireState(state))
	}
	if !found {
		errs = append(errs, fmt.Errorf("no device bound to %s", actuator))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrActuationFailure, errors.Join(errs...))
	}
	return nil
}

func wireState(s types.PowerState) string {
	if s == types.PowerOn {
		return "On"
	}
	return "Off"
}

// --- HTTP helpers ---

func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/auth", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("x-sinric-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", parseError("auth", resp)
	}

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("no accessToken received")
	}
	c.token = out.AccessToken
	c.tokenExp = time.Now().Add(tokenTTL)
	return c.token, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	token, err := c.authenticate(ctx)
	if err != nil {
		return err
	}

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidate()
	}
	if resp.StatusCode != http.StatusOK {
		return parseError(path, resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func parseError(what string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Errorf("sinric %s error [%s]: %s", what, resp.Status, apiErr.Message)
	}
	return fmt.Errorf("sinric %s error [%s]: %s", what, resp.Status, string(body))
}
