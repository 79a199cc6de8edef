package sinric

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/plantbud/internal/types"
)

const devicesJSON = `{"devices":[
 {"id":"l1","name":"Indoor Garden Light 1","powerState":"On","isOnline":true},
 {"id":"l2","name":"Indoor Garden Luz 2","isOnline":true},
 {"id":"a1","name":"Indoor Garden Ventilacion","powerState":"Off","isOnline":false},
 {"id":"s1","name":"Indoor Garden Sensor","temperature":22.5,"humidity":61},
 {"id":"x9","name":"Kitchen Light","powerState":"On"}
]}`

type fakeAPI struct {
	auths   atomic.Int32
	actions []map[string]string
	failOn  string
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth":
			assert.Equal(t, "key", r.Header.Get("x-sinric-api-key"))
			f.auths.Add(1)
			w.Write([]byte(`{"accessToken":"tok"}`))
		case r.Header.Get("Authorization") != "Bearer tok":
			w.WriteHeader(http.StatusUnauthorized)
		case r.URL.Path == "/devices":
			w.Write([]byte(devicesJSON))
		case r.URL.Path == "/devices/"+f.failOn+"/action":
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"message":"device offline"}`))
		default:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			body["path"] = r.URL.Path
			f.actions = append(f.actions, body)
			w.Write([]byte(`{"success":true}`))
		}
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:  srv.URL,
		APIKey:   "key",
		Group:    "Indoor Garden",
		Devices:  map[string]types.Actuator{"a1": types.ActuatorAeration},
		SensorID: "s1",
	})
}

func TestListDevices(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	ctx := context.Background()

	devices, err := c.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 4)

	byID := map[string]types.DeviceState{}
	for _, d := range devices {
		byID[d.ID] = d
	}
	assert.Equal(t, types.ActuatorLighting, byID["l1"].Actuator)
	assert.Equal(t, types.ActuatorLighting, byID["l2"].Actuator)
	assert.Equal(t, "Off", byID["l2"].PowerState)
	assert.Equal(t, types.ActuatorAeration, byID["a1"].Actuator)
	assert.Empty(t, byID["s1"].Actuator)

	env := c.Reading(devices)
	require.NotNil(t, env.Temperature)
	assert.Equal(t, 22.5, *env.Temperature)
	assert.Equal(t, 61.0, *env.Humidity)

	_, err = c.ListDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.auths.Load(), "token should be reused")
}

func TestSetState_OnlyChangesDifferingDevices(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	ctx := context.Background()

	devices, err := c.ListDevices(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetState(ctx, types.ActuatorLighting, types.PowerOn, devices))

	require.Len(t, api.actions, 1)
	assert.Equal(t, "/devices/l2/action", api.actions[0]["path"])
	assert.Equal(t, "setPowerState", api.actions[0]["action"])
	assert.Equal(t, `{"state":"On"}`, api.actions[0]["value"])
}

func TestSetState_Failure(t *testing.T) {
	api := &fakeAPI{failOn: "a1"}
	c := newTestClient(t, api)
	ctx := context.Background()

	devices, err := c.ListDevices(ctx)
	require.NoError(t, err)
	err = c.SetState(ctx, types.ActuatorAeration, types.PowerOn, devices)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrActuationFailure))
	assert.ErrorContains(t, err, "device offline")

	err = c.SetState(ctx, types.Actuator("heating"), types.PowerOn, devices)
	assert.ErrorContains(t, err, "no device bound")
}

func TestAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"bad key"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).ListDevices(context.Background())
	assert.ErrorContains(t, err, "bad key")
}
