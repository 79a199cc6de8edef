package effectors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/plantbud/internal/types"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, channelID+":"+content)
	return &discordgo.Message{Content: content}, nil
}

func TestDiscordNotifier(t *testing.T) {
	s := &fakeSender{}
	d := &DiscordNotifier{session: s, channelID: "c1"}

	require.NoError(t, d.Notify(context.Background(), "hello", types.UrgencyNormal))
	require.NoError(t, d.Notify(context.Background(), "leaf burn", types.UrgencyHigh))
	assert.Equal(t, []string{"c1:hello", "c1:@here leaf burn"}, s.sent)

	s.sent = nil
	long := strings.Repeat("a", 1500) + "\n" + strings.Repeat("b", 1500)
	require.NoError(t, d.Notify(context.Background(), long, types.UrgencyNormal))
	require.Len(t, s.sent, 2)
	assert.Equal(t, "c1:"+strings.Repeat("a", 1500), s.sent[0])

	s.err = errors.New("boom")
	assert.ErrorContains(t, d.Notify(context.Background(), "x", types.UrgencyLow), "boom")
}

func TestTelegramNotifier(t *testing.T) {
	var got []sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = append(got, req)
		if req.Text == "fail" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"ok":false}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(srv.URL, "TOKEN", "42")
	require.NoError(t, n.Notify(context.Background(), "daily summary", types.UrgencyLow))
	require.Len(t, got, 1)
	assert.Equal(t, "42", got[0].ChatID)
	assert.True(t, got[0].DisableNotification)

	err := n.Notify(context.Background(), "fail", types.UrgencyHigh)
	assert.ErrorContains(t, err, "status 400")
}

type recordingNotifier struct {
	msgs []string
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, text string, _ types.Urgency) error {
	r.msgs = append(r.msgs, text)
	return r.err
}

func TestMulti_ContinuesPastFailure(t *testing.T) {
	a := &recordingNotifier{err: errors.New("down")}
	b := &recordingNotifier{}
	err := Multi{a, b}.Notify(context.Background(), "hi", types.UrgencyNormal)
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, []string{"hi"}, b.msgs)
}

func TestErrorMessage(t *testing.T) {
	msg := ErrorMessage(types.StageDiagnosis, errors.New("timeout"))
	assert.Equal(t, "🚨 Gemini Service Error\n\ntimeout", msg)
	assert.Contains(t, ErrorMessage(types.Stage("other"), errors.New("x")), "Main Flow Error")
}

type fakeSwitcher struct {
	calls []string
	fail  types.Actuator
}

func (f *fakeSwitcher) SetState(_ context.Context, a types.Actuator, s types.PowerState, _ []types.DeviceState) error {
	if a == f.fail {
		return types.ErrActuationFailure
	}
	f.calls = append(f.calls, string(a)+"="+string(s))
	return nil
}

func TestDeviceEffector_Apply(t *testing.T) {
	devices := []types.DeviceState{
		{ID: "l1", Actuator: types.ActuatorLighting, PowerState: "On"},
		{ID: "l2", Actuator: types.ActuatorLighting, PowerState: "On"},
		{ID: "a1", Actuator: types.ActuatorAeration, PowerState: "Off"},
	}
	decisions := []types.Decision{
		{Actuator: types.ActuatorLighting, DesiredState: types.PowerOn},
		{Actuator: types.ActuatorAeration, DesiredState: types.PowerOn},
	}

	sw := &fakeSwitcher{}
	changed, errs := NewDeviceEffector(sw).Apply(context.Background(), decisions, devices)
	assert.Empty(t, errs)
	assert.Equal(t, []types.Actuator{types.ActuatorAeration}, changed)
	assert.Equal(t, []string{"aeration=on"}, sw.calls)

	sw = &fakeSwitcher{fail: types.ActuatorAeration}
	_, errs = NewDeviceEffector(sw).Apply(context.Background(), decisions, devices)
	require.Len(t, errs, 1)
	var se *types.StageError
	require.ErrorAs(t, errs[0], &se)
	assert.Equal(t, types.ActuatorAeration, se.Actuator)
	assert.ErrorIs(t, errs[0], types.ErrActuationFailure)
}

func TestObserved_Disagreement(t *testing.T) {
	devices := []types.DeviceState{
		{Actuator: types.ActuatorLighting, PowerState: "On"},
		{Actuator: types.ActuatorLighting, PowerState: "Off"},
	}
	_, ok := Observed(types.ActuatorLighting, devices)
	assert.False(t, ok)
	_, ok = Observed(types.ActuatorAeration, devices)
	assert.False(t, ok)
}
