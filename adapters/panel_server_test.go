package adapters

import (
	"encoding/json"
	"fmt"
	"mqtt-light-panel/application"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPanelServer(t *testing.T, publisher application.Publisher) *PanelServer {
	panel, err := application.NewPanel(application.PanelParams{Publisher: publisher})
	require.NoError(t, err)

	server, err := NewPanelServer(PanelServerParams{
		Addr:     ":0",
		Panel:    panel,
		Defaults: application.DefaultPanelForm(),
		Status:   publisher.Status,
	})
	require.NoError(t, err)
	return server
}

func submit(t *testing.T, h http.Handler, action string, analog string) *httptest.ResponseRecorder {
	form := url.Values{
		"host":         {" 127.0.0.1 "},
		"port":         {"1883"},
		"client_id":    {"streamlit-pub"},
		"switch_topic": {"cmqtt_s"},
		"analog_topic": {"cmqtt_a"},
		"analog":       {analog},
		"action":       {action},
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewPanelServer_NoPanel(t *testing.T) {
	server, err := NewPanelServer(PanelServerParams{Addr: ":8501"})
	require.Error(t, err)
	require.Nil(t, server)
}

func TestPanelServer_Index(t *testing.T) {
	server := newTestPanelServer(t, &stubPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	body := w.Body.String()
	for _, want := range []string{"<!DOCTYPE html>", "157.230.214.127", "1883", "streamlit-pub", "cmqtt_s", "cmqtt_a", "50.0"} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, `class="alert`)
	assert.NotContains(t, body, `id="last-payload"`)
}

func TestPanelServer_UnknownPath(t *testing.T) {
	server := newTestPanelServer(t, &stubPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPanelServer_SwitchOnThenOff(t *testing.T) {
	publisher := &stubPublisher{}
	server := newTestPanelServer(t, publisher)
	h := server.Handler()

	w := submit(t, h, ActionSwitchOn, "50")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `class="alert alert-success"`)

	w = submit(t, h, ActionSwitchOff, "50")
	require.Equal(t, http.StatusOK, w.Code)

	st := server.State()
	require.NotNil(t, st.Result)
	assert.True(t, st.Result.OK)
	assert.Equal(t, `Published on 'cmqtt_s': {"Act1": "OFF"}`, st.Result.Detail)
	assert.Nil(t, st.LastPayload)

	require.Len(t, publisher.sent, 2)
	assert.Equal(t, `{"Act1": "ON"}`, string(publisher.sent[0].Payload))
	assert.Equal(t, `{"Act1": "OFF"}`, string(publisher.sent[1].Payload))
}

func TestPanelServer_Analog(t *testing.T) {
	publisher := &stubPublisher{}
	server := newTestPanelServer(t, publisher)
	h := server.Handler()

	w := submit(t, h, ActionAnalog, "37")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `id="last-payload"`)
	assert.Contains(t, body, "37.0")

	st := server.State()
	require.NotNil(t, st.Result)
	assert.True(t, st.Result.OK)
	assert.Equal(t, application.Payload{"Analog": 37.0}, st.LastPayload)

	require.Len(t, publisher.sent, 1)
	assert.Equal(t, "cmqtt_a", publisher.sent[0].Topic)
}

func TestPanelServer_PublishFailure(t *testing.T) {
	publisher := &stubPublisher{err: fmt.Errorf("connect timeout")}
	server := newTestPanelServer(t, publisher)

	w := submit(t, server.Handler(), ActionSwitchOn, "50")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `class="alert alert-error"`)

	st := server.State()
	require.NotNil(t, st.Result)
	assert.False(t, st.Result.OK)
	assert.Equal(t, "Error publishing on 'cmqtt_s': connect timeout", st.Result.Detail)
}

func TestPanelServer_InvalidPort(t *testing.T) {
	publisher := &stubPublisher{}
	server := newTestPanelServer(t, publisher)

	for _, port := range []string{"0", "65536", "abc"} {
		form := url.Values{
			"host":         {"127.0.0.1"},
			"port":         {port},
			"switch_topic": {"cmqtt_s"},
			"action":       {ActionSwitchOn},
		}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		st := server.State()
		require.NotNil(t, st.Result)
		assert.False(t, st.Result.OK)
		assert.Contains(t, st.Result.Detail, "invalid port")
	}

	assert.Empty(t, publisher.sent)
}

func TestPanelServer_UnknownAction(t *testing.T) {
	publisher := &stubPublisher{}
	server := newTestPanelServer(t, publisher)

	w := submit(t, server.Handler(), "toggle", "50")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, publisher.sent)
	assert.Nil(t, server.State().Result)
}

func TestPanelServer_APIState(t *testing.T) {
	publisher := &stubPublisher{}
	server := newTestPanelServer(t, publisher)
	h := server.Handler()

	submit(t, h, ActionAnalog, "64")

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		Result      application.PublishResult `json:"result"`
		LastPayload map[string]float64        `json:"last_payload"`
		Transport   application.MQTTStatus    `json:"transport"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Result.OK)
	assert.Equal(t, `Published on 'cmqtt_a': {"Analog": 64.0}`, resp.Result.Detail)
	assert.Equal(t, 64.0, resp.LastPayload["Analog"])
	assert.Equal(t, uint64(1), resp.Transport.MessageCount)
}

func TestPanelServer_Healthz(t *testing.T) {
	server := newTestPanelServer(t, &stubPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
