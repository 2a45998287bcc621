package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/phonecall-sagas/internal/orchestrator"
	"github.com/jcmexdev/phonecall-sagas/internal/phonecall/sagastore/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := orchestrator.NewService(memory.New())
	srv := httptest.NewServer(NewRouter(NewHandler(svc)))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func startPhoneCall(t *testing.T, srv *httptest.Server) SagaResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/phone-calls", StartPhoneCallRequest{
		CallerName:     "Ada",
		CallerNumber:   "+1-555-0199",
		ReceiverNumber: "+1-555-0100",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[SagaResponse](t, resp)
}

func fireTrigger(t *testing.T, srv *httptest.Server, id string, req FireTriggerRequest) *http.Response {
	t.Helper()
	return postJSON(t, fmt.Sprintf("%s/phone-calls/%s/triggers", srv.URL, id), req)
}

func TestStartPhoneCall(t *testing.T) {
	srv := newTestServer(t)

	created := startPhoneCall(t, srv)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Ringing", created.State)
}

func TestStartPhoneCallValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/phone-calls", StartPhoneCallRequest{CallerNumber: "+1-555-0199"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetPhoneCall(t *testing.T) {
	srv := newTestServer(t)
	created := startPhoneCall(t, srv)

	resp, err := http.Get(srv.URL + "/phone-calls/" + created.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	call := decode[PhoneCallResponse](t, resp)
	assert.Equal(t, created.ID, call.ID)
	assert.Equal(t, "Ringing", call.State)
	assert.Equal(t, "+1-555-0100", call.ReceiverNumber)
}

func TestGetUnknownPhoneCall(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/phone-calls/00000000-0000-0000-0000-000000000001")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFireTriggerDrivesTheSaga(t *testing.T) {
	srv := newTestServer(t)
	created := startPhoneCall(t, srv)

	resp := fireTrigger(t, srv, created.ID, FireTriggerRequest{Trigger: "connected"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Connected", decode[SagaResponse](t, resp).State)

	resp = fireTrigger(t, srv, created.ID, FireTriggerRequest{Trigger: "placedOnHold"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OnHold", decode[SagaResponse](t, resp).State)

	resp = fireTrigger(t, srv, created.ID, FireTriggerRequest{Trigger: "setVolume", Parameter: 7})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OnHold", decode[SagaResponse](t, resp).State, "internal trigger leaves state unchanged")
}

func TestFireTriggerRejectedIsConflict(t *testing.T) {
	srv := newTestServer(t)
	created := startPhoneCall(t, srv)

	// dial was already fired at creation; a duplicate is rejected by the
	// transition table, exactly what duplicate event delivery relies on.
	resp := fireTrigger(t, srv, created.ID, FireTriggerRequest{Trigger: "dial", Parameter: "+1-555-0100"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "trigger_not_permitted", decode[ErrorResponse](t, resp).Error)
}

func TestFireTriggerBadRequests(t *testing.T) {
	srv := newTestServer(t)
	created := startPhoneCall(t, srv)

	cases := []struct {
		name string
		req  FireTriggerRequest
	}{
		{"unknown trigger", FireTriggerRequest{Trigger: "explode"}},
		{"missing parameter", FireTriggerRequest{Trigger: "dial"}},
		{"wrong parameter type", FireTriggerRequest{Trigger: "setVolume", Parameter: "loud"}},
		{"unexpected parameter", FireTriggerRequest{Trigger: "connected", Parameter: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := fireTrigger(t, srv, created.ID, tc.req)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestFireTriggerUnknownSaga(t *testing.T) {
	srv := newTestServer(t)

	resp := fireTrigger(t, srv, "00000000-0000-0000-0000-000000000001", FireTriggerRequest{Trigger: "connected"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTerminatePhoneCall(t *testing.T) {
	srv := newTestServer(t)
	created := startPhoneCall(t, srv)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/phone-calls/"+created.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PhoneDestroyed", decode[SagaResponse](t, resp).State)

	// Terminal state: anything further is a conflict.
	resp = fireTrigger(t, srv, created.ID, FireTriggerRequest{Trigger: "connected"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
