package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("", time.Second)
	assert.Error(t, err)

	c, err := NewClient("http://broker:5000/", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://broker:5000", c.baseURL)
	assert.Equal(t, DefaultRequestTimeout, c.httpClient.Timeout)
}

func TestClient_Poll(t *testing.T) {
	var gotBody map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, checkCommandsPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"commands":[{"command_id":"c1","type":"print","pdf_data":"JVBERg==",
			"print_options":{"selected_pages":"1-2","num_copies":2,"layout":"portrait","pages_per_sheet":1},
			"timestamp":"2024-05-01T09:00:00","status":"delivered"}]}`))
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, time.Second)
	require.NoError(t, err)

	cmds, err := c.Poll(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"device_id": "A"}, gotBody)
	require.Len(t, cmds, 1)
	assert.Equal(t, "c1", cmds[0].CommandID)
	assert.Equal(t, "JVBERg==", cmds[0].PDFData)
	assert.Equal(t, 2, cmds[0].PrintOptions.NumCopies)
	assert.Equal(t, "1-2", cmds[0].PrintOptions.SelectedPages)
}

func TestClient_Report(t *testing.T) {
	var got map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, reportPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, time.Second)
	require.NoError(t, err)

	require.NoError(t, c.Report(context.Background(), Report{DeviceID: "A", CommandID: "c1", Success: false, Message: "jam"}))
	assert.Equal(t, map[string]interface{}{
		"device_id":  "A",
		"command_id": "c1",
		"success":    false,
		"message":    "jam",
	}, got)
}

func TestClient_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Missing device_id"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, time.Second)
	require.NoError(t, err)

	_, err = c.Poll(context.Background(), "")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "Missing device_id")
}

func TestClient_BadJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, time.Second)
	require.NoError(t, err)

	_, err = c.Poll(context.Background(), "A")
	assert.Error(t, err)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	c, err := NewClient(ts.URL, 50*time.Millisecond)
	require.NoError(t, err)

	_, err = c.Poll(context.Background(), "A")
	assert.Error(t, err)
}
