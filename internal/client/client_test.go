package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockplan/internal/api"
	"blockplan/internal/model"
)

var nineAM = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func TestClient_EventRoundTrips(t *testing.T) {
	var gotAuth bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-03-03", r.URL.Query().Get("start"))
		assert.Equal(t, "2025-03-10", r.URL.Query().Get("end"))
		_ = json.NewEncoder(w).Encode(api.EventsResponse{Events: []model.Event{{ID: "a", Title: "A", Start: nineAM, End: nineAM.Add(time.Hour)}}})
	})
	mux.HandleFunc("POST /api/events", func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		gotAuth = ok && u == "me" && p == "pw"
		var in model.EventInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.EventResponse{Event: model.Event{ID: "new", Title: in.Title, Start: in.Start, End: in.End}})
	})
	mux.HandleFunc("PATCH /api/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in model.EventInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(api.EventResponse{Event: model.Event{ID: r.PathValue("id"), Title: in.Title, Start: in.Start, End: in.End}})
	})
	mux.HandleFunc("DELETE /api/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.DeletedResponse{DeletedEventID: r.PathValue("id")})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL+"/", time.Second, WithBasicAuth("me", "pw"))
	ctx := context.Background()

	events, err := c.ListEvents(ctx, nineAM, nineAM.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "A", events[0].Title)

	created, err := c.CreateEvent(ctx, model.EventInput{Title: "New", Start: nineAM, End: nineAM.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "new", created.ID)
	assert.True(t, gotAuth)

	updated, err := c.UpdateEvent(ctx, "a b", model.EventInput{Title: "Moved", Start: nineAM, End: nineAM.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "a b", updated.ID)
	assert.Equal(t, 120, updated.Minutes())

	require.NoError(t, c.DeleteEvent(ctx, "a"))
}

func TestClient_ErrorMapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "event not found"})
	})
	mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, time.Second)
	err := c.DeleteEvent(context.Background(), "gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "event not found", se.Message)

	_, err = c.ListTasks(context.Background())
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "boom", se.Message)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestClient_ContextTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL, time.Second).ListTasks(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "http://host:8080/api/events", redactURL("http://user:pw@host:8080/api/events?start=2025-03-03"))
}
