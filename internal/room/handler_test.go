package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livelist/internal/list/model"
	"livelist/internal/room/repository"
	"livelist/internal/room/service"
	"livelist/socket"
)

func newTestRouter(t *testing.T) (http.Handler, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	hub := socket.NewHub(store)
	t.Cleanup(hub.Close)

	h := NewRoomHandler(service.NewRoomService(hub))
	r := mux.NewRouter()
	r.HandleFunc("/rooms", h.CreateRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{roomId}", h.CreateRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{roomId}", h.Room)
	r.HandleFunc("/live/{roomId}", h.ShareRedirect).Methods(http.MethodGet)
	return r, store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndFetchRoom(t *testing.T) {
	h, store := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/rooms/list_42?pwd=pw", `{"id":"list_42","name":"Groceries","items":[{"id":"1","text":"Milk","checked":false}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.CreateRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "list_42", resp.RoomID)
	assert.Equal(t, "list_42", resp.ListID)

	pw, err := store.LoadPassword(t.Context(), "list_42")
	require.NoError(t, err)
	assert.Equal(t, "pw", pw)

	rec = do(t, h, http.MethodGet, "/rooms/list_42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list model.List
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "Groceries", list.Name)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Milk", list.Items[0].Text)
}

func TestFetchUnknownRoomIsNull(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/rooms/empty", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "null", rec.Body.String())
}

func TestCreateRoomWithoutID(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/rooms", `{"name":"Anon","items":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.CreateRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RoomID)
	assert.Equal(t, resp.RoomID, resp.ListID)

	rec = do(t, h, http.MethodPost, "/rooms", `{"id":"from-body","name":"B"}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "from-body", resp.RoomID)
}

func TestCreateRoomBadBody(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/rooms/r", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomMethodNotAllowed(t *testing.T) {
	h, _ := newTestRouter(t)
	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		rec := do(t, h, method, "/rooms/r", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
	}
}

func TestShareRedirect(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/live/list_42?pwd=s3cret", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/?list=list_42&pwd=s3cret", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodGet, "/live/list_42", "")
	assert.Equal(t, "/?list=list_42", rec.Header().Get("Location"))
}
