package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"places-backend/internal/geocode"
	"places-backend/internal/models"
	"places-backend/internal/repository/memstore"
	"places-backend/internal/services"
	"places-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	store   *memstore.Store
	places  *services.PlaceService
	tokens  *services.TokenService
	dir     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memstore.New()
	ctx := context.Background()
	for _, u := range []*models.User{
		{ID: "U1", Name: "Max", Email: "max@example.com", CreatedAt: time.Now()},
		{ID: "U2", Name: "Manu", Email: "manu@example.com", CreatedAt: time.Now().Add(time.Second)},
	} {
		require.NoError(t, store.Users().Create(ctx, u))
	}

	dir := t.TempDir()
	images, err := storage.NewLocalStore(dir)
	require.NoError(t, err)

	tokens := services.NewTokenService("test-secret", "places-backend", time.Hour)
	geocoder := geocode.StaticGeocoder{Location: models.Location{Lat: 40.7484405, Lng: -73.9856644}}
	hub := services.NewWSHub()
	placeService := services.NewPlaceService(store, geocoder, images, hub)
	t.Cleanup(placeService.Wait)

	handler := NewRouter(RouterConfig{
		Places:        NewPlaceHandler(placeService, images, DefaultMaxImageBytes),
		Users:         NewUserHandler(services.NewUserService(store)),
		WebSocket:     NewWebSocketHandler(hub, tokens, placeService),
		Tokens:        tokens,
		Health:        store.Ping,
		UploadsDir:    dir,
		UploadsPrefix: "/uploads/images",
	})

	return &testServer{handler: handler, store: store, places: placeService, tokens: tokens, dir: dir}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.tokens.GenerateToken(userID)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) files(t *testing.T) []os.DirEntry {
	t.Helper()
	s.places.Wait()
	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	return entries
}

type upload struct {
	fields      map[string]string
	contentType string
	image       []byte
}

func (u upload) request(t *testing.T, token string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range u.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if u.image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="image.png"`)
		h.Set("Content-Type", u.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/places", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func empireUpload() upload {
	return upload{
		fields: map[string]string{
			"title":       "Empire State",
			"description": "Famous skyscraper",
			"address":     "20 W 34th St, NY",
		},
		contentType: "image/png",
		image:       []byte("\x89PNG fake image"),
	}
}

func jsonRequest(t *testing.T, method, target, token string, payload interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func (s *testServer) createEmpire(t *testing.T) *models.Place {
	t.Helper()
	rec := s.do(t, empireUpload().request(t, s.token(t, "U1")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body PlaceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Place
}

func TestCreatePlace(t *testing.T) {
	s := newTestServer(t)

	place := s.createEmpire(t)
	assert.Equal(t, "U1", place.Creator)
	assert.Equal(t, "Empire State", place.Title)
	assert.NotEmpty(t, place.ID)
	assert.True(t, strings.HasPrefix(place.Image, s.dir))

	user, err := s.store.Users().GetByID(context.Background(), "U1")
	require.NoError(t, err)
	assert.Contains(t, user.Places, place.ID)
	assert.Len(t, s.files(t), 1)
}

func TestCreatePlaceFailuresDiscardUpload(t *testing.T) {
	s := newTestServer(t)

	short := empireUpload()
	short.fields = map[string]string{"title": "Empire State", "description": "abc", "address": "20 W 34th St, NY"}

	gif := empireUpload()
	gif.contentType = "image/gif"

	noImage := empireUpload()
	noImage.image = nil

	tooLarge := empireUpload()
	tooLarge.image = bytes.Repeat([]byte("x"), DefaultMaxImageBytes+1)

	tests := []struct {
		name    string
		upload  upload
		userID  string
		status  int
		message string
	}{
		{"short description", short, "U1", http.StatusUnprocessableEntity, invalidInputsMessage},
		{"unsupported mime type", gif, "U1", http.StatusUnprocessableEntity, "Invalid mime type!"},
		{"missing image", noImage, "U1", http.StatusUnprocessableEntity, invalidInputsMessage},
		{"image too large", tooLarge, "U1", http.StatusUnprocessableEntity, "Image is too large."},
		{"unknown user", empireUpload(), "ghost", http.StatusNotFound, "Could not find user for provided id."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.upload.request(t, s.token(t, tt.userID)))

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.message, body.Message)
			assert.Equal(t, tt.status, body.Code)
			assert.Empty(t, s.files(t))
		})
	}
}

func TestCreatePlaceRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, empireUpload().request(t, ""))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Authentication failed!", decodeError(t, rec).Message)
	assert.Empty(t, s.files(t))
}

func TestGetPlace(t *testing.T) {
	s := newTestServer(t)
	place := s.createEmpire(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/places/"+place.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body PlaceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, place.ID, body.Place.ID)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/places/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Could not find a place for the provided id.", decodeError(t, rec).Message)
}

func TestGetPlacesByUser(t *testing.T) {
	s := newTestServer(t)
	first := s.createEmpire(t)
	second := s.createEmpire(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/places/user/U1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body PlacesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Places, 2)
	assert.Equal(t, first.ID, body.Places[0].ID)
	assert.Equal(t, second.ID, body.Places[1].ID)

	for _, uid := range []string{"U2", "U-nonexistent"} {
		rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/places/user/"+uid, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Could not find places for the provided user id.", decodeError(t, rec).Message)
	}
}

func TestUpdatePlace(t *testing.T) {
	s := newTestServer(t)
	place := s.createEmpire(t)
	target := "/api/places/" + place.ID

	rec := s.do(t, jsonRequest(t, http.MethodPatch, target, s.token(t, "U2"),
		models.PlacePatch{Title: "Mine", Description: "Not really mine"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "You are not allowed to edit this place.", decodeError(t, rec).Message)

	rec = s.do(t, jsonRequest(t, http.MethodPatch, target, s.token(t, "U1"),
		models.PlacePatch{Title: "ESB", Description: "abc"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, jsonRequest(t, http.MethodPatch, target, s.token(t, "U1"),
		models.PlacePatch{Title: "ESB", Description: "Art deco tower"}))
	require.Equal(t, http.StatusOK, rec.Code)
	var body PlaceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ESB", body.Place.Title)
	assert.Equal(t, place.Address, body.Place.Address)

	req := httptest.NewRequest(http.MethodPatch, target, strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+s.token(t, "U1"))
	rec = s.do(t, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeletePlace(t *testing.T) {
	s := newTestServer(t)
	place := s.createEmpire(t)
	target := "/api/places/" + place.ID

	rec := s.do(t, jsonRequest(t, http.MethodDelete, target, s.token(t, "U2"), nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, s.files(t), 1)

	rec = s.do(t, jsonRequest(t, http.MethodDelete, target, s.token(t, "U1"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Deleted place.", body.Message)
	assert.Empty(t, s.files(t))

	user, err := s.store.Users().GetByID(context.Background(), "U1")
	require.NoError(t, err)
	assert.NotContains(t, user.Places, place.ID)

	rec = s.do(t, jsonRequest(t, http.MethodDelete, target, s.token(t, "U1"), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeUploadedImage(t *testing.T) {
	s := newTestServer(t)
	place := s.createEmpire(t)

	name := place.Image[strings.LastIndex(place.Image, "/")+1:]
	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/uploads/images/"+name, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x89PNG fake image", rec.Body.String())
}

func TestListUsers(t *testing.T) {
	s := newTestServer(t)
	place := s.createEmpire(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body UsersResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Users, 2)
	assert.Equal(t, "U1", body.Users[0].ID)
	assert.Equal(t, []string{place.ID}, body.Users[0].Places)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrorResponse{Message: "Could not find this route.", Code: http.StatusNotFound}, decodeError(t, rec))
}

func TestPreflight(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodOptions, "/api/places", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(func(context.Context) error { return nil })(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	healthHandler(func(context.Context) error { return errors.New("down") })(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Database unavailable.", decodeError(t, rec).Message)
}

func TestRespondErrorHidesUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, fmt.Errorf("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An unknown error occurred!", decodeError(t, rec).Message)
}
