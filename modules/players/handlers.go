package players

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/m1k1o/go-portal/internal/cache"
	"github.com/m1k1o/go-portal/internal/store"
	"github.com/m1k1o/go-portal/internal/utils"
	"github.com/m1k1o/go-portal/pkg/hlsutil"
)

func (m *ModuleCtx) listPlayers(w http.ResponseWriter, r *http.Request) {
	withCover := r.URL.Query().Get("embed") == "cover"

	key := cache.KeyPlayerList
	if withCover {
		key += ":cover"
	}

	players, err := cache.Fetch(m.cache, key, m.config.ListTTL, func() ([]store.Player, error) {
		return m.store.List(r.Context(), withCover)
	})
	if err != nil {
		m.logger.Err(err).Msg("unable to list players")
		utils.HttpError(w, http.StatusInternalServerError, "Failed to fetch players")
		return
	}

	res := make([]playerResponse, 0, len(players))
	for _, player := range players {
		item := playerResponse{Player: player}
		if withCover && len(player.CoverImage) > 0 {
			dataURL := toDataURL(player.CoverImage)
			item.CoverImageBase64 = &dataURL
		}
		res = append(res, item)
	}

	utils.HttpJsonResponse(w, http.StatusOK, res)
}

func (m *ModuleCtx) getPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}

	player, err := cache.Fetch(m.cache, cache.KeyPlayerID(id), m.config.PlayerTTL, func() (*store.Player, error) {
		return m.store.Get(r.Context(), id)
	})
	if err != nil {
		m.storeError(w, err, "Failed to fetch player")
		return
	}

	utils.HttpJsonResponse(w, http.StatusOK, player)
}

func (m *ModuleCtx) getPlayerByPID(w http.ResponseWriter, r *http.Request) {
	pId := chi.URLParam(r, "pId")

	player, err := cache.Fetch(m.cache, cache.KeyPlayer(pId), m.config.PlayerTTL, func() (*store.Player, error) {
		return m.store.GetByPID(r.Context(), pId)
	})
	if err != nil {
		m.storeError(w, err, "Failed to fetch player")
		return
	}

	utils.HttpJsonResponse(w, http.StatusOK, player)
}

func (m *ModuleCtx) createPlayer(w http.ResponseWriter, r *http.Request) {
	var in store.PlayerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.HttpError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	player, err := m.store.Create(r.Context(), in)
	if err != nil {
		m.storeError(w, err, "Failed to create player")
		return
	}

	m.invalidate(player)
	utils.HttpJsonResponse(w, http.StatusOK, player)
}

func (m *ModuleCtx) updatePlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}

	var in store.PlayerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.HttpError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	previous, err := m.store.Get(r.Context(), id)
	if err != nil {
		m.storeError(w, err, "Failed to update player")
		return
	}

	player, err := m.store.Update(r.Context(), id, in)
	if err != nil {
		m.storeError(w, err, "Failed to update player")
		return
	}

	m.invalidate(previous)
	m.invalidate(player)
	utils.HttpJsonResponse(w, http.StatusOK, player)
}

func (m *ModuleCtx) deletePlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}

	player, err := m.store.Get(r.Context(), id)
	if err != nil {
		m.storeError(w, err, "Failed to delete player")
		return
	}

	if err := m.store.Delete(r.Context(), id); err != nil {
		m.storeError(w, err, "Failed to delete player")
		return
	}

	m.invalidate(player)
	utils.HttpJsonResponse(w, http.StatusOK, messageResponse{Message: "Player deleted successfully"})
}

func (m *ModuleCtx) getCover(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}

	image, err := m.store.GetCover(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		utils.HttpError(w, http.StatusNotFound, "Cover image not found")
		return
	}
	if err != nil {
		m.logger.Err(err).Int64("id", id).Msg("unable to get cover image")
		utils.HttpError(w, http.StatusInternalServerError, "Failed to retrieve cover image")
		return
	}

	if r.URL.Query().Get("format") == "base64" {
		utils.HttpJsonResponse(w, http.StatusOK, coverResponse{CoverImageBase64: toDataURL(image)})
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(image))
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image)
}

func (m *ModuleCtx) uploadCover(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}

	// leave room for multipart envelope
	r.Body = http.MaxBytesReader(w, r.Body, m.config.MaxCoverSize+1<<20)
	if err := r.ParseMultipartForm(m.config.MaxCoverSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			utils.HttpError(w, http.StatusBadRequest, "File size must be less than 5MB")
			return
		}
		utils.HttpError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	file, header, err := r.FormFile("cover")
	if err != nil {
		utils.HttpError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	fileType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(fileType, "image/") {
		utils.HttpError(w, http.StatusBadRequest, "File must be an image")
		return
	}

	if header.Size > m.config.MaxCoverSize {
		utils.HttpError(w, http.StatusBadRequest, "File size must be less than 5MB")
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		utils.HttpError(w, http.StatusBadRequest, "Unable to read file")
		return
	}

	if !m.saveCover(w, r, id, image) {
		return
	}

	utils.HttpJsonResponse(w, http.StatusOK, messageResponse{
		Message:  "Cover image uploaded successfully",
		FileSize: len(image),
		FileType: fileType,
	})
}

func (m *ModuleCtx) autoCapture(w http.ResponseWriter, r *http.Request) {
	player, ok := m.loadPlayer(w, r)
	if !ok {
		return
	}

	image, err := m.capture.CaptureCoverImage(r.Context(), player.URL)
	if err != nil {
		m.logger.Warn().Err(err).Int64("id", player.ID).Str("url", player.URL).Msg("auto capture failed")
		utils.HttpError(w, http.StatusBadGateway, captureErrorMessage(player.URL))
		return
	}

	if !m.saveCover(w, r, player.ID, image) {
		return
	}

	utils.HttpJsonResponse(w, http.StatusOK, messageResponse{
		Message:  "Cover image captured successfully",
		FileSize: len(image),
		FileType: "image/jpeg",
	})
}

func (m *ModuleCtx) captureFrames(w http.ResponseWriter, r *http.Request) {
	player, ok := m.loadPlayer(w, r)
	if !ok {
		return
	}

	count := m.config.FrameCount
	if value := r.URL.Query().Get("count"); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > m.config.MaxFrameCount {
			utils.HttpError(w, http.StatusBadRequest, fmt.Sprintf("Count must be between 1 and %d", m.config.MaxFrameCount))
			return
		}
		count = n
	}

	frames := m.capture.CaptureMultipleFrames(r.Context(), player.URL, count)
	if len(frames) == 0 {
		m.logger.Warn().Int64("id", player.ID).Str("url", player.URL).Msg("no frames captured")
		utils.HttpError(w, http.StatusBadGateway, captureErrorMessage(player.URL))
		return
	}

	res := framesResponse{Frames: make([]frameResponse, 0, len(frames))}
	for _, frame := range frames {
		res.Frames = append(res.Frames, frameResponse{
			PreviewID: frame.Preview.ID,
			URL:       m.pathPrefix + "/previews/" + frame.Preview.ID,
			Timestamp: frame.Timestamp,
			Index:     frame.Index,
		})
	}

	utils.HttpJsonResponse(w, http.StatusOK, res)
}

func (m *ModuleCtx) selectCover(w http.ResponseWriter, r *http.Request) {
	id, ok := playerID(w, r)
	if !ok {
		return
	}

	var req selectCoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PreviewID == "" {
		utils.HttpError(w, http.StatusBadRequest, "Preview ID is required")
		return
	}

	previews := m.capture.Previews()

	image, ok := previews.Lookup(req.PreviewID)
	if !ok {
		utils.HttpError(w, http.StatusNotFound, "Preview not found")
		return
	}

	if !m.saveCover(w, r, id, image) {
		return
	}

	previews.Release(req.PreviewID)

	utils.HttpJsonResponse(w, http.StatusOK, messageResponse{
		Message:  "Cover image selected successfully",
		FileSize: len(image),
		FileType: "image/jpeg",
	})
}

func (m *ModuleCtx) getPreview(w http.ResponseWriter, r *http.Request) {
	image, ok := m.capture.Previews().Lookup(chi.URLParam(r, "previewId"))
	if !ok {
		utils.HttpError(w, http.StatusNotFound, "Preview not found")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image)
}

func (m *ModuleCtx) deletePreview(w http.ResponseWriter, r *http.Request) {
	m.capture.Previews().Release(chi.URLParam(r, "previewId"))
	w.WriteHeader(http.StatusNoContent)
}

//
// helpers
//

func (m *ModuleCtx) loadPlayer(w http.ResponseWriter, r *http.Request) (*store.Player, bool) {
	id, ok := playerID(w, r)
	if !ok {
		return nil, false
	}

	player, err := m.store.Get(r.Context(), id)
	if err != nil {
		m.storeError(w, err, "Failed to fetch player")
		return nil, false
	}

	return player, true
}

func (m *ModuleCtx) saveCover(w http.ResponseWriter, r *http.Request, id int64, image []byte) bool {
	if err := m.store.SetCover(r.Context(), id, image); err != nil {
		m.storeError(w, err, "Failed to save cover image")
		return false
	}

	if player, err := m.store.Get(r.Context(), id); err == nil {
		m.invalidate(player)
	} else {
		m.cache.DeleteByPattern("players:")
	}

	return true
}

// invalidate drops every cached view of player.
func (m *ModuleCtx) invalidate(player *store.Player) {
	m.cache.DeleteByPattern(cache.KeyPlayerList)
	if player == nil {
		return
	}

	m.cache.Delete(cache.KeyPlayerID(player.ID))
	m.cache.Delete(cache.KeyPlayer(player.PID))
}

func (m *ModuleCtx) storeError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.HttpError(w, http.StatusNotFound, "Player not found")
	case errors.Is(err, store.ErrInvalid):
		utils.HttpError(w, http.StatusBadRequest, "Name, ID and URL are required")
	case errors.Is(err, store.ErrDuplicatePID):
		utils.HttpError(w, http.StatusBadRequest, "Player ID already exists")
	default:
		m.logger.Err(err).Msg(strings.ToLower(message))
		utils.HttpError(w, http.StatusInternalServerError, message)
	}
}

func playerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.HttpError(w, http.StatusBadRequest, "Invalid Player ID")
		return 0, false
	}
	return id, true
}

func toDataURL(image []byte) string {
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}

func captureErrorMessage(url string) string {
	if hlsutil.IsHLS(url) {
		return "Capture failed, check that the stream URL is correct, the stream is reachable and allows cross-origin access"
	}
	return "Capture failed, check the stream URL"
}
