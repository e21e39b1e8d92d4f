package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vitrun/qart/qr"

	"github.com/mehmoodulhaq570/WifiX/internal/access"
	"github.com/mehmoodulhaq570/WifiX/internal/broker"
	"github.com/mehmoodulhaq570/WifiX/internal/rooms"
	"github.com/mehmoodulhaq570/WifiX/internal/server/middleware"
)

// sessionID returns the opaque session identifier the middleware attached.
func sessionID(r *http.Request) string {
	if reqMeta, ok := middleware.ReqMetadataFrom(r.Context()); ok {
		return reqMeta.SessionID
	}
	return ""
}

// authed reports whether this session has passed the optional global access
// PIN. With no PIN configured every session is authed.
func (a *App) authed(r *http.Request) bool {
	if a.config.Server.AccessPin == "" {
		return true
	}
	state, ok := a.sessions.Get(sessionID(r))
	return ok && state.Authed
}

// --- Info & QR ---

func (a *App) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"host_url": "http://" + r.Host + "/",
		"lan_url":  a.LANURL(),
		"lan_ip":   a.lanIP,
	})
}

func (a *App) handleQR(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		target = a.LANURL()
	}
	code, err := qr.Encode(target, qr.M)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ReasonInternalError, "failed to generate qr code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(code.PNG())
}

// --- Global access PIN ---

func (a *App) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"pin_required": a.config.Server.AccessPin != "",
		"authed":       a.authed(r),
	})
}

func (a *App) handleAuth(w http.ResponseWriter, r *http.Request) {
	if a.config.Server.AccessPin == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "authed": true})
		return
	}

	var body struct {
		Pin string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ReasonBadRequest, "invalid request body")
		return
	}
	if body.Pin != a.config.Server.AccessPin {
		writeError(w, http.StatusUnauthorized, ReasonInvalidCredentials, "wrong PIN")
		return
	}
	a.sessions.Put(sessionID(r), sessionState{Authed: true})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "authed": true})
}

func (a *App) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	a.sessions.Delete(sessionID(r))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- Files ---

type fileItem struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	MTime    int64  `json:"mtime"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	HasPin   bool   `json:"has_pin"`
}

func (a *App) handleListFiles(w http.ResponseWriter, r *http.Request) {
	if !a.authed(r) {
		writeError(w, http.StatusUnauthorized, ReasonUnauthenticated, "unauthorized")
		return
	}

	files, err := a.store.List()
	if err != nil {
		a.logger.Error("listing files failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, ReasonInternalError, "failed to list files")
		return
	}

	items := make([]fileItem, 0, len(files))
	for _, f := range files {
		items = append(items, fileItem{
			Filename: f.Name,
			URL:      a.downloadURL(r, f.Name),
			MTime:    f.ModTime.Unix(),
			Size:     f.Size,
			Type:     strings.TrimPrefix(filepath.Ext(f.Name), "."),
			HasPin:   a.access.IsProtected(f.Name),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *App) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !a.authed(r) {
		a.logger.Warn("Unauthorized upload attempt", slog.String("ip", clientIP(r)))
		writeError(w, http.StatusUnauthorized, ReasonUnauthenticated, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.Uploads.MaxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ReasonBadRequest, "no file part")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, ReasonBadRequest, "no selected file")
		return
	}
	filePin := strings.TrimSpace(r.FormValue("pin"))

	info, err := a.store.Save(header.Filename, file)
	if err != nil {
		a.logger.Error("upload failed", slog.String("filename", header.Filename), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, ReasonInternalError, "upload failed")
		return
	}
	if filePin != "" {
		a.access.RegisterPin(info.Name, filePin)
	}

	downloadURL := a.downloadURL(r, info.Name)
	a.logger.Info("File uploaded successfully",
		slog.String("filename", info.Name),
		slog.Int64("bytes", info.Size),
	)
	// notify connected peers; best-effort, the upload is already committed.
	a.notify(broker.EventFileUploaded, map[string]any{
		"filename": info.Name,
		"url":      downloadURL,
		"size":     info.Size,
		"has_pin":  filePin != "",
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"filename": info.Name,
		"url":      downloadURL,
		"has_pin":  filePin != "",
	})
}

func (a *App) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	switch a.access.Verify(sessionID(r), filename, strings.TrimSpace(r.URL.Query().Get("pin"))) {
	case access.Denied:
		writeError(w, http.StatusForbidden, ReasonInvalidPin, "Invalid PIN")
		return
	case access.Granted, access.NotProtected:
	}

	f, info, err := a.store.Open(filename)
	if err != nil {
		writeError(w, http.StatusNotFound, ReasonNotFound, "file not found")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeContent(w, r, filename, info.ModTime, f)
}

func (a *App) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if !a.authed(r) {
		a.logger.Warn("Unauthorized delete attempt", slog.String("ip", clientIP(r)))
		writeError(w, http.StatusUnauthorized, ReasonUnauthenticated, "unauthorized")
		return
	}

	filename := chi.URLParam(r, "filename")
	if err := a.store.Delete(filename); err != nil {
		writeError(w, http.StatusNotFound, ReasonNotFound, "file not found")
		return
	}
	// PIN and verification marks go in the same logical step as the file.
	a.access.RemoveFile(filename)
	a.notify(broker.EventFileDeleted, map[string]string{"filename": filename})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- Room codes ---

func (a *App) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if r.Body != nil {
		// Body is optional; a bare POST creates an unnamed room.
		json.NewDecoder(r.Body).Decode(&body)
	}

	code, err := a.rooms.Generate(rooms.Endpoint{Host: a.lanIP, Port: a.port}, body.Name)
	if err != nil {
		a.logger.Error("room code generation failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, ReasonRoomExhausted, "could not allocate a room code")
		return
	}
	details, err := a.rooms.Resolve(code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ReasonInternalError, "room vanished after creation")
		return
	}
	writeJSON(w, http.StatusCreated, details)
}

func (a *App) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.rooms.ListActive())
}

func (a *App) handleResolveRoom(w http.ResponseWriter, r *http.Request) {
	details, err := a.rooms.Resolve(chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, rooms.ErrNotFound) {
			writeError(w, http.StatusNotFound, ReasonNotFound, "room code not found or expired")
			return
		}
		writeError(w, http.StatusInternalServerError, ReasonInternalError, "room lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (a *App) handleRevokeRoom(w http.ResponseWriter, r *http.Request) {
	removed := a.rooms.Revoke(chi.URLParam(r, "code"))
	if !removed {
		writeError(w, http.StatusNotFound, ReasonNotFound, "room code not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- helpers ---

func (a *App) downloadURL(r *http.Request, name string) string {
	return fmt.Sprintf("http://%s/download/%s", r.Host, url.PathEscape(name))
}

// notify broadcasts an event to all connected peers, swallowing delivery
// failures: the state change it announces is already committed.
func (a *App) notify(event string, data any) {
	if err := a.hub.Notify(event, data, uuid.Nil); err != nil {
		a.logger.Warn("event broadcast failed", slog.String("event", event), slog.Any("error", err))
	}
}

func clientIP(r *http.Request) string {
	if reqMeta, ok := middleware.ReqMetadataFrom(r.Context()); ok {
		return reqMeta.IP
	}
	return r.RemoteAddr
}
