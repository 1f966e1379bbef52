package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/chunksync/internal/common"
	"github.com/dmitrijs2005/chunksync/internal/conflict"
	"github.com/dmitrijs2005/chunksync/internal/logging"
	"github.com/dmitrijs2005/chunksync/internal/model"
	"github.com/dmitrijs2005/chunksync/internal/storage"
)

// Chunk upload headers. The payload travels as the raw request body.
const (
	headerChunkPath   = "X-Chunk-Path"
	headerChunkIndex  = "X-Chunk-Index"
	headerChunkDigest = "X-Chunk-Digest"
)

// API wires the storage manager into an HTTP router.
type API struct {
	manager     *storage.Manager
	resolver    *conflict.Resolver
	broadcaster *Broadcaster
	registry    *prometheus.Registry
	log         logging.Logger
	pollTimeout time.Duration
	now         func() int64
}

func NewAPI(m *storage.Manager, b *Broadcaster, reg *prometheus.Registry, log logging.Logger, pollTimeout time.Duration) *API {
	return &API{
		manager:     m,
		resolver:    conflict.NewResolver(),
		broadcaster: b,
		registry:    reg,
		log:         log.With("module", "http_api"),
		pollTimeout: pollTimeout,
		now:         func() int64 { return time.Now().Unix() },
	}
}

// Router builds the route table.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.requestIDMiddleware)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/clients/{client}/sync", a.handleSync).Methods(http.MethodPost)
	v1.HandleFunc("/clients/{client}/chunks", a.handleUploadChunk).Methods(http.MethodPut)
	v1.HandleFunc("/clients/{client}/files/finalize", a.handleFinalize).Methods(http.MethodPost)
	v1.HandleFunc("/clients/{client}/files", a.handleListFiles).Methods(http.MethodGet)
	v1.HandleFunc("/clients/{client}/files", a.handleDeleteFile).Methods(http.MethodDelete)
	v1.HandleFunc("/clients/{client}/files/meta", a.handleGetMetadata).Methods(http.MethodGet)
	v1.HandleFunc("/clients/{client}/files/manifest", a.handleManifest).Methods(http.MethodGet)
	v1.HandleFunc("/clients/{client}/events", a.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/clients/{client}/conflicts/resolve", a.handleResolveConflict).Methods(http.MethodPost)
	v1.HandleFunc("/chunks/{digest}", a.handleGetChunk).Methods(http.MethodGet)
	v1.HandleFunc("/heartbeat", a.handleHeartbeat).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return r
}

type syncRequest struct {
	LocalFiles   []model.FileSummary `json:"local_files"`
	LastSyncTime int64               `json:"last_sync_time"`
}

type syncResponse struct {
	Changes    []model.FileChange `json:"changes"`
	ServerTime int64              `json:"server_time"`
}

func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client"]

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, badRequest("decode sync request", err))
		return
	}

	changes, err := a.manager.ComputeChanges(r.Context(), clientID, req.LocalFiles, req.LastSyncTime)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if changes == nil {
		changes = []model.FileChange{}
	}
	a.writeJSON(w, http.StatusOK, syncResponse{Changes: changes, ServerTime: a.now()})
}

func (a *API) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client"]

	path := r.Header.Get(headerChunkPath)
	digest := r.Header.Get(headerChunkDigest)
	index, err := strconv.ParseInt(r.Header.Get(headerChunkIndex), 10, 32)
	if err != nil {
		a.writeError(w, r, badRequest("parse chunk index", err))
		return
	}

	body := http.MaxBytesReader(w, r.Body, common.MaxChunkSize)
	data, err := io.ReadAll(body)
	if err != nil {
		a.writeError(w, r, badRequest("read chunk body", err))
		return
	}

	if err := a.manager.StoreChunk(r.Context(), clientID, path, int32(index), data, digest); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"stored": true})
}

type finalizeRequest struct {
	Path        string `json:"path"`
	TotalChunks int32  `json:"total_chunks"`
}

func (a *API) handleFinalize(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client"]

	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, badRequest("decode finalize request", err))
		return
	}

	rec, err := a.manager.FinalizeFile(r.Context(), clientID, req.Path, req.TotalChunks)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleListFiles(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client"]

	files, err := a.manager.ListFiles(r.Context(), clientID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if files == nil {
		files = []*model.FileRecord{}
	}
	a.writeJSON(w, http.StatusOK, files)
}

func (a *API) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client"]

	rec, err := a.manager.GetMetadata(r.Context(), clientID, r.URL.Query().Get("path"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client"]

	if err := a.manager.DeleteFile(r.Context(), clientID, r.URL.Query().Get("path")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleManifest(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client"]

	manifest, err := a.manager.GetManifest(r.Context(), clientID, r.URL.Query().Get("path"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if manifest == nil {
		manifest = []model.ChunkInfo{}
	}
	a.writeJSON(w, http.StatusOK, manifest)
}

func (a *API) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	digest := mux.Vars(r)["digest"]

	data, err := a.manager.GetChunk(r.Context(), digest)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(headerChunkDigest, digest)
	_, _ = w.Write(data)
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client"]

	timeout := a.pollTimeout
	if s := r.URL.Query().Get("timeout_seconds"); s != "" {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil || sec <= 0 {
			a.writeError(w, r, badRequest("parse timeout", err))
			return
		}
		if d := time.Duration(sec) * time.Second; d < timeout {
			timeout = d
		}
	}

	changes := a.broadcaster.Wait(r.Context(), clientID, timeout)
	if changes == nil {
		changes = []model.FileChange{}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

type heartbeatRequest struct {
	ClientTime int64 `json:"client_time"`
}

type heartbeatResponse struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
}

func (a *API) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, badRequest("decode heartbeat", err))
		return
	}
	a.writeJSON(w, http.StatusOK, heartbeatResponse{ClientTime: req.ClientTime, ServerTime: a.now()})
}

type resolveConflictRequest struct {
	Path               string `json:"path"`
	Strategy           string `json:"strategy"`
	LocalDigest        string `json:"local_digest"`
	RemoteDigest       string `json:"remote_digest"`
	LocalModifiedTime  int64  `json:"local_modified_time"`
	RemoteModifiedTime int64  `json:"remote_modified_time"`
	LocalVersion       int32  `json:"local_version"`
	RemoteVersion      int32  `json:"remote_version"`
}

type resolveConflictResponse struct {
	Conflict     bool   `json:"conflict"`
	Strategy     string `json:"strategy"`
	ResolvedPath string `json:"resolved_path"`
}

var strategyNames = map[string]conflict.Strategy{
	"keep_local":  conflict.KeepLocal,
	"keep_remote": conflict.KeepRemote,
	"keep_both":   conflict.KeepBoth,
	"manual":      conflict.Manual,
}

func (a *API) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client"]

	var req resolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, badRequest("decode conflict request", err))
		return
	}

	info := conflict.Info{
		Path:               req.Path,
		LocalDigest:        req.LocalDigest,
		RemoteDigest:       req.RemoteDigest,
		LocalModifiedTime:  req.LocalModifiedTime,
		RemoteModifiedTime: req.RemoteModifiedTime,
		LocalVersion:       req.LocalVersion,
		RemoteVersion:      req.RemoteVersion,
	}

	if !a.resolver.HasConflict(info) {
		a.writeJSON(w, http.StatusOK, resolveConflictResponse{Conflict: false, ResolvedPath: req.Path})
		return
	}

	strategy, ok := strategyNames[req.Strategy]
	if !ok {
		if req.Strategy != "" {
			a.writeError(w, r, badRequest("unknown strategy "+req.Strategy, common.ErrInvalidArgument))
			return
		}
		strategy = a.resolver.AutoResolve(info)
	}

	resolved := a.resolver.Resolve(info, strategy, clientID, time.Unix(a.now(), 0).UTC())
	a.writeJSON(w, http.StatusOK, resolveConflictResponse{
		Conflict:     true,
		Strategy:     strategyName(strategy),
		ResolvedPath: resolved,
	})
}

func strategyName(s conflict.Strategy) string {
	for name, v := range strategyNames {
		if v == s {
			return name
		}
	}
	return "manual"
}
