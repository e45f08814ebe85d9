package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cbodonnell/tsuro/pkg/api/middleware"
	"github.com/cbodonnell/tsuro/pkg/blobstore"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/messages"
	"github.com/cbodonnell/tsuro/pkg/storage"
	"github.com/gorilla/mux"
)

func HandleGet(service *storage.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		db, key := vars(r)
		firstResult, err := queryInt(r, "firstResult", 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		maxResults, err := queryInt(r, "maxResults", -1)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		value, err := service.Get(r.Context(), db, key, firstResult, maxResults)
		if err != nil {
			writeError(w, "get", err)
			return
		}
		writeJSON(w, http.StatusOK, value)
	}
}

func HandleSet(service *storage.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		db, key := vars(r)
		body, err := readBody(w, r)
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		if err := service.Set(r.Context(), db, key, middleware.SessionID(r), body); err != nil {
			writeError(w, "set", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleAdd(service *storage.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		db, key := vars(r)
		body, err := readBody(w, r)
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		added, err := service.Add(r.Context(), db, key, middleware.SessionID(r), body)
		if err != nil {
			writeError(w, "add", err)
			return
		}
		b, err := json.Marshal(added)
		if err != nil {
			log.Error("failed to encode added items: %v", err)
			http.Error(w, "Failed to encode added items", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

func HandleUpdate(service *storage.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		db, key := vars(r)
		body, err := readBody(w, r)
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		item, err := service.Update(r.Context(), db, key, middleware.SessionID(r), body)
		if err != nil {
			writeError(w, "update", err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func HandleDelete(service *storage.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		db, key := vars(r)
		id := r.URL.Query().Get(blobstore.ItemIDField)
		if err := service.Delete(r.Context(), db, key, middleware.SessionID(r), id); err != nil {
			writeError(w, "delete", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func vars(r *http.Request) (string, string) {
	v := mux.Vars(r)
	return v["db"], v["key"]
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, messages.MessageBufferSize))
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Debug("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case blobstore.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case storage.IsInvalidValue(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error("failed to %s: %v", op, err)
		http.Error(w, fmt.Sprintf("Failed to %s", op), http.StatusInternalServerError)
	}
}
