package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"blockwatch/internal/app/version"
	"blockwatch/internal/domain"
	"blockwatch/internal/ingest"
)

func getVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if last, ok := a.Service.LastOutcome(); ok {
		body["last_run"] = last.StartedAt
	}
	if a.Instances != nil {
		if n, err := a.Instances(r.Context()); err == nil {
			body["instances"] = n
		} else {
			log.Warn("Instance count failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type feedView struct {
	Source   string `json:"source"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Disabled bool   `json:"disabled"`
}

func (a *API) listFeeds(w http.ResponseWriter, _ *http.Request) {
	feeds := make([]feedView, 0, len(a.Catalog))
	for _, f := range a.Catalog {
		feeds = append(feeds, feedView{Source: f.Source, Name: f.Name.String(), URL: f.URL, Disabled: f.Disabled})
	}
	writeJSON(w, http.StatusOK, feeds)
}

func (a *API) lastRun(w http.ResponseWriter, _ *http.Request) {
	last, ok := a.Service.LastOutcome()
	if !ok {
		writeError(w, "no completed run", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (a *API) triggerRun(w http.ResponseWriter, r *http.Request) {
	outcome, err := a.Service.Trigger(r.Context(), "api")
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, context.Canceled):
		writeError(w, "run cancelled", http.StatusServiceUnavailable)
	case err != nil:
		log.Error("Ingest run via API failed", "error", err)
		writeError(w, "run failed", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, outcome)
	}
}

func (a *API) addressFromPath(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	address, err := domain.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, "invalid address", http.StatusBadRequest)
		return domain.Address{}, false
	}
	return address, true
}

func (a *API) getRecord(w http.ResponseWriter, r *http.Request) {
	address, ok := a.addressFromPath(w, r)
	if !ok {
		return
	}

	record, err := a.Records.Get(r.Context(), domain.AddressID(a.Namespace, address))
	if err != nil {
		log.Error("Record lookup failed", "address", address, "error", err)
		writeError(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if record == nil {
		writeError(w, "record not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (a *API) deleteRecord(w http.ResponseWriter, r *http.Request) {
	address, ok := a.addressFromPath(w, r)
	if !ok {
		return
	}

	deleted, err := a.Records.Delete(r.Context(), domain.AddressID(a.Namespace, address))
	if err != nil {
		log.Error("Record delete failed", "address", address, "error", err)
		writeError(w, "delete failed", http.StatusInternalServerError)
		return
	}
	if !deleted {
		writeError(w, "record not found", http.StatusNotFound)
		return
	}
	log.Info("Record deleted via API", "address", address)
	w.WriteHeader(http.StatusNoContent)
}
