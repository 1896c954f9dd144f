package main

import (
	"context"
	golog "log"
	"log/syslog"
	"net/http"
	"strconv"
	"time"

	"aistrack/ais"
	"aistrack/ais/log"
	"aistrack/ais/tracker"
	"aistrack/ais/ws"
	"aistrack/gogroup"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type trackRest struct {
	tracker *tracker.Tracker
}

func router(tr *tracker.Tracker, events http.Handler) *mux.Router {
	rest := &trackRest{tracker: tr}
	r := mux.NewRouter()
	r.HandleFunc("/tracks", rest.list).Methods(http.MethodGet)
	r.HandleFunc("/tracks/{mmsi:[0-9]+}", rest.get).Methods(http.MethodGet)
	r.Handle("/events", events)
	return r
}

func serve(g gogroup.GoGroup, addr string, tr *tracker.Tracker, events *ws.Handler) error {
	srv := &http.Server{
		Addr:     addr,
		Handler:  router(tr, events),
		ErrorLog: golog.New(log.NewWriter(syslog.LOG_WARNING), "http: ", 0),
	}
	go func() {
		<-g.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info("Listening on %v", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Unable to write response: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// list returns every track, ordered by MMSI. history=true adds the position
// history.
func (rest *trackRest) list(w http.ResponseWriter, r *http.Request) {
	history, _ := strconv.ParseBool(r.URL.Query().Get("history"))
	tracks := rest.tracker.Tracks()
	views := make([]ws.TrackView, 0, len(tracks))
	for _, t := range tracks {
		views = append(views, ws.View(t, history))
	}
	writeJSON(w, http.StatusOK, views)
}

func (rest *trackRest) get(w http.ResponseWriter, r *http.Request) {
	mmsi, err := strconv.Atoi(mux.Vars(r)["mmsi"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	t, ok := rest.tracker.Track(ais.MMSI(mmsi))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not tracked: " + ais.FormatMMSI(mmsi)})
		return
	}
	writeJSON(w, http.StatusOK, ws.View(t, true))
}
