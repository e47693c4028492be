package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/config"
	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/metrics"
	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"github.com/COVIDWarriors/CWarriors-Covid19/robot"
	"github.com/COVIDWarriors/CWarriors-Covid19/runlog"
	"github.com/COVIDWarriors/CWarriors-Covid19/sim"
	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var errBusy = errors.New("a run is in progress")

type api struct {
	http.Handler
	cfg     *config.Config
	log     *zap.Logger
	store   *runlog.Store
	hold    *machine.HoldPrompter
	sse     *sse.Server
	metrics *metrics.Collector

	mx      sync.Mutex
	cancel  context.CancelFunc
	last    *runlog.Run
	wg      sync.WaitGroup
	closeCh chan struct{}
}

func newAPI(cfg *config.Config, store *runlog.Store, zl *zap.Logger) (*api, error) {
	reg := prometheus.NewRegistry()
	col, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	a := &api{
		Handler: r,
		cfg:     cfg,
		log:     zl,
		store:   store,
		hold:    machine.NewHoldPrompter(),
		metrics: col,
		closeCh: make(chan struct{}),
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(ioutil.Discard, "", 0),
		}),
	}

	fs := http.FileServer(http.Dir(cfg.DataDir))
	r.PathPrefix("/data/").Handler(http.StripPrefix("/data", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case "GET":
			fs.ServeHTTP(w, req)
		case "PUT":
			a.putFile(w, req)
		case "DELETE":
			a.deleteFile(w, req)
		default:
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		}
	})))

	r.HandleFunc("/api/run", a.run).Methods("POST")
	r.HandleFunc("/api/run", a.abort).Methods("DELETE")
	r.HandleFunc("/api/resume", a.resume).Methods("POST")
	r.HandleFunc("/api/probe", a.probe).Methods("POST")
	r.HandleFunc("/api/plan", a.plan).Methods("GET")
	r.HandleFunc("/api/runs", a.runs).Methods("GET")
	r.HandleFunc("/api/runs/{id}", a.steps).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.PathPrefix("/events/").Handler(a.sse)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case msg := <-a.hold.HoldMessage():
				a.send("/events/hold", map[string]interface{}{"holding": msg != "-", "message": msg})
			case <-a.closeCh:
				return
			}
		}
	}()

	return a, nil
}

// Close aborts a run in progress and waits for it to be recorded.
func (a *api) Close() {
	a.mx.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.mx.Unlock()
	close(a.closeCh)
	a.wg.Wait()
	a.sse.Shutdown()
}

func (a *api) send(channel string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		a.log.Error("marshal event", zap.String("channel", channel), zap.Error(err))
		return
	}
	a.sse.SendMessage(channel, sse.SimpleMessage(string(data)))
}

// stepEvents publishes step progress.
type stepEvents struct{ a *api }

func (e stepEvents) StepStarted(s protocol.Step) {
	e.a.send("/events/steps", map[string]interface{}{"step": s.ID, "description": s.Description, "started": true})
}

func (e stepEvents) StepFinished(r protocol.Result) {
	e.a.send("/events/steps", r)
}

func safePath(base, name string) (bool, string) {
	if filepath.Separator != '/' && strings.ContainsRune(name, filepath.Separator) {
		return false, ""
	}
	dir := string(base)
	if dir == "" {
		dir = "."
	}
	fullName := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+name)))
	return true, fullName
}

func (a *api) start() (runlog.Run, error) {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.cancel != nil {
		return runlog.Run{}, errBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	r := &runner{
		cfg:              a.cfg,
		log:              a.log,
		store:            a.store,
		prompter:         a.hold,
		machineObservers: []machine.Observer{a.metrics},
		stepObservers:    []protocol.Observer{a.metrics, stepEvents{a}},
		onState:          func(s robot.Status) { a.send("/events/state", s) },
	}
	rec := runlog.NewRun(a.cfg.Station, numSamples(a.cfg), time.Now())
	a.last = &rec

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		done, _, err := r.run(ctx)
		if err != nil {
			a.log.Error("run", zap.Error(err))
		}
		a.mx.Lock()
		a.cancel = nil
		a.last = &done
		a.mx.Unlock()
		cancel()
		a.send("/events/run", done)
	}()
	return rec, nil
}

func (a *api) run(w http.ResponseWriter, req *http.Request) {
	rec, err := a.start()
	if errors.Is(err, errBusy) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	a.encode(w, map[string]interface{}{"station": rec.Station, "samples": rec.Samples})
}

func (a *api) abort(w http.ResponseWriter, req *http.Request) {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.cancel == nil {
		http.Error(w, "no run in progress", http.StatusConflict)
		return
	}
	a.cancel()
}

func (a *api) resume(w http.ResponseWriter, req *http.Request) {
	err := a.hold.Resume()
	if errors.Is(err, machine.ErrNotHolding) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
}

func (a *api) plan(w http.ResponseWriter, req *http.Request) {
	st, err := buildStation(a.cfg, machine.NewMachine(sim.New(a.log), a.log), labware.NewDeck(nil))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var steps []protocol.Result
	for _, s := range st.Steps() {
		steps = append(steps, protocol.Result{ID: s.ID, Description: s.Description, Execute: s.Execute, Wait: s.Wait})
	}
	a.encode(w, steps)
}

func (a *api) probe(w http.ResponseWriter, req *http.Request) {
	a.mx.Lock()
	busy := a.cancel != nil
	a.mx.Unlock()
	if busy {
		http.Error(w, errBusy.Error(), http.StatusConflict)
		return
	}

	ad, release, err := openAdapter(req.Context(), a.cfg.Robot, a.log)
	if err != nil {
		a.log.Error("probe", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer release()

	m := machine.NewMachine(ad, a.log)
	m.SetPrompter(a.hold)
	st, err := buildStation(a.cfg, m, labware.NewDeck(nil))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mount := machine.Left
	if a.cfg.Station == "C" {
		mount = machine.Right
	}
	mesh, err := m.ProbeWells(req.Context(), levelWells(levelPlate(st)), machine.ProbeOptions{
		Pipette: machine.Pipette{Mount: mount},
		Wait:    req.FormValue("wait") == "1",
	})
	if err != nil {
		a.log.Error("probe", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := saveMesh(a.cfg.DataDir, mesh); err != nil {
		a.log.Error("save mesh", zap.Error(err))
	}
	a.encode(w, mesh.Points())
}

func (a *api) runs(w http.ResponseWriter, req *http.Request) {
	if a.store == nil {
		a.mx.Lock()
		var res []runlog.Run
		if a.last != nil {
			res = append(res, *a.last)
		}
		a.mx.Unlock()
		a.encode(w, res)
		return
	}
	res, err := a.store.Runs(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a.encode(w, res)
}

func (a *api) steps(w http.ResponseWriter, req *http.Request) {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if a.store == nil {
		http.Error(w, "run history disabled", http.StatusNotFound)
		return
	}
	res, err := a.store.Steps(req.Context(), id)
	if errors.Is(err, runlog.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a.encode(w, res)
}

func (a *api) encode(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn("encode", zap.Error(err))
	}
}

func (a *api) putFile(w http.ResponseWriter, req *http.Request) {
	ok, name := safePath(a.cfg.DataDir, req.URL.Path)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	os.MkdirAll(filepath.Dir(name), 0755)
	f, err := os.Create(name)
	if err != nil {
		a.log.Error("create", zap.String("file", name), zap.Error(err))
		http.Error(w, err.Error(), 500)
		return
	}
	defer f.Close()
	_, err = io.Copy(f, req.Body)
	if err != nil {
		a.log.Error("write", zap.String("file", name), zap.Error(err))
		http.Error(w, err.Error(), 500)
		return
	}
}

func (a *api) deleteFile(w http.ResponseWriter, req *http.Request) {
	ok, name := safePath(a.cfg.DataDir, req.URL.Path)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	err := os.Remove(name)
	if err != nil {
		a.log.Error("delete", zap.String("file", name), zap.Error(err))
		http.Error(w, err.Error(), 500)
		return
	}
}
