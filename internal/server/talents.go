package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"talent-trends/internal/constants"
	"talent-trends/internal/domain"
	"talent-trends/internal/gamedata"
	"talent-trends/internal/middleware"
	"talent-trends/internal/service"
	"talent-trends/internal/stream"
)

//go:embed templates/*.html
var templateFS embed.FS

type TalentsServer struct {
	talents *service.TalentService
	data    *gamedata.Data
	logger  zerolog.Logger
	home    *template.Template
}

func NewTalentsServer(talents *service.TalentService, data *gamedata.Data, logger zerolog.Logger) (*TalentsServer, error) {
	home, err := template.ParseFS(templateFS, "templates/home.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse home template: %w", err)
	}
	return &TalentsServer{talents: talents, data: data, logger: logger, home: home}, nil
}

type homeClass struct {
	Name        string
	DisplayName string
	Specs       []string
}

type homeView struct {
	Classes    []homeClass
	Encounters []gamedata.Encounter
	Regions    []gamedata.Region
}

func (s *TalentsServer) Home(w http.ResponseWriter, r *http.Request) {
	view := homeView{
		Encounters: s.data.Encounters(),
		Regions:    s.data.Regions(),
	}
	for _, c := range s.data.Classes() {
		view.Classes = append(view.Classes, homeClass{
			Name:        c.Name,
			DisplayName: gamedata.DisplayName(c.Name),
			Specs:       c.Specs,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.home.Execute(w, view); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to render home page")
	}
}

// StreamTalents serves one talent stream as Server-Sent Events: a "talent"
// event per record, an "error" event for a terminal failure, a final "done"
// event once the pipeline closes the stream, and heartbeat comments while
// resolution is in flight.
func (s *TalentsServer) StreamTalents(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	streamID, err := gonanoid.New()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	logger := s.logger.With().
		Str("stream_id", streamID).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("class", params.Class).
		Str("spec", params.Spec).
		Int("encounter", params.Encounter).
		Logger()
	logger.Info().Msg("talent stream opened")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	out := stream.New(constants.StreamCapacity)
	defer out.Cancel()

	// The producer is detached from the request context: the failed push
	// after Cancel is what stops it, and the record in flight may still
	// complete its resolution step.
	go s.talents.Stream(context.WithoutCancel(r.Context()), params, out)

	heartbeat := time.NewTicker(constants.HeartbeatInterval)
	defer heartbeat.Stop()

	sent := 0
	for {
		select {
		case item, open := <-out.Items():
			if !open {
				writeEvent(w, "done", struct{}{})
				flusher.Flush()
				logger.Info().Int("records", sent).Msg("talent stream completed")
				return
			}
			if item.Err != "" {
				writeEvent(w, "error", map[string]string{"message": item.Err})
			} else {
				writeEvent(w, "talent", item.Record)
				sent++
			}
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			logger.Info().Int("records", sent).Msg("client disconnected")
			return
		}
	}
}

func (s *TalentsServer) parseParams(r *http.Request) (domain.QueryParameters, error) {
	q := r.URL.Query()

	class := q.Get("class")
	spec := q.Get("spec")
	if !s.data.ValidClassSpec(class, spec) {
		return domain.QueryParameters{}, fmt.Errorf("unknown class/spec combination %q/%q", class, spec)
	}

	encounter, err := strconv.Atoi(q.Get("encounter"))
	if err != nil || !s.data.ValidEncounter(encounter) {
		return domain.QueryParameters{}, fmt.Errorf("unknown encounter %q", q.Get("encounter"))
	}

	region := q.Get("region")
	if region == "" || region == "all" {
		region = ""
	} else if !s.data.ValidRegion(region) {
		return domain.QueryParameters{}, fmt.Errorf("unknown region %q", region)
	}

	return domain.QueryParameters{
		Class:     class,
		Spec:      spec,
		Encounter: encounter,
		Region:    region,
	}, nil
}

func writeEvent(w io.Writer, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
