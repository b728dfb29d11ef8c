package http

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/couchcryptid/climate-analytics-service/internal/analysis"
	"github.com/couchcryptid/climate-analytics-service/internal/animation"
	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	"github.com/couchcryptid/climate-analytics-service/internal/observability"
	"github.com/couchcryptid/climate-analytics-service/internal/series"
)

const maxRequestBytes = 32 << 20

// API serves the /v1 analysis and animation routes.
type API struct {
	service analysis.Service
	clock   *animation.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewAPI creates the /v1 handlers. A nil clock leaves the animation routes unmounted.
func NewAPI(service analysis.Service, clock *animation.Clock, metrics *observability.Metrics, logger *slog.Logger) *API {
	return &API{service: service, clock: clock, metrics: metrics, logger: logger}
}

// Mount registers the routes on r.
func (a *API) Mount(r chi.Router) {
	for _, kind := range []string{
		domain.KindTrend,
		domain.KindPercentiles,
		domain.KindClimatology,
		domain.KindRegional,
		domain.KindAnomaly,
	} {
		r.Post("/"+kind, a.handleAnalyze(kind))
	}

	if a.clock == nil {
		return
	}
	r.Route("/animation", func(r chi.Router) {
		r.Get("/", a.handleAnimationState)
		r.Post("/play", a.handlePlay)
		r.Post("/pause", a.handlePause)
		r.Post("/seek", a.handleSeek)
		r.Post("/speed", a.handleSpeed)
		r.Post("/range", a.handleRange)
	})
}

func (a *API) handleAnalyze(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.AnalysisRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, domain.ErrorKindValidation, "decode request: "+err.Error())
			return
		}
		if req.Kind != "" && req.Kind != kind {
			writeError(w, r, http.StatusBadRequest, domain.ErrorKindValidation,
				"request kind "+req.Kind+" does not match route "+kind)
			return
		}
		req.Kind = kind
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		res, err := a.service.Analyze(r.Context(), req)
		if err != nil {
			if !analysis.IsRequestError(err) {
				a.logger.Error("analysis failed", "id", req.ID, "kind", kind, "error", err)
				writeError(w, r, http.StatusInternalServerError, domain.ErrorKindInternal, "analysis failed")
				return
			}
			res = domain.AnalysisResult{
				ID:         req.ID,
				Kind:       kind,
				DatasetID:  req.DatasetID,
				Location:   req.Location,
				Error:      domain.ClassifyError(err),
				ComputedAt: domain.Now(),
			}
		}
		writeResponse(w, r, statusFor(res.Error), res)
	}
}

// statusFor maps a result error onto the HTTP status returned with it.
func statusFor(e *domain.ResultError) int {
	if e == nil {
		return http.StatusOK
	}
	switch e.Kind {
	case domain.ErrorKindValidation:
		return http.StatusBadRequest
	case domain.ErrorKindInsufficientData:
		return http.StatusUnprocessableEntity
	case domain.ErrorKindEmptyRegion:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// --- animation ---

// animationResponse is the clock state plus the slider position in percent.
type animationResponse struct {
	domain.AnimationState
	Progress float64 `json:"progress"`
}

type seekRequest struct {
	Time     string   `json:"time,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
}

type speedRequest struct {
	Speed    float64         `json:"speed"`
	StepUnit domain.StepUnit `json:"step_unit,omitempty"`
}

type rangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (a *API) handleAnimationState(w http.ResponseWriter, r *http.Request) {
	a.writeAnimation(w, r)
}

func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	a.clock.Play()
	a.metrics.AnimationPlaying.Set(1)
	a.logger.Info("animation playing")
	a.writeAnimation(w, r)
}

func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	a.clock.Pause()
	a.metrics.AnimationPlaying.Set(0)
	a.logger.Info("animation paused")
	a.writeAnimation(w, r)
}

func (a *API) handleSeek(w http.ResponseWriter, r *http.Request) {
	var body seekRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, domain.ErrorKindValidation, "decode seek: "+err.Error())
		return
	}
	switch {
	case body.Progress != nil:
		if _, err := a.clock.SeekProgress(*body.Progress); err != nil {
			writeDomainError(w, r, err)
			return
		}
	case body.Time != "":
		t, err := series.ParseTime(body.Time)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, domain.ErrorKindValidation, "time: "+err.Error())
			return
		}
		a.clock.Seek(t)
	default:
		writeError(w, r, http.StatusBadRequest, domain.ErrorKindValidation, "seek requires time or progress")
		return
	}
	a.writeAnimation(w, r)
}

func (a *API) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var body speedRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, domain.ErrorKindValidation, "decode speed: "+err.Error())
		return
	}
	// Both fields are checked before either is applied.
	if body.StepUnit != "" {
		if _, err := domain.ParseStepUnit(string(body.StepUnit)); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	if err := a.clock.SetSpeed(body.Speed); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if body.StepUnit != "" {
		if err := a.clock.SetStepUnit(body.StepUnit); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	a.writeAnimation(w, r)
}

func (a *API) handleRange(w http.ResponseWriter, r *http.Request) {
	var body rangeRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, domain.ErrorKindValidation, "decode range: "+err.Error())
		return
	}
	start, err := series.ParseTime(body.Start)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, domain.ErrorKindValidation, "start: "+err.Error())
		return
	}
	end, err := series.ParseTime(body.End)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, domain.ErrorKindValidation, "end: "+err.Error())
		return
	}
	if err := a.clock.SetRange(start, end); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.writeAnimation(w, r)
}

func (a *API) writeAnimation(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, animationResponse{
		AnimationState: a.clock.State(),
		Progress:       a.clock.Progress(),
	})
}

// --- encoding ---

// responseEncoding picks msgpack for ?format=msgpack or a msgpack Accept header.
func responseEncoding(r *http.Request) string {
	if strings.EqualFold(r.URL.Query().Get("format"), analysis.EncodingMsgpack) ||
		strings.Contains(r.Header.Get("Accept"), analysis.ContentTypeMsgpack) {
		return analysis.EncodingMsgpack
	}
	return analysis.EncodingJSON
}

// decodeBody reads a JSON body, or msgpack when the Content-Type says so.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		return err
	}
	encoding := analysis.EncodingJSON
	if strings.HasPrefix(r.Header.Get("Content-Type"), analysis.ContentTypeMsgpack) {
		encoding = analysis.EncodingMsgpack
	}
	return analysis.Decode(data, encoding, v)
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, contentType, err := analysis.Encode(v, responseEncoding(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	writeResponse(w, r, status, &domain.ResultError{Kind: kind, Message: message})
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	re := domain.ClassifyError(err)
	writeResponse(w, r, statusFor(re), re)
}
