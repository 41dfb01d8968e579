package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/weirdgate/weirdgate/internal/core"
	"github.com/weirdgate/weirdgate/internal/core/engine"
	apperrors "github.com/weirdgate/weirdgate/internal/errors"
	"github.com/weirdgate/weirdgate/internal/metrics"
	"github.com/weirdgate/weirdgate/internal/observability"
)

const maxRequestBytes = 1 << 20

// SamplingAPI serves weird decisions and sampling administration.
type SamplingAPI struct {
	Reporter *engine.Reporter
	Objects  *engine.ObjectIndex

	// Persist, if set, runs after every accepted settings change with the
	// name of the one setting that changed. A failure is logged; the
	// in-memory change stands.
	Persist func(ctx context.Context, setting string) error
}

// SettingsResponse is the full sampling configuration.
type SettingsResponse struct {
	Threshold      uint64   `json:"threshold"`
	Rate           uint64   `json:"rate"`
	Window         string   `json:"window"`
	NormalizePairs bool     `json:"normalize_pairs"`
	Exemptions     []string `json:"exemptions"`
	Global         []string `json:"global"`
	TrackedWindows int      `json:"tracked_windows"`
}

// NumberValue is the body for threshold and rate.
type NumberValue struct {
	Value *uint64 `json:"value"`
}

// DurationValue is the body for the window duration, e.g. {"value":"5s"}.
type DurationValue struct {
	Value string `json:"value"`
}

// BoolValue is the body for switches.
type BoolValue struct {
	Value *bool `json:"value"`
}

// NamesValue is the body for name lists.
type NamesValue struct {
	Names []string `json:"names"`
}

// WindowsResponse lists tracked windows.
type WindowsResponse struct {
	Count   int                `json:"count"`
	Windows []core.WindowEntry `json:"windows"`
}

// WeirdRequest raises a weird.
type WeirdRequest struct {
	Name   string `json:"name"`
	Scope  string `json:"scope"`
	A      string `json:"a,omitempty"`
	B      string `json:"b,omitempty"`
	ID     string `json:"id,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// WeirdResponse reports the decision for a raised weird.
type WeirdResponse struct {
	Decision string `json:"decision"`
	Key      string `json:"key"`
}

// ObjectRequest registers a live object.
type ObjectRequest struct {
	Source string `json:"source,omitempty"`
}

// Routes mounts the API under /v1.
func (a *SamplingAPI) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/sampling", a.GetSettings)
		r.Get("/sampling/threshold", a.GetThreshold)
		r.Put("/sampling/threshold", a.PutThreshold)
		r.Get("/sampling/rate", a.GetRate)
		r.Put("/sampling/rate", a.PutRate)
		r.Get("/sampling/window", a.GetWindow)
		r.Put("/sampling/window", a.PutWindow)
		r.Get("/sampling/normalize_pairs", a.GetNormalizePairs)
		r.Put("/sampling/normalize_pairs", a.PutNormalizePairs)
		r.Get("/sampling/exemptions", a.GetExemptions)
		r.Put("/sampling/exemptions", a.PutExemptions)
		r.Get("/sampling/global", a.GetGlobal)
		r.Put("/sampling/global", a.PutGlobal)
		r.Get("/sampling/windows", a.ListWindows)
		r.Delete("/sampling/windows", a.ResetWindows)

		r.Post("/weirds", a.RaiseWeird)

		r.Get("/objects", a.ListObjects)
		r.Put("/objects/{id}", a.RegisterObject)
		r.Delete("/objects/{id}", a.ForgetObject)
	})
}

func (a *SamplingAPI) engine() *engine.Engine {
	return a.Reporter.Engine
}

// GetSettings returns every sampling parameter.
func (a *SamplingAPI) GetSettings(w http.ResponseWriter, r *http.Request) {
	e := a.engine()
	settings := e.Settings()
	writeJSON(w, http.StatusOK, SettingsResponse{
		Threshold:      settings.Threshold,
		Rate:           settings.Rate,
		Window:         settings.WindowDuration.String(),
		NormalizePairs: e.NormalizePairs(),
		Exemptions:     e.GetExemptionList(),
		Global:         e.GetGlobalList(),
		TrackedWindows: e.Ledger().Len(),
	})
}

func (a *SamplingAPI) GetThreshold(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"value": a.engine().GetThreshold()})
}

func (a *SamplingAPI) PutThreshold(w http.ResponseWriter, r *http.Request) {
	var body NumberValue
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Value == nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("value is required"))
		return
	}

	a.engine().SetThreshold(*body.Value)
	a.persist(r.Context(), "threshold")
	a.GetThreshold(w, r)
}

func (a *SamplingAPI) GetRate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"value": a.engine().GetRate()})
}

// PutRate rejects zero with 400 and leaves the rate unchanged.
func (a *SamplingAPI) PutRate(w http.ResponseWriter, r *http.Request) {
	var body NumberValue
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Value == nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("value is required"))
		return
	}

	if err := a.engine().SetRate(*body.Value); err != nil {
		respondWithError(w, r, apperrors.WrapSampling(r.Context(), err, "rate must be at least 1"))
		return
	}
	a.persist(r.Context(), "rate")
	a.GetRate(w, r)
}

func (a *SamplingAPI) GetWindow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"value": a.engine().GetWindowDuration().String()})
}

func (a *SamplingAPI) PutWindow(w http.ResponseWriter, r *http.Request) {
	var body DurationValue
	if !decodeBody(w, r, &body) {
		return
	}

	d, err := time.ParseDuration(strings.TrimSpace(body.Value))
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "value must be a duration such as 10m"))
		return
	}
	if err := a.engine().SetWindowDuration(d); err != nil {
		respondWithError(w, r, apperrors.WrapSampling(r.Context(), err, "window duration must not be negative"))
		return
	}
	a.persist(r.Context(), "window")
	a.GetWindow(w, r)
}

func (a *SamplingAPI) GetNormalizePairs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"value": a.engine().NormalizePairs()})
}

func (a *SamplingAPI) PutNormalizePairs(w http.ResponseWriter, r *http.Request) {
	var body BoolValue
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Value == nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("value is required"))
		return
	}

	a.engine().SetNormalizePairs(*body.Value)
	a.persist(r.Context(), "normalize_pairs")
	a.GetNormalizePairs(w, r)
}

func (a *SamplingAPI) GetExemptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NamesValue{Names: a.engine().GetExemptionList()})
}

// PutExemptions replaces the whole exemption list. An empty list clears it.
func (a *SamplingAPI) PutExemptions(w http.ResponseWriter, r *http.Request) {
	var body NamesValue
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Names == nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("names is required"))
		return
	}

	a.engine().SetExemptionList(core.CleanNames(body.Names))
	a.persist(r.Context(), "exemptions")
	a.GetExemptions(w, r)
}

func (a *SamplingAPI) GetGlobal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NamesValue{Names: a.engine().GetGlobalList()})
}

func (a *SamplingAPI) PutGlobal(w http.ResponseWriter, r *http.Request) {
	var body NamesValue
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Names == nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("names is required"))
		return
	}

	a.engine().SetGlobalList(core.CleanNames(body.Names))
	a.persist(r.Context(), "global")
	a.GetGlobal(w, r)
}

// ListWindows returns tracked windows, optionally filtered by name prefix.
func (a *SamplingAPI) ListWindows(w http.ResponseWriter, r *http.Request) {
	entries := a.engine().Ledger().Snapshot(strings.TrimSpace(r.URL.Query().Get("prefix")))
	writeJSON(w, http.StatusOK, WindowsResponse{Count: len(entries), Windows: entries})
}

// ResetWindows drops every tracked window.
func (a *SamplingAPI) ResetWindows(w http.ResponseWriter, r *http.Request) {
	ledger := a.engine().Ledger()
	removed := ledger.Len()
	ledger.Reset()
	metrics.SetLedgerKeys(0)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// RaiseWeird makes a sampling decision for one weird.
func (a *SamplingAPI) RaiseWeird(w http.ResponseWriter, r *http.Request) {
	var body WeirdRequest
	if !decodeBody(w, r, &body) {
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("name is required"))
		return
	}

	c, err := body.context()
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid weird context"))
		return
	}

	res, err := a.Reporter.Decide(name, c, body.Detail)
	if err != nil {
		message := "weird decision failed"
		if errors.Is(err, core.ErrObjectNotFound) {
			metrics.RecordObjectNotFound()
			message = fmt.Sprintf("object %q is not registered", c.ID)
		}
		respondWithError(w, r, apperrors.WrapSampling(r.Context(), err, message))
		return
	}

	writeJSON(w, http.StatusOK, WeirdResponse{
		Decision: res.Outcome.String(),
		Key:      res.Key.String(),
	})
}

func (req WeirdRequest) context() (core.Context, error) {
	kind, err := core.ParseContextKind(req.Scope)
	if err != nil {
		return core.NoContext(), err
	}

	switch kind {
	case core.ContextEndpointPair:
		a, err := parseOptionalAddr(req.A)
		if err != nil {
			return core.NoContext(), err
		}
		b, err := parseOptionalAddr(req.B)
		if err != nil {
			return core.NoContext(), err
		}
		return core.EndpointPairContext(a, b), nil
	case core.ContextConnection:
		return core.ConnectionContext(strings.TrimSpace(req.ID)), nil
	case core.ContextObject:
		id := strings.TrimSpace(req.ID)
		if id == "" {
			return core.NoContext(), fmt.Errorf("%w: object scope requires id", core.ErrInvalidArgument)
		}
		return core.ObjectContext(id), nil
	default:
		return core.NoContext(), nil
	}
}

func parseOptionalAddr(value string) (netip.Addr, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}
	return addr, nil
}

func (a *SamplingAPI) ListObjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Objects.List())
}

// RegisterObject makes an object resolvable for object-scoped weirds.
func (a *SamplingAPI) RegisterObject(w http.ResponseWriter, r *http.Request) {
	var body ObjectRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if !a.Objects.Register(engine.ObjectInfo{ID: id, Source: body.Source}) {
		respondWithError(w, r, apperrors.NewInvalidInputError("object id is required"))
		return
	}
	metrics.SetRegisteredObjects(a.Objects.Len())

	info, _ := a.Objects.ResolveObject(id)
	writeJSON(w, http.StatusOK, info)
}

func (a *SamplingAPI) ForgetObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.Objects.Forget(id) {
		respondWithError(w, r, apperrors.NewNotFoundError(fmt.Sprintf("object %q is not registered", id)))
		return
	}
	metrics.SetRegisteredObjects(a.Objects.Len())
	w.WriteHeader(http.StatusNoContent)
}

func (a *SamplingAPI) persist(ctx context.Context, setting string) {
	if a.Persist == nil {
		return
	}
	if err := a.Persist(ctx, setting); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to persist sampling settings",
			zap.String("setting", setting),
			zap.Error(err))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid JSON body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
