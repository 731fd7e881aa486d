package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/app/query"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

// SensorQueries is implemented by query.Translator.
type SensorQueries interface {
	Floors(ctx context.Context, timeRange string) ([]string, error)
	Sensors(ctx context.Context, floor, timeRange string) ([]string, error)
	Fields(ctx context.Context, floor, sensor, timeRange string) ([]string, error)
	Values(ctx context.Context, floor, sensor, field, timeRange string) ([]domain.SensorValue, error)
	AllValues(ctx context.Context, floor, sensor, timeRange string) ([]domain.SensorSeries, error)
}

// ThresholdStore is implemented by thresholds.Store.
type ThresholdStore interface {
	All() map[domain.SensorType]domain.Threshold
	Get(typ domain.SensorType) (domain.Threshold, error)
	Set(typ domain.SensorType, th domain.Threshold) error
}

type Health struct {
	Status     string `json:"status"`
	Connection string `json:"connection"`
}

type Handler struct {
	queries    SensorQueries
	thresholds ThresholdStore
	obs        ports.Observability
}

func NewHandler(queries SensorQueries, thresholds ThresholdStore, obs ports.Observability) *Handler {
	return &Handler{queries: queries, thresholds: thresholds, obs: obs}
}

func (h *Handler) Floors(w http.ResponseWriter, r *http.Request) {
	floors, err := h.queries.Floors(r.Context(), timeRange(r))
	h.respondList(w, floors, len(floors), err, "no floors found")
}

func (h *Handler) Sensors(w http.ResponseWriter, r *http.Request) {
	floor := chi.URLParam(r, "floor")
	sensors, err := h.queries.Sensors(r.Context(), floor, timeRange(r))
	h.respondList(w, sensors, len(sensors), err, "no sensors found for floor "+floor)
}

func (h *Handler) Fields(w http.ResponseWriter, r *http.Request) {
	floor, sensor := chi.URLParam(r, "floor"), chi.URLParam(r, "sensorId")
	fields, err := h.queries.Fields(r.Context(), floor, sensor, timeRange(r))
	h.respondList(w, fields, len(fields), err, "no data found for sensor "+sensor)
}

func (h *Handler) Values(w http.ResponseWriter, r *http.Request) {
	floor, sensor := chi.URLParam(r, "floor"), chi.URLParam(r, "sensorId")
	field := chi.URLParam(r, "sensorType")
	values, err := h.queries.Values(r.Context(), floor, sensor, field, timeRange(r))
	h.respondList(w, values, len(values), err, "no "+field+" values found for sensor "+sensor)
}

func (h *Handler) AllValues(w http.ResponseWriter, r *http.Request) {
	floor, sensor := chi.URLParam(r, "floor"), chi.URLParam(r, "sensorId")
	series, err := h.queries.AllValues(r.Context(), floor, sensor, timeRange(r))
	h.respondList(w, series, len(series), err, "no values found for sensor "+sensor)
}

// respondList maps query results: bad ranges are 400, failures and empty results 404.
func (h *Handler) respondList(w http.ResponseWriter, body any, n int, err error, notFound string) {
	switch {
	case errors.Is(err, query.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusNotFound, notFound)
	case n == 0:
		writeError(w, http.StatusNotFound, notFound)
	default:
		writeJSON(w, http.StatusOK, body)
	}
}

func (h *Handler) Thresholds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.thresholds.All())
}

func (h *Handler) Threshold(w http.ResponseWriter, r *http.Request) {
	typ, err := domain.ParseSensorType(chi.URLParam(r, "sensorType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	th, err := h.thresholds.Get(typ)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, th)
}

func (h *Handler) SetThreshold(w http.ResponseWriter, r *http.Request) {
	typ, err := domain.ParseSensorType(chi.URLParam(r, "sensorType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var th domain.Threshold
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&th); err != nil {
		writeError(w, http.StatusBadRequest, "invalid threshold body: "+err.Error())
		return
	}
	if err := h.thresholds.Set(typ, th); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.obs.LogInfo("threshold_updated", ports.Field{Key: "type", Value: string(typ)})
	writeJSON(w, http.StatusOK, th)
}

func (h *Handler) health(fn func() Health) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		hs := Health{Status: "ok"}
		if fn != nil {
			hs = fn()
		}
		writeJSON(w, http.StatusOK, hs)
	}
}

func (h *Handler) stats(fn func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, fn())
	}
}

type roomHandler struct {
	repo ports.RoomRepository
	obs  ports.Observability
}

func (rh *roomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := rh.repo.ListRooms(r.Context())
	if err != nil {
		rh.obs.LogError("rooms_list_failed", err)
		writeError(w, http.StatusInternalServerError, "could not load rooms")
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (rh *roomHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "room id must be an integer")
		return
	}
	room, err := rh.repo.GetRoom(r.Context(), id)
	if errors.Is(err, domain.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		rh.obs.LogError("room_get_failed", err, ports.Field{Key: "id", Value: id})
		writeError(w, http.StatusInternalServerError, "could not load room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func timeRange(r *http.Request) string {
	return r.URL.Query().Get("timeRange")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type mappingHandler struct {
	store ports.MappingStore
	obs   ports.Observability
}

// mappingRequest keeps roomId optional so a missing room is told apart from room 0.
type mappingRequest struct {
	SensorID string `json:"sensorId"`
	Floor    string `json:"floor"`
	RoomID   *int   `json:"roomId"`
}

func (mh *mappingHandler) List(w http.ResponseWriter, r *http.Request) {
	mappings, err := mh.store.ListMappings(r.Context())
	if err != nil {
		mh.obs.LogError("mappings_list_failed", err)
		writeError(w, http.StatusInternalServerError, "could not load sensor mappings")
		return
	}
	writeJSON(w, http.StatusOK, mappings)
}

func (mh *mappingHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid mapping body: "+err.Error())
		return
	}
	if req.SensorID == "" || req.Floor == "" || req.RoomID == nil {
		writeError(w, http.StatusBadRequest, "sensorId, floor and roomId are required")
		return
	}
	saved, err := mh.store.SaveMapping(r.Context(), domain.SensorMapping{SensorID: req.SensorID, Floor: req.Floor, RoomID: *req.RoomID})
	if errors.Is(err, domain.ErrInvalidMapping) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		mh.obs.LogError("mapping_save_failed", err,
			ports.Field{Key: "floor", Value: req.Floor},
			ports.Field{Key: "sensor", Value: req.SensorID})
		writeError(w, http.StatusInternalServerError, "could not save sensor mapping")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (mh *mappingHandler) Remove(w http.ResponseWriter, r *http.Request) {
	floor, sensor := chi.URLParam(r, "floor"), chi.URLParam(r, "sensorId")
	err := mh.store.RemoveMapping(r.Context(), floor, sensor)
	if errors.Is(err, domain.ErrMappingNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		mh.obs.LogError("mapping_remove_failed", err,
			ports.Field{Key: "floor", Value: floor},
			ports.Field{Key: "sensor", Value: sensor})
		writeError(w, http.StatusInternalServerError, "could not remove sensor mapping")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (mh *mappingHandler) RoomForSensor(w http.ResponseWriter, r *http.Request) {
	floor, sensor := chi.URLParam(r, "floor"), chi.URLParam(r, "sensorId")
	room, err := mh.store.RoomForSensor(r.Context(), floor, sensor)
	if errors.Is(err, domain.ErrMappingNotFound) {
		writeError(w, http.StatusNotFound, "no room assigned to sensor "+sensor+" on floor "+floor)
		return
	}
	if err != nil {
		mh.obs.LogError("mapping_lookup_failed", err,
			ports.Field{Key: "floor", Value: floor},
			ports.Field{Key: "sensor", Value: sensor})
		writeError(w, http.StatusInternalServerError, "could not look up room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (mh *mappingHandler) SensorsForRoom(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "roomId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "room id must be an integer")
		return
	}
	mappings, err := mh.store.SensorsForRoom(r.Context(), id)
	if err != nil {
		mh.obs.LogError("mapping_lookup_failed", err, ports.Field{Key: "room", Value: id})
		writeError(w, http.StatusInternalServerError, "could not load sensors for room")
		return
	}
	writeJSON(w, http.StatusOK, mappings)
}

func notConfigured(what string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, what+" are not configured")
	}
}
