package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voyago/internal/config"
	"voyago/internal/database"
	"voyago/internal/domain"
	"voyago/internal/metrics"
	"voyago/internal/models"
	"voyago/internal/service"

	"github.com/rs/zerolog"
)

// OccupancyExporter builds an occupancy report file and returns its path.
type OccupancyExporter interface {
	OccupancyReport(ctx context.Context, startDate, endDate time.Time) (string, error)
}

// HTTPServer exposes the booking engine over a small JSON API.
type HTTPServer struct {
	cfg      config.APIConfig
	catalog  domain.ResourceCatalog
	ledger   domain.InventoryLedger
	coupons  domain.CouponEngine
	store    domain.CouponStore
	bookings *service.BookingService
	groups   *service.GroupService
	exporter OccupancyExporter
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, catalog domain.ResourceCatalog, ledger domain.InventoryLedger, coupons domain.CouponEngine, store domain.CouponStore, bookings *service.BookingService, groups *service.GroupService, exporter OccupancyExporter, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:      cfg,
		catalog:  catalog,
		ledger:   ledger,
		coupons:  coupons,
		store:    store,
		bookings: bookings,
		groups:   groups,
		exporter: exporter,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/availability/bulk", srv.handleAvailabilityBulk)
	mux.HandleFunc("/api/v1/availability/", srv.handleAvailability)
	mux.HandleFunc("/api/v1/resources", srv.handleResources)
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingByID)
	mux.HandleFunc("/api/v1/users/", srv.handleUserBookings)
	mux.HandleFunc("/api/v1/coupons/validate", srv.handleCouponValidate)
	mux.HandleFunc("/api/v1/coupons", srv.handleCouponCreate)
	mux.HandleFunc("/api/v1/groups/", srv.handleGroups)
	mux.HandleFunc("/api/v1/tours/", srv.handleTours)
	mux.HandleFunc("/api/v1/reports/occupancy", srv.handleOccupancyReport)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleAvailability serves GET /api/v1/availability/{resourceID}.
// Buses take ?date=, hotels ?check_in=&check_out=, tours need no window.
// With ?start=&days= a bus returns its per-day calendar instead.
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/availability/")
	resourceID, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "resource id is required")
		return
	}

	q := r.URL.Query()
	if startStr := strings.TrimSpace(q.Get("start")); startStr != "" {
		start, err := time.Parse(models.DateFormat, startStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start format; expected YYYY-MM-DD")
			return
		}
		days := 7
		if d := strings.TrimSpace(q.Get("days")); d != "" {
			days, err = strconv.Atoi(d)
			if err != nil || days <= 0 || days > 90 {
				writeError(w, http.StatusBadRequest, "days must be between 1 and 90")
				return
			}
		}
		calendar, err := s.ledger.AvailabilityForPeriod(r.Context(), resourceID, start, days)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"days": calendar})
		return
	}

	query, err := parseAvailabilityQuery(q.Get("date"), q.Get("check_in"), q.Get("check_out"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	available, err := s.ledger.Availability(r.Context(), resourceID, query)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resource_id": resourceID,
		"available":   available,
	})
}

func (s *HTTPServer) handleAvailabilityBulk(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability_bulk")
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		Resources []string `json:"resources"`
		Dates     []string `json:"dates"`
	}

	var body request
	if r.Method == http.MethodGet {
		body.Resources = splitCSV(r.URL.Query().Get("resources"))
		body.Dates = splitCSV(r.URL.Query().Get("dates"))
	} else {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	if len(body.Resources) == 0 {
		writeError(w, http.StatusBadRequest, "resources is required")
		return
	}
	if len(body.Dates) == 0 {
		writeError(w, http.StatusBadRequest, "dates is required")
		return
	}

	results := make([]map[string]any, 0, len(body.Resources)*len(body.Dates))
	for _, rawID := range body.Resources {
		resourceID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if err != nil {
			continue
		}
		for _, rawDate := range body.Dates {
			dateStr := strings.TrimSpace(rawDate)
			if dateStr == "" {
				continue
			}
			date, err := time.Parse(models.DateFormat, dateStr)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date format: %s", dateStr))
				return
			}

			available, err := s.ledger.Availability(r.Context(), resourceID, models.AvailabilityQuery{Date: date})
			if err != nil {
				// Unknown resources are skipped rather than failing the batch
				continue
			}

			results = append(results, map[string]any{
				"resource_id": resourceID,
				"date":        dateStr,
				"available":   available,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *HTTPServer) handleResources(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("resources")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resources := s.catalog.GetResources()
	if rt := strings.TrimSpace(r.URL.Query().Get("type")); rt != "" {
		resources = s.catalog.GetActiveResources(rt)
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

// handleOccupancyReport serves GET /api/v1/reports/occupancy?start_date=&end_date=
// and streams the generated xlsx file.
func (s *HTTPServer) handleOccupancyReport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reports_occupancy")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "reports are disabled")
		return
	}

	startDate, err := time.Parse(models.DateFormat, r.URL.Query().Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date, expected YYYY-MM-DD")
		return
	}
	endDate, err := time.Parse(models.DateFormat, r.URL.Query().Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date, expected YYYY-MM-DD")
		return
	}

	path, err := s.exporter.OccupancyReport(r.Context(), startDate, endDate)
	if err != nil {
		s.logger.Error().Err(err).Msg("occupancy report failed")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func parseAvailabilityQuery(dateStr, checkInStr, checkOutStr string) (models.AvailabilityQuery, error) {
	var query models.AvailabilityQuery
	if dateStr = strings.TrimSpace(dateStr); dateStr != "" {
		date, err := time.Parse(models.DateFormat, dateStr)
		if err != nil {
			return query, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
		}
		query.Date = date
	}
	if checkInStr = strings.TrimSpace(checkInStr); checkInStr != "" {
		checkIn, err := time.Parse(models.DateFormat, checkInStr)
		if err != nil {
			return query, fmt.Errorf("invalid check_in format; expected YYYY-MM-DD")
		}
		query.CheckIn = checkIn
	}
	if checkOutStr = strings.TrimSpace(checkOutStr); checkOutStr != "" {
		checkOut, err := time.Parse(models.DateFormat, checkOutStr)
		if err != nil {
			return query, fmt.Errorf("invalid check_out format; expected YYYY-MM-DD")
		}
		query.CheckOut = checkOut
	}
	return query, nil
}

// writeDomainError maps sentinel errors to HTTP statuses: missing things
// are 404, capacity and version conflicts are 409, authorization is 403,
// the rest of the domain rejections are 422.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrResourceNotFound),
		errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrReservationNotFound),
		errors.Is(err, database.ErrCouponNotFound),
		errors.Is(err, database.ErrMembershipNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrInsufficientCapacity),
		errors.Is(err, database.ErrSeatTaken),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, database.ErrAlreadyReleased),
		errors.Is(err, database.ErrGroupFull),
		errors.Is(err, database.ErrAlreadyMember):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrTransitionNotAllowed),
		errors.Is(err, service.ErrGroupTourBooking),
		errors.Is(err, service.ErrNotGroupTour),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, database.ErrResourceInactive),
		errors.Is(err, database.ErrUnknownSeat),
		errors.Is(err, database.ErrPastDate),
		errors.Is(err, database.ErrDateTooFar),
		errors.Is(err, database.ErrMembershipDecided),
		isCouponRejection(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func isCouponRejection(err error) bool {
	for _, target := range []error{
		database.ErrCouponNotYetValid,
		database.ErrCouponExpired,
		database.ErrCouponInactive,
		database.ErrCouponAlreadyUsed,
		database.ErrCouponServiceMismatch,
		database.ErrCouponBelowMinimum,
		database.ErrCouponLimitReached,
		database.ErrCouponCodeExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
