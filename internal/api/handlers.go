package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voyago/internal/metrics"
	"voyago/internal/models"
	"voyago/internal/service"
)

// Actor identity travels in headers; the API key authenticates the caller
// system, these identify the person it acts for.
const (
	headerActorID   = "X-Actor-Id"
	headerActorRole = "X-Actor-Role"
)

func actorFrom(r *http.Request) (int64, string) {
	id, _ := strconv.ParseInt(strings.TrimSpace(r.Header.Get(headerActorID)), 10, 64)
	role := strings.TrimSpace(r.Header.Get(headerActorRole))
	if role == "" {
		role = models.RoleRequester
	}
	return id, role
}

type createBookingBody struct {
	RequesterID   int64    `json:"requester_id"`
	RequesterName string   `json:"requester_name"`
	Phone         string   `json:"phone"`
	ResourceID    int64    `json:"resource_id"`
	Date          string   `json:"date"`
	CheckIn       string   `json:"check_in"`
	CheckOut      string   `json:"check_out"`
	Quantity      int64    `json:"quantity"`
	Seats         []string `json:"seats"`
	Amount        float64  `json:"amount"`
	CouponCode    string   `json:"coupon_code"`
	Comment       string   `json:"comment"`
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body createBookingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req := service.CreateBookingRequest{
		RequesterID:   body.RequesterID,
		RequesterName: body.RequesterName,
		Phone:         body.Phone,
		ResourceID:    body.ResourceID,
		Quantity:      body.Quantity,
		Seats:         body.Seats,
		Amount:        body.Amount,
		CouponCode:    body.CouponCode,
		Comment:       body.Comment,
	}
	var err error
	if req.Date, err = parseOptionalDate(body.Date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	if req.CheckIn, err = parseOptionalDate(body.CheckIn); err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_in format; expected YYYY-MM-DD")
		return
	}
	if req.CheckOut, err = parseOptionalDate(body.CheckOut); err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_out format; expected YYYY-MM-DD")
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// handleBookingByID routes /api/v1/bookings/{id} and its subpaths:
// GET    /api/v1/bookings/{id}
// POST   /api/v1/bookings/{id}/transition
// GET    /api/v1/bookings/{id}/cancellation-quote
func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	idStr, sub, _ := strings.Cut(rest, "/")
	bookingID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "booking id is required")
		return
	}

	switch sub {
	case "":
		metrics.IncHTTP("booking_get")
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		booking, err := s.bookings.GetBooking(r.Context(), bookingID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case "transition":
		metrics.IncHTTP("booking_transition")
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var body struct {
			ToStatus string `json:"to_status"`
			Version  int64  `json:"version"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		actorID, actorRole := actorFrom(r)
		if err := s.bookings.Transition(r.Context(), bookingID, body.Version, body.ToStatus, actorID, actorRole); err != nil {
			writeDomainError(w, err)
			return
		}
		booking, err := s.bookings.GetBooking(r.Context(), bookingID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case "cancellation-quote":
		metrics.IncHTTP("cancellation_quote")
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		_, actorRole := actorFrom(r)
		pct, amount, err := s.bookings.CancellationQuote(r.Context(), bookingID, actorRole)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"refund_percentage": pct,
			"refund_amount":     amount,
		})

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleUserBookings serves GET /api/v1/users/{id}/bookings.
func (s *HTTPServer) handleUserBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("user_bookings")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
	idStr, sub, _ := strings.Cut(rest, "/")
	if sub != "bookings" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	userID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	bookings, err := s.bookings.GetUserBookings(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleCouponValidate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("coupon_validate")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Code        string  `json:"code"`
		RequesterID int64   `json:"requester_id"`
		ServiceType string  `json:"service_type"`
		Amount      float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	_, result, err := s.coupons.Validate(r.Context(), body.Code, body.RequesterID, body.ServiceType, body.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleCouponCreate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("coupon_create")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	_, actorRole := actorFrom(r)
	if actorRole != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "only administrators may create coupons")
		return
	}

	var c models.Coupon
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(c.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := s.store.CreateCoupon(r.Context(), &c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleGroups routes /api/v1/groups/{tourID}/{action}:
// POST join | approve | reject | leave, GET members.
func (s *HTTPServer) handleGroups(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("groups")
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/groups/")
	idStr, action, _ := strings.Cut(rest, "/")
	tourID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "tour id is required")
		return
	}

	actorID, actorRole := actorFrom(r)

	switch action {
	case "join":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		m, err := s.groups.RequestJoin(r.Context(), tourID, actorID, body.Message)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)

	case "approve", "reject":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var body struct {
			UserID int64 `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if action == "approve" {
			err = s.groups.Approve(r.Context(), tourID, body.UserID, actorID, actorRole)
		} else {
			err = s.groups.Reject(r.Context(), tourID, body.UserID, actorID, actorRole)
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case "leave":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := s.groups.Leave(r.Context(), tourID, actorID); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case "members":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		members, err := s.groups.Members(r.Context(), tourID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		approved, err := s.groups.ApprovedCount(r.Context(), tourID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"members":        members,
			"approved_count": approved,
		})

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleTours serves POST /api/v1/tours/{id}/end.
func (s *HTTPServer) handleTours(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("tours")
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/tours/")
	idStr, action, _ := strings.Cut(rest, "/")
	if action != "end" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tourID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "tour id is required")
		return
	}

	actorID, actorRole := actorFrom(r)
	released, err := s.bookings.EndTour(r.Context(), tourID, actorID, actorRole)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"released": released})
}

func parseOptionalDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(models.DateFormat, raw)
}
