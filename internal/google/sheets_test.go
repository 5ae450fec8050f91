package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voyago/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(ctx context.Context) (*http.ServeMux, *httptest.Server, *SheetsService) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	srv, _ := sheets.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	s := &SheetsService{
		service:       srv,
		spreadsheetID: "sheet_tid",
		rowCache:      make(map[int64]int),
	}
	return mux, server, s
}

func TestTestConnection(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()

	mux.HandleFunc("/v4/spreadsheets/sheet_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})

	if err := s.TestConnection(ctx); err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestFindBookingRow(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()

	calls := 0
	mux.HandleFunc("/v4/spreadsheets/sheet_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {float64(7)}, {"42"}},
		})
	})

	row, err := s.FindBookingRow(ctx, 42)
	if err != nil {
		t.Fatalf("FindBookingRow failed: %v", err)
	}
	if row != 3 {
		t.Errorf("Expected row 3, got %d", row)
	}

	// Second lookup hits the cache
	if _, err := s.FindBookingRow(ctx, 42); err != nil {
		t.Fatalf("cached lookup failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 API call, got %d", calls)
	}

	if _, err := s.FindBookingRow(ctx, 999); err != ErrRowNotFound {
		t.Errorf("Expected ErrRowNotFound, got %v", err)
	}
}

func TestUpsertBookingAppendsWhenMissing(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()

	mux.HandleFunc("/v4/spreadsheets/sheet_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	mux.HandleFunc("/v4/spreadsheets/sheet_tid/values/Bookings!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{})
	})

	err := s.UpsertBooking(ctx, &models.Booking{ID: 5, RequesterName: "Anna"})
	if err != nil {
		t.Errorf("UpsertBooking failed: %v", err)
	}
}

func TestCacheOperations(t *testing.T) {
	s := &SheetsService{rowCache: make(map[int64]int)}

	s.setCachedRow(10, 4)
	if row, ok := s.getCachedRow(10); !ok || row != 4 {
		t.Errorf("Expected cached row 4, got %d (ok=%v)", row, ok)
	}

	s.deleteCacheRow(10)
	if _, ok := s.getCachedRow(10); ok {
		t.Error("Expected row to be evicted")
	}

	s.setCachedRow(11, 5)
	s.ClearCache()
	if _, ok := s.getCachedRow(11); ok {
		t.Error("Expected cache to be empty after ClearCache")
	}
}

func TestBookingRowValues(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	updatedAt := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)

	b := &models.Booking{
		ID:            123,
		RequesterID:   456,
		RequesterName: "Anna",
		Phone:         "79991234567",
		ResourceID:    1,
		ResourceName:  "Coast Express",
		Date:          time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Quantity:      2,
		Seats:         []string{"3", "4"},
		Status:        models.StatusConfirmed,
		PaymentStatus: models.PaymentPaid,
		FinalAmount:   9500,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}

	values := bookingRowValues(b)
	if len(values) != 16 {
		t.Fatalf("Expected 16 values, got %d", len(values))
	}
	if values[6] != "2026-03-10" {
		t.Errorf("Expected date at index 6, got %v", values[6])
	}
	if values[7] != "" {
		t.Errorf("Expected empty check-in for bus booking, got %v", values[7])
	}
	if values[10] != "3,4" {
		t.Errorf("Expected joined seats, got %v", values[10])
	}
	if values[13] != 9500.0 {
		t.Errorf("Expected final amount, got %v", values[13])
	}
}

func TestCellID(t *testing.T) {
	if got := cellID(float64(42)); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	if got := cellID(" 17 "); got != 17 {
		t.Errorf("Expected 17, got %d", got)
	}
	if got := cellID("ID"); got != 0 {
		t.Errorf("Expected 0 for header cell, got %d", got)
	}
}
