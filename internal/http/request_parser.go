package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mess/internal/services"
	"mess/internal/window"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 16 << 20
)

// errBadRequest marks client errors found while parsing a request.
var errBadRequest = errors.New("bad request")

type memberRequest struct {
	Name string `json:"name"`
}

type mealRequest struct {
	Date     string `json:"date"`
	MemberID string `json:"memberId"`
	Slot     string `json:"slot"`
	Value    bool   `json:"value"`
}

type mealCountRequest struct {
	Date        string  `json:"date"`
	MemberID    string  `json:"memberId"`
	LunchCount  float64 `json:"lunchCount"`
	DinnerCount float64 `json:"dinnerCount"`
}

// decodeJSON reads a single JSON value from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// readBody reads the raw body up to limit bytes.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return data, nil
}

// parseWindow reads mode, year and month from the query. With none of
// them set the deployment default is used.
func parseWindow(r *http.Request, def window.Window) (window.Window, error) {
	q := r.URL.Query()
	mode := strings.TrimSpace(q.Get("mode"))
	year, err := queryInt(r, "year")
	if err != nil {
		return window.Window{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	month, err := queryInt(r, "month")
	if err != nil {
		return window.Window{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if mode == "" && year == 0 && month == 0 {
		return def, nil
	}
	w, err := window.Parse(mode, year, month)
	if err != nil {
		return window.Window{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return w, nil
}

func roleOf(r *http.Request) services.Role {
	return services.ParseRole(r.Header.Get(RoleHeader))
}
