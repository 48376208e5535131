package drone_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"drone-dispatch/internal/common"
	"drone-dispatch/internal/drone"
	"drone-dispatch/internal/testutil"
)

func newRouter(t *testing.T, drones ...*drone.Drone) (*gin.Engine, *testutil.DroneRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := testutil.NewDroneRepo(common.NewFixedClock(time.Now()), drones...)
	h := drone.NewHandler(drone.NewDroneService(repo, nil, minBattery))

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r, repo
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestHandler_CreateLoadUnload(t *testing.T) {
	r, _ := newRouter(t)

	w := do(r, http.MethodPost, "/api/v1/drones", `{"serial_number":"DRN-B","model":"heavyweight","battery_capacity":95}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[drone.Drone](t, w)
	if created.State != drone.StateIdle {
		t.Fatalf("expected idle, got %s", created.State)
	}

	w = do(r, http.MethodPost, fmt.Sprintf("/api/v1/drones/%s/load", created.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("load: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[drone.Drone](t, w); got.State != drone.StateLoading {
		t.Fatalf("expected loading, got %s", got.State)
	}

	w = do(r, http.MethodPost, fmt.Sprintf("/api/v1/drones/%s/unload", created.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("unload: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[drone.Drone](t, w); got.State != drone.StateIdle {
		t.Fatalf("expected idle, got %s", got.State)
	}
}

func TestHandler_ErrorStatuses(t *testing.T) {
	delivering := droneIn(drone.StateDelivering, 90)
	drained := droneIn(drone.StateIdle, 5)
	r, _ := newRouter(t, delivering, drained)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"bad id", "/api/v1/drones/not-a-uuid/load", http.StatusBadRequest},
		{"unknown drone", "/api/v1/drones/00000000-0000-0000-0000-000000000001/load", http.StatusNotFound},
		{"wrong state", fmt.Sprintf("/api/v1/drones/%s/load", delivering.ID), http.StatusUnprocessableEntity},
		{"low battery", fmt.Sprintf("/api/v1/drones/%s/load", drained.ID), http.StatusBadRequest},
		{"not loaded", fmt.Sprintf("/api/v1/drones/%s/ready", drained.ID), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, tt.path, "")
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandler_CreateValidation(t *testing.T) {
	r, _ := newRouter(t)

	for _, body := range []string{
		`{"model":"heavyweight"}`,
		`{"serial_number":"X","model":"jumbo"}`,
		`{"serial_number":"X","model":"heavyweight","battery_capacity":101}`,
		`{"serial_number":"X","model":"heavyweight","weight_limit":501}`,
	} {
		if w := do(r, http.MethodPost, "/api/v1/drones", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestHandler_ListNoPaginateReturnsArray(t *testing.T) {
	r, _ := newRouter(t, drone.DefaultFleet()...)

	w := do(r, http.MethodGet, "/api/v1/drones?nopaginate=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decode[[]drone.Drone](t, w); len(got) != 10 {
		t.Fatalf("expected 10 drones, got %d", len(got))
	}

	w = do(r, http.MethodGet, "/api/v1/drones?limit=3", "")
	page := decode[common.Page[drone.Drone]](t, w)
	if page.Total != 10 || len(page.Items) != 3 || page.Limit != 3 {
		t.Fatalf("unexpected page: total=%d items=%d limit=%d", page.Total, len(page.Items), page.Limit)
	}
}
