package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/caredash/kpiengine/internal/adapters/repository"
	service "github.com/caredash/kpiengine/internal/app"
	"github.com/caredash/kpiengine/internal/domain/model"
)

type stubDeps struct {
	outcome    model.CycleOutcome
	runErr     error
	stats      Stats
	scores     []model.CompositeScore
	alerts     []model.Alert
	listErr    error
	acked      model.Alert
	ackErr     error
	lastAckBy  string
	lastLimit  int
	lastOpen   bool
	getByID    map[uint64]model.Alert
	scoresByID map[string]model.CompositeScore
}

func (d *stubDeps) RunCycle(_ context.Context) (model.CycleOutcome, error) {
	return d.outcome, d.runErr
}

func (d *stubDeps) GetStats(_ context.Context) (Stats, error) {
	return d.stats, nil
}

func (d *stubDeps) ListScores(_ context.Context, limit int) ([]model.CompositeScore, error) {
	d.lastLimit = limit
	return d.scores, d.listErr
}

func (d *stubDeps) GetScore(_ context.Context, subjectID string) (model.CompositeScore, error) {
	sc, ok := d.scoresByID[subjectID]
	if !ok {
		return model.CompositeScore{}, repository.ErrNotFound
	}
	return sc, nil
}

func (d *stubDeps) ListAlerts(_ context.Context, onlyOpen bool, limit int) ([]model.Alert, error) {
	d.lastOpen = onlyOpen
	d.lastLimit = limit
	return d.alerts, d.listErr
}

func (d *stubDeps) GetAlert(_ context.Context, id uint64) (model.Alert, error) {
	a, ok := d.getByID[id]
	if !ok {
		return model.Alert{}, repository.ErrNotFound
	}
	return a, nil
}

func (d *stubDeps) AcknowledgeAlert(_ context.Context, id uint64, by string) (model.Alert, error) {
	if d.ackErr != nil {
		return model.Alert{}, d.ackErr
	}
	d.lastAckBy = by
	return d.acked, nil
}

func newTestServer(deps *stubDeps) *httptest.Server {
	mux := http.NewServeMux()
	NewServer(deps, 500).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func testScore(id string, composite float64) model.CompositeScore {
	wait := 22.5
	return model.CompositeScore{
		SubjectID:      id,
		SubjectName:    "Dr. " + id,
		ResponsesCount: 12,
		NPSPct:         25,
		ReadmissionPct: 5,
		AvgWaitMinutes: &wait,
		FollowupPct:    0.7,
		Composite:      composite,
		ComputedAt:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func testAlert(id uint64) model.Alert {
	return model.Alert{
		ID:         id,
		CreatedAt:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Type:       model.AlertLowNPS,
		ObjectType: model.SubjectDoctor,
		ObjectID:   "doc-1",
		Metric:     model.MetricAvgRating,
		Value:      5.5,
		Threshold:  6,
		Severity:   model.SeverityMedium,
		Message:    "average patient rating for doctor doc-1 = 5.5 <= 6.0",
	}
}

func TestRefreshEndpoint(t *testing.T) {
	Convey("Given a refresh endpoint", t, func() {
		deps := &stubDeps{outcome: model.CycleOutcome{
			CycleID: "cycle-1", State: model.StageCommitted, SubjectsScored: 3,
		}}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("POST runs a cycle and returns its outcome", func() {
			resp, err := http.Post(srv.URL+"/refresh", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var out model.CycleOutcome
			So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
			So(out.CycleID, ShouldEqual, "cycle-1")
			So(out.SubjectsScored, ShouldEqual, 3)
		})

		Convey("A concurrent cycle yields 409", func() {
			deps.runErr = service.ErrCycleInProgress
			resp, err := http.Post(srv.URL+"/refresh", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)

			var out errorResponse
			So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
			So(out.Code, ShouldEqual, "cycle_in_progress")
		})

		Convey("A failed cycle yields 500 with the outcome body", func() {
			deps.runErr = errors.New("snapshot load failed")
			deps.outcome = model.CycleOutcome{
				CycleID: "cycle-2", State: model.StageFailed,
				FailedStage: model.StageExtracting, Error: "snapshot load failed",
			}
			resp, err := http.Post(srv.URL+"/refresh", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)

			var out model.CycleOutcome
			So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
			So(out.FailedStage, ShouldEqual, model.StageExtracting)
		})

		Convey("GET is not routed", func() {
			resp, err := http.Get(srv.URL + "/refresh")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestScoresEndpoints(t *testing.T) {
	Convey("Given committed scores", t, func() {
		best := testScore("doc-2", 85)
		deps := &stubDeps{
			scores:     []model.CompositeScore{best, testScore("doc-1", 60)},
			scoresByID: map[string]model.CompositeScore{"doc-2": best},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("GET /scores lists them best first", func() {
			resp, err := http.Get(srv.URL + "/scores")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var out []scoreResponse
			So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
			So(len(out), ShouldEqual, 2)
			So(out[0].DoctorID, ShouldEqual, "doc-2")
			So(out[0].Composite, ShouldEqual, 85.0)
			So(*out[0].AvgWaitMinutes, ShouldEqual, 22.5)
			So(out[0].ComputedAt, ShouldEqual, "2026-08-30T12:00:00Z")
			So(deps.lastLimit, ShouldEqual, defaultScoreLimit)
		})

		Convey("A limit above the cap yields 400", func() {
			resp, err := http.Get(srv.URL + "/scores?limit=1000")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)

			var out errorResponse
			So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
			So(out.Code, ShouldEqual, "limit_exceeded")
		})

		Convey("A non-numeric limit yields 400", func() {
			resp, err := http.Get(srv.URL + "/scores?limit=abc")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET /scores/{doctor_id} returns one score", func() {
			resp, err := http.Get(srv.URL + "/scores/doc-2")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var out scoreResponse
			So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
			So(out.DoctorName, ShouldEqual, "Dr. doc-2")
		})

		Convey("An unknown doctor yields 404", func() {
			resp, err := http.Get(srv.URL + "/scores/doc-nope")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestAlertsEndpoints(t *testing.T) {
	Convey("Given open alerts", t, func() {
		a := testAlert(7)
		acked := a
		acked.Acknowledged = true
		acked.AcknowledgedBy = "maria"
		at := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
		acked.AcknowledgedAt = &at

		deps := &stubDeps{
			alerts:  []model.Alert{a},
			getByID: map[uint64]model.Alert{7: a},
			acked:   acked,
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("GET /alerts lists them", func() {
			resp, err := http.Get(srv.URL + "/alerts?open=true")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var out []alertResponse
			So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
			So(len(out), ShouldEqual, 1)
			So(out[0].AlertType, ShouldEqual, model.AlertLowNPS)
			So(out[0].Acknowledged, ShouldBeFalse)
			So(deps.lastOpen, ShouldBeTrue)
		})

		Convey("A malformed open filter yields 400", func() {
			resp, err := http.Get(srv.URL + "/alerts?open=maybe")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET /alerts/{id} returns one alert", func() {
			resp, err := http.Get(srv.URL + "/alerts/7")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var out alertResponse
			So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
			So(out.ID, ShouldEqual, 7)
		})

		Convey("An unknown alert id yields 404", func() {
			resp, err := http.Get(srv.URL + "/alerts/99")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("A non-numeric alert id yields 400", func() {
			resp, err := http.Get(srv.URL + "/alerts/abc")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("POST /alerts/{id}/ack acknowledges", func() {
			body := strings.NewReader(`{"acknowledged_by":"maria"}`)
			resp, err := http.Post(srv.URL+"/alerts/7/ack", "application/json", body)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var out alertResponse
			So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
			So(out.Acknowledged, ShouldBeTrue)
			So(out.AcknowledgedBy, ShouldEqual, "maria")
			So(out.AcknowledgedAt, ShouldNotBeNil)
			So(deps.lastAckBy, ShouldEqual, "maria")
		})

		Convey("Acknowledging without an actor yields 400", func() {
			body := strings.NewReader(`{"acknowledged_by":"  "}`)
			resp, err := http.Post(srv.URL+"/alerts/7/ack", "application/json", body)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Acknowledging an unknown alert yields 404", func() {
			deps.ackErr = repository.ErrNotFound
			body := strings.NewReader(`{"acknowledged_by":"maria"}`)
			resp, err := http.Post(srv.URL+"/alerts/99/ack", "application/json", body)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStatsEndpoint(t *testing.T) {
	Convey("Given engine stats", t, func() {
		deps := &stubDeps{stats: Stats{Stage: model.StageIdle, OpenAlerts: 2}}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("GET /stats returns them", func() {
			resp, err := http.Get(srv.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var out map[string]any
			So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
			So(out["stage"], ShouldEqual, string(model.StageIdle))
			So(out["open_alerts"], ShouldEqual, 2.0)
		})
	})
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given the health endpoint", t, func() {
		srv := newTestServer(&stubDeps{})
		defer srv.Close()

		Convey("It serves the metrics exposition", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}
