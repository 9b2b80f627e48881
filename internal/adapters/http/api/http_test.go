package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/adapters/http/api"
	repository "github.com/komparedocers/autonomous-lead-qualification/internal/adapters/repository"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDeps implements api.Dependencies over in-memory components.
type mockDeps struct {
	seen           map[string]bool
	enqueueSuccess bool
	enqueued       []model.Event
	log            *repository.InMemoryLog
	cal            *calibration.Store
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		seen:           make(map[string]bool),
		enqueueSuccess: true,
		log:            repository.NewInMemoryLog(),
		cal:            calibration.NewStore(),
	}
}

func (m *mockDeps) SeenAndRecord(_ context.Context, id string) bool {
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDeps) Unrecord(_ context.Context, id string) { delete(m.seen, id) }

func (m *mockDeps) Size() int64 { return int64(len(m.seen)) }

func (m *mockDeps) Enqueue(_ context.Context, e model.Event) bool {
	if !m.enqueueSuccess {
		return false
	}
	m.enqueued = append(m.enqueued, e)
	return true
}

func (m *mockDeps) Search(ctx context.Context, filter types.SearchFilter) ([]*model.Signal, error) {
	return m.log.Search(ctx, filter)
}

func (m *mockDeps) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	return m.log.Get(ctx, id)
}

func (m *mockDeps) Calibration(_ context.Context) *calibration.Set { return m.cal.Active() }

func (m *mockDeps) ApplyCalibration(_ context.Context, set *calibration.Set) error {
	return m.cal.Apply(set)
}

// mockStats implements api.StatsProvider.
type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestServer(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}).Register(context.Background(), mux)
	return mux
}

func validEventBody() string {
	return `{
		"delivery_id": "d-1",
		"company_id": "acme",
		"type": "job_posting",
		"ts": "2026-06-01T12:00:00Z",
		"features": {"role": "Data Engineer", "region": "emea"},
		"source_url": "https://jobs.example.com/acme/1",
		"title": "Data Engineer"
	}`
}

func TestHandlePostEvent(t *testing.T) {
	Convey("Given the events endpoint", t, func() {
		deps := newMockDeps()
		mux := newTestServer(deps)

		post := func(body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			return rec
		}

		Convey("When posting a valid event", func() {
			rec := post(validEventBody())

			Convey("Then it is accepted and enqueued", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				var ack struct {
					Status    string `json:"status"`
					Duplicate bool   `json:"duplicate"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Status, ShouldEqual, "accepted")
				So(ack.Duplicate, ShouldBeFalse)
				So(deps.enqueued, ShouldHaveLength, 1)
				So(deps.enqueued[0].CompanyID, ShouldEqual, "acme")
				So(deps.enqueued[0].TS.Equal(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When posting the same delivery twice", func() {
			post(validEventBody())
			rec := post(validEventBody())

			Convey("Then the duplicate is acknowledged without enqueueing", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "duplicate")
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("When the body is not JSON", func() {
			rec := post("{not json")

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When required fields are missing", func() {
			rec := post(`{"company_id": "acme"}`)

			Convey("Then it is rejected with a reason", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(rec.Body.String(), ShouldContainSubstring, "delivery_id")
			})
		})

		Convey("When the timestamp is malformed", func() {
			rec := post(`{"delivery_id": "d-1", "company_id": "acme", "type": "job_posting", "ts": "yesterday"}`)

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(rec.Body.String(), ShouldContainSubstring, "RFC3339")
			})
		})

		Convey("When the queue is full", func() {
			deps.enqueueSuccess = false
			rec := post(validEventBody())

			Convey("Then backpressure is reported and the id is retryable", func() {
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
				So(deps.Size(), ShouldEqual, 0)
			})
		})

		Convey("When using the wrong method", func() {
			req := httptest.NewRequest(http.MethodGet, "/events", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestHandleSignals(t *testing.T) {
	Convey("Given the signals endpoints with stored signals", t, func() {
		deps := newMockDeps()
		mux := newTestServer(deps)
		ctx := context.Background()
		base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

		So(deps.log.Upsert(ctx, &model.Signal{
			ID: "sig-high", CompanyID: "acme", Kind: model.KindHiringSpike, Score: 85,
			TSStart: base, TSEnd: base.AddDate(0, 0, 3),
		}), ShouldBeNil)
		So(deps.log.Upsert(ctx, &model.Signal{
			ID: "sig-low", CompanyID: "globex", Kind: model.KindFunding, Score: 45,
			TSStart: base.AddDate(0, 0, -10), TSEnd: base.AddDate(0, 0, -10),
		}), ShouldBeNil)

		get := func(path string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			return rec
		}

		Convey("When searching without filters", func() {
			rec := get("/signals")

			Convey("Then all signals return newest first", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got []model.Signal
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0].ID, ShouldEqual, "sig-high")
			})
		})

		Convey("When filtering by min_score", func() {
			rec := get("/signals?min_score=70")

			Convey("Then low scorers are excluded", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got []model.Signal
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].ID, ShouldEqual, "sig-high")
			})
		})

		Convey("When filtering by kind and company", func() {
			rec := get("/signals?kind=funding_event&company_id=globex")

			Convey("Then only the matching signal returns", func() {
				var got []model.Signal
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].ID, ShouldEqual, "sig-low")
			})
		})

		Convey("When min_score is out of range", func() {
			rec := get("/signals?min_score=150")

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When since is malformed", func() {
			rec := get("/signals?since=lastweek")

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When fetching one signal by id", func() {
			rec := get("/signals/sig-high")

			Convey("Then it returns the signal", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got model.Signal
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got.CompanyID, ShouldEqual, "acme")
			})
		})

		Convey("When fetching an unknown id", func() {
			rec := get("/signals/nope")

			Convey("Then it reports not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestHandleCalibration(t *testing.T) {
	Convey("Given the calibration endpoint", t, func() {
		deps := newMockDeps()
		mux := newTestServer(deps)

		Convey("When reading the active calibration", func() {
			req := httptest.NewRequest(http.MethodGet, "/calibration", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the default set returns at version 1", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var set calibration.Set
				So(json.Unmarshal(rec.Body.Bytes(), &set), ShouldBeNil)
				So(set.Version, ShouldEqual, 1)
				So(set.Weights.Fit, ShouldEqual, 0.4)
			})
		})

		Convey("When replacing with a valid set", func() {
			next := calibration.Default()
			next.Weights = calibration.Weights{Fit: 0.5, Intent: 0.3, Timing: 0.2}
			body, err := json.Marshal(next)
			So(err, ShouldBeNil)

			req := httptest.NewRequest(http.MethodPut, "/calibration", strings.NewReader(string(body)))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the new set is active with a bumped version", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var set calibration.Set
				So(json.Unmarshal(rec.Body.Bytes(), &set), ShouldBeNil)
				So(set.Version, ShouldEqual, 2)
				So(set.Weights.Fit, ShouldEqual, 0.5)
			})
		})

		Convey("When replacing with invalid weights", func() {
			next := calibration.Default()
			next.Weights = calibration.Weights{Fit: 0.4, Intent: 0.4, Timing: 0.1}
			body, err := json.Marshal(next)
			So(err, ShouldBeNil)

			req := httptest.NewRequest(http.MethodPut, "/calibration", strings.NewReader(string(body)))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the set is rejected and the old one stays active", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(deps.cal.Active().Version, ShouldEqual, 1)
			})
		})

		Convey("When the body is not JSON", func() {
			req := httptest.NewRequest(http.MethodPut, "/calibration", strings.NewReader("{oops"))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestHandleStats(t *testing.T) {
	Convey("Given the stats endpoint", t, func() {
		mux := newTestServer(newMockDeps())

		Convey("When requesting stats", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the provider's view is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "started")
			})
		})
	})
}
