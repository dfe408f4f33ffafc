package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/caredash/kpiengine/internal/adapters/repository"
	"github.com/caredash/kpiengine/internal/domain/extract"
	"github.com/caredash/kpiengine/internal/domain/model"
	"github.com/caredash/kpiengine/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// fakeSource serves a canned snapshot, optionally failing or blocking.
type fakeSource struct {
	snap    *extract.Snapshot
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeSource) LoadSnapshot(ctx context.Context, _ time.Duration) (*extract.Snapshot, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

// clinicSnapshot builds a small population with enough spread to score
// and to breach the stock low-rating threshold for one doctor.
func clinicSnapshot(at time.Time) *extract.Snapshot {
	day := 24 * time.Hour
	mkAppt := func(id, doctorID string, daysAgo int, waitMin float64) model.Appointment {
		arrival := at.Add(-time.Duration(daysAgo) * day)
		consult := arrival.Add(time.Duration(waitMin * float64(time.Minute)))
		return model.Appointment{
			AppointmentID:    id,
			DoctorID:         doctorID,
			ClinicID:         "clinic-1",
			ScheduledTime:    arrival,
			ArrivalTime:      &arrival,
			ConsultStartTime: &consult,
			Status:           model.StatusDone,
		}
	}
	discharge := at.Add(-50 * day)
	return &extract.Snapshot{
		TakenAt: at,
		Doctors: []model.Doctor{
			{DoctorID: "doc-good", Name: "Dr. Lindgren 1"},
			{DoctorID: "doc-bad", Name: "Dr. Doyle 2"},
		},
		Appointments: []model.Appointment{
			mkAppt("a1", "doc-good", 5, 8),
			mkAppt("a2", "doc-good", 6, 12),
			mkAppt("a3", "doc-bad", 5, 40),
			mkAppt("a4", "doc-bad", 6, 50),
		},
		Admissions: []model.Admission{
			{AdmissionID: "adm1", PatientID: "p1", DoctorID: "doc-bad", AdmissionDate: at.Add(-55 * day), DischargeDate: &discharge},
			{AdmissionID: "adm2", PatientID: "p1", DoctorID: "doc-bad", AdmissionDate: at.Add(-40 * day)},
		},
		Surveys: []model.PatientSurvey{
			{SurveyID: "s1", AppointmentID: "a1", Rating: 10, CreatedAt: at.Add(-5 * day)},
			{SurveyID: "s2", AppointmentID: "a2", Rating: 9, CreatedAt: at.Add(-6 * day)},
			{SurveyID: "s3", AppointmentID: "a3", Rating: 3, CreatedAt: at.Add(-5 * day)},
			{SurveyID: "s4", AppointmentID: "a4", Rating: 5, CreatedAt: at.Add(-6 * day)},
		},
	}
}

func newTestService(store repository.Store, src SnapshotLoader) *Service {
	return New(
		WithSource(src),
		WithStore(store),
		WithLogger(logger.Get().Named("test")),
	)
}

func TestRunCycle(t *testing.T) {
	convey.Convey("Given a service over a populated snapshot", t, func() {
		at := time.Now().UTC()
		store := repository.NewMemoryStore()
		src := &fakeSource{snap: clinicSnapshot(at)}
		svc := newTestService(store, src)
		ctx := context.Background()

		convey.Convey("When a cycle runs", func() {
			outcome, err := svc.RunCycle(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(outcome.State, convey.ShouldEqual, model.StageCommitted)
			convey.So(outcome.CycleID, convey.ShouldNotBeEmpty)
			convey.So(outcome.RawRows, convey.ShouldBeGreaterThan, 0)
			convey.So(outcome.SubjectsScored, convey.ShouldEqual, 2)

			convey.Convey("Then scores are committed best first", func() {
				scores, err := store.ListScores(ctx, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(scores, convey.ShouldHaveLength, 2)
				convey.So(scores[0].SubjectID, convey.ShouldEqual, "doc-good")
				convey.So(scores[0].Composite, convey.ShouldBeGreaterThan, scores[1].Composite)
			})

			convey.Convey("Then the struggling doctor's rating raised an alert", func() {
				alerts, err := store.ListAlerts(ctx, true, 10)
				convey.So(err, convey.ShouldBeNil)
				var lowNPS *model.Alert
				for i := range alerts {
					if alerts[i].Type == model.AlertLowNPS && alerts[i].ObjectID == "doc-bad" {
						lowNPS = &alerts[i]
					}
				}
				convey.So(lowNPS, convey.ShouldNotBeNil)
				convey.So(outcome.AlertsRaised, convey.ShouldEqual, len(alerts))
			})

			convey.Convey("And a second cycle suppresses the still-open alerts", func() {
				first := outcome.AlertsRaised
				second, err := svc.RunCycle(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(second.AlertsRaised, convey.ShouldEqual, 0)
				convey.So(second.AlertsSuppressed, convey.ShouldEqual, first)
			})

			convey.Convey("And acknowledging lets a recurring condition raise afresh", func() {
				alerts, _ := store.ListAlerts(ctx, true, 10)
				for _, a := range alerts {
					_, err := svc.AcknowledgeAlert(ctx, a.ID, "ops")
					convey.So(err, convey.ShouldBeNil)
				}
				second, err := svc.RunCycle(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(second.AlertsSuppressed, convey.ShouldEqual, 0)
				convey.So(second.AlertsRaised, convey.ShouldEqual, outcome.AlertsRaised)
			})
		})

		convey.Convey("When the snapshot load fails", func() {
			src.err = errors.New("source down")
			outcome, err := svc.RunCycle(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(outcome.State, convey.ShouldEqual, model.StageFailed)
			convey.So(outcome.FailedStage, convey.ShouldEqual, model.StageExtracting)

			convey.Convey("Then nothing reached storage", func() {
				scores, _ := store.ListScores(ctx, 10)
				convey.So(scores, convey.ShouldBeEmpty)
			})

			convey.Convey("And the service is idle again", func() {
				convey.So(svc.Stage(), convey.ShouldEqual, model.StageIdle)
			})
		})

		convey.Convey("When the commit fails", func() {
			store.FailCommits(errors.New("disk full"))
			outcome, err := svc.RunCycle(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(outcome.State, convey.ShouldEqual, model.StageFailed)

			convey.Convey("Then no partial rows survive", func() {
				scores, _ := store.ListScores(ctx, 10)
				convey.So(scores, convey.ShouldBeEmpty)
				alerts, _ := store.ListAlerts(ctx, false, 10)
				convey.So(alerts, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the last outcome is queried", func() {
			convey.So(svc.LastOutcome(), convey.ShouldBeNil)
			_, _ = svc.RunCycle(ctx)
			convey.So(svc.LastOutcome(), convey.ShouldNotBeNil)
			convey.So(svc.LastOutcome().State, convey.ShouldEqual, model.StageCommitted)
		})
	})
}

func TestRunCycleSingleFlight(t *testing.T) {
	convey.Convey("Given a cycle blocked mid-extraction", t, func() {
		at := time.Now().UTC()
		store := repository.NewMemoryStore()
		src := &fakeSource{
			snap:    clinicSnapshot(at),
			started: make(chan struct{}),
			release: make(chan struct{}),
		}
		svc := newTestService(store, src)
		ctx := context.Background()

		var wg sync.WaitGroup
		wg.Add(1)
		var firstErr error
		go func() {
			defer wg.Done()
			_, firstErr = svc.RunCycle(ctx)
		}()
		<-src.started

		convey.Convey("When a second trigger arrives", func() {
			_, err := svc.RunCycle(ctx)

			convey.Convey("Then it is rejected, not queued", func() {
				convey.So(errors.Is(err, ErrCycleInProgress), convey.ShouldBeTrue)
			})

			close(src.release)
			wg.Wait()

			convey.Convey("And the first cycle still commits", func() {
				convey.So(firstErr, convey.ShouldBeNil)
			})
		})
	})
}

func TestRunCycleDeadline(t *testing.T) {
	convey.Convey("Given a service with a tight cycle deadline", t, func() {
		at := time.Now().UTC()
		store := repository.NewMemoryStore()
		src := &fakeSource{
			snap:    clinicSnapshot(at),
			release: make(chan struct{}), // never released; deadline must fire
		}
		svc := New(
			WithSource(src),
			WithStore(store),
			WithLogger(logger.Get().Named("test")),
			WithCycleDeadline(50*time.Millisecond),
		)

		convey.Convey("When the cycle overruns", func() {
			outcome, err := svc.RunCycle(context.Background())

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(outcome.State, convey.ShouldEqual, model.StageFailed)
			convey.So(outcome.FailedStage, convey.ShouldEqual, model.StageExtracting)
		})
	})
}

func TestGetStats(t *testing.T) {
	convey.Convey("Given an idle service", t, func() {
		at := time.Now().UTC()
		store := repository.NewMemoryStore()
		svc := newTestService(store, &fakeSource{snap: clinicSnapshot(at)})
		ctx := context.Background()

		convey.Convey("Then stats report idle with no outcome", func() {
			stats, err := svc.GetStats(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(stats.Stage, convey.ShouldEqual, model.StageIdle)
			convey.So(stats.OpenAlerts, convey.ShouldEqual, 0)
			convey.So(stats.LastOutcome, convey.ShouldBeNil)
		})

		convey.Convey("When a cycle has run", func() {
			_, err := svc.RunCycle(ctx)
			convey.So(err, convey.ShouldBeNil)

			stats, err := svc.GetStats(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(stats.LastOutcome, convey.ShouldNotBeNil)
			convey.So(stats.OpenAlerts, convey.ShouldBeGreaterThan, 0)
		})
	})
}

func TestAcknowledgeAlert(t *testing.T) {
	convey.Convey("Given committed alerts", t, func() {
		at := time.Now().UTC()
		store := repository.NewMemoryStore()
		svc := newTestService(store, &fakeSource{snap: clinicSnapshot(at)})
		ctx := context.Background()

		_, err := svc.RunCycle(ctx)
		convey.So(err, convey.ShouldBeNil)
		alerts, _ := store.ListAlerts(ctx, true, 1)
		convey.So(alerts, convey.ShouldNotBeEmpty)
		id := alerts[0].ID

		convey.Convey("When acknowledging one", func() {
			got, err := svc.AcknowledgeAlert(ctx, id, "maria")

			convey.So(err, convey.ShouldBeNil)
			convey.So(got.Acknowledged, convey.ShouldBeTrue)
			convey.So(got.AcknowledgedBy, convey.ShouldEqual, "maria")
			convey.So(got.AcknowledgedAt, convey.ShouldNotBeNil)

			convey.Convey("Then acknowledging again is a no-op", func() {
				again, err := svc.AcknowledgeAlert(ctx, id, "someone-else")
				convey.So(err, convey.ShouldBeNil)
				convey.So(again.AcknowledgedBy, convey.ShouldEqual, "maria")
				convey.So(again.AcknowledgedAt.Equal(*got.AcknowledgedAt), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When acknowledging an unknown id", func() {
			_, err := svc.AcknowledgeAlert(ctx, 999999, "maria")
			convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
		})
	})
}
