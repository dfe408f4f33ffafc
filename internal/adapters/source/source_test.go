package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredash/kpiengine/internal/domain/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func daysAgo(d int) time.Time {
	return time.Now().UTC().Add(-time.Duration(d) * 24 * time.Hour)
}

func TestLoadSnapshotWindowFiltering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDoctors(ctx, []model.Doctor{
		{DoctorID: "doc-1", Name: "Dr. Reyes 1"},
	}))
	require.NoError(t, store.SaveAppointments(ctx, []model.Appointment{
		{AppointmentID: "apt-recent", DoctorID: "doc-1", ClinicID: "clinic-1",
			ScheduledTime: daysAgo(5), Status: model.StatusDone},
		{AppointmentID: "apt-stale", DoctorID: "doc-1", ClinicID: "clinic-1",
			ScheduledTime: daysAgo(120), Status: model.StatusDone},
	}))
	require.NoError(t, store.SaveSurveys(ctx, []model.PatientSurvey{
		{SurveyID: "srv-recent", AppointmentID: "apt-recent", Rating: 8, CreatedAt: daysAgo(5)},
		{SurveyID: "srv-stale", AppointmentID: "apt-stale", Rating: 3, CreatedAt: daysAgo(120)},
	}))

	snap, err := store.LoadSnapshot(ctx, 90*24*time.Hour)
	require.NoError(t, err)

	require.Len(t, snap.Doctors, 1)
	require.Len(t, snap.Appointments, 1)
	assert.Equal(t, "apt-recent", snap.Appointments[0].AppointmentID)
	require.Len(t, snap.Surveys, 1)
	assert.Equal(t, "srv-recent", snap.Surveys[0].SurveyID)
	assert.WithinDuration(t, time.Now().UTC(), snap.TakenAt, 5*time.Second)
}

func TestLoadSnapshotAdmissionPadding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Admitted before the cutoff but discharged inside the padded span:
	// must still be visible so edge-of-window readmissions count.
	discharged := daysAgo(85)
	require.NoError(t, store.SaveAdmissions(ctx, []model.Admission{
		{AdmissionID: "adm-padded", PatientID: "pat-1", DoctorID: "doc-1",
			AdmissionDate: daysAgo(110), DischargeDate: &discharged},
		{AdmissionID: "adm-ancient", PatientID: "pat-2", DoctorID: "doc-1",
			AdmissionDate: daysAgo(200), DischargeDate: nil},
	}))

	snap, err := store.LoadSnapshot(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, snap.Admissions, 1)
	assert.Equal(t, "adm-padded", snap.Admissions[0].AdmissionID)
}

func TestLoadSnapshotPreservesNullTimestamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arrival := daysAgo(2).Add(5 * time.Minute)
	consult := arrival.Add(20 * time.Minute)
	require.NoError(t, store.SaveAppointments(ctx, []model.Appointment{
		{AppointmentID: "apt-done", DoctorID: "doc-1", ClinicID: "clinic-1",
			ScheduledTime: daysAgo(2), ArrivalTime: &arrival, ConsultStartTime: &consult,
			Status: model.StatusDone, IsFollowup: true},
		{AppointmentID: "apt-noshow", DoctorID: "doc-1", ClinicID: "clinic-1",
			ScheduledTime: daysAgo(3), Status: model.StatusNoShow},
	}))

	snap, err := store.LoadSnapshot(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, snap.Appointments, 2)

	byID := map[string]model.Appointment{}
	for _, a := range snap.Appointments {
		byID[a.AppointmentID] = a
	}
	done := byID["apt-done"]
	require.NotNil(t, done.ArrivalTime)
	require.NotNil(t, done.ConsultStartTime)
	assert.True(t, done.IsFollowup)
	noshow := byID["apt-noshow"]
	assert.Nil(t, noshow.ArrivalTime)
	assert.Nil(t, noshow.ConsultStartTime)
}

func TestSaveIsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := model.Doctor{DoctorID: "doc-1", Name: "Dr. Old"}
	require.NoError(t, store.SaveDoctors(ctx, []model.Doctor{doc}))
	doc.Name = "Dr. New"
	require.NoError(t, store.SaveDoctors(ctx, []model.Doctor{doc}))

	snap, err := store.LoadSnapshot(ctx, time.Hour)
	require.NoError(t, err)
	require.Len(t, snap.Doctors, 1)
	assert.Equal(t, "Dr. New", snap.Doctors[0].Name)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	assert.Error(t, err)
}
