package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/timerecording/internal/application"
	"github.com/example/timerecording/internal/testfixtures"
)

func TestTimeEntryService_CreateComputesHours(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()
	employee := env.harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.WithUserPlannedHours(7.5)))
	project := env.harness.SeedProject(t, testfixtures.NewProjectFixture())

	entry, err := env.services.TimeEntries.CreateTimeEntry(ctx, application.CreateTimeEntryParams{
		Principal: employee.Principal(),
		Input: application.TimeEntryInput{
			Date:       "2024-01-03",
			StartTimes: []string{"08:00", "13:00"},
			EndTimes:   []string{"12:00", "16:45"},
			Breaks:     []application.Break{{Start: "10:00", End: "10:15"}},
			ProjectID:  ptr(project.ID),
		},
	})
	if err != nil {
		t.Fatalf("CreateTimeEntry returned error: %v", err)
	}
	if entry.ActualMinutes != 450 || entry.ActualHours != "07:30" {
		t.Fatalf("unexpected actual hours %d / %s", entry.ActualMinutes, entry.ActualHours)
	}
	if entry.PlannedHours != "07:30" || entry.Difference != "+00:00" {
		t.Fatalf("unexpected planned %s / difference %s", entry.PlannedHours, entry.Difference)
	}
	if entry.Active {
		t.Fatalf("closed day must not be active")
	}
	if entry.ProjectID == nil || *entry.ProjectID != project.ID {
		t.Fatalf("expected project %s, got %v", project.ID, entry.ProjectID)
	}

	_, err = env.services.TimeEntries.CreateTimeEntry(ctx, application.CreateTimeEntryParams{
		Principal: employee.Principal(),
		Input:     application.TimeEntryInput{Date: "2024-01-03", StartTimes: []string{"18:00"}},
	})
	if !errors.Is(err, application.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for a second entry on the same day, got %v", err)
	}

	entries, err := env.services.TimeEntries.ListOwnTimeEntries(ctx, employee.Principal())
	if err != nil {
		t.Fatalf("ListOwnTimeEntries returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].Difference != "+00:00" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestTimeEntryService_Validation(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()
	employee := env.harness.SeedUser(t, testfixtures.NewUserFixture())
	inactive := env.harness.SeedProject(t, testfixtures.NewProjectFixture(testfixtures.InactiveProject()))

	cases := []struct {
		name    string
		input   application.TimeEntryInput
		field   string
		message string
	}{
		{
			name:    "missing date",
			input:   application.TimeEntryInput{StartTimes: []string{"08:00"}},
			field:   "date",
			message: "is required",
		},
		{
			name:    "malformed date",
			input:   application.TimeEntryInput{Date: "03.01.2024", StartTimes: []string{"08:00"}},
			field:   "date",
			message: "must use YYYY-MM-DD",
		},
		{
			name:    "no start",
			input:   application.TimeEntryInput{Date: "2024-01-03"},
			field:   "startTimes",
			message: "at least one start time is required",
		},
		{
			name:    "more ends than starts",
			input:   application.TimeEntryInput{Date: "2024-01-03", StartTimes: []string{"08:00"}, EndTimes: []string{"12:00", "16:00"}},
			field:   "endTimes",
			message: "must not outnumber start times",
		},
		{
			name:    "malformed clock",
			input:   application.TimeEntryInput{Date: "2024-01-03", StartTimes: []string{"8 Uhr"}},
			field:   "startTimes[0]",
			message: "must use HH:MM",
		},
		{
			name: "inverted break",
			input: application.TimeEntryInput{
				Date:       "2024-01-03",
				StartTimes: []string{"08:00"},
				EndTimes:   []string{"16:00"},
				Breaks:     []application.Break{{Start: "12:30", End: "12:00"}},
			},
			field:   "breaks[0].end",
			message: "must be after start",
		},
		{
			name:    "unknown project",
			input:   application.TimeEntryInput{Date: "2024-01-03", StartTimes: []string{"08:00"}, ProjectID: ptr("missing")},
			field:   "projectId",
			message: "project does not exist",
		},
		{
			name:    "inactive project",
			input:   application.TimeEntryInput{Date: "2024-01-03", StartTimes: []string{"08:00"}, ProjectID: ptr(inactive.ID)},
			field:   "projectId",
			message: "project is inactive",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.services.TimeEntries.CreateTimeEntry(ctx, application.CreateTimeEntryParams{Principal: employee.Principal(), Input: tc.input})
			requireFieldError(t, err, tc.field, tc.message)
		})
	}
}

func TestTimeEntryService_Tracking(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()
	employee := env.harness.SeedUser(t, testfixtures.NewUserFixture())
	other := env.harness.SeedUser(t, testfixtures.NewUserFixture())

	started, err := env.services.TimeEntries.StartTracking(ctx, employee.Principal())
	if err != nil {
		t.Fatalf("StartTracking returned error: %v", err)
	}
	if !started.Active || len(started.StartTimes) != 1 || started.StartTimes[0] != "15:04" {
		t.Fatalf("unexpected started entry %+v", started)
	}
	if got := started.Date.Format("2006-01-02"); got != "2024-01-02" {
		t.Fatalf("expected entry for 2024-01-02, got %s", got)
	}

	if _, err := env.services.TimeEntries.StartTracking(ctx, employee.Principal()); !errors.Is(err, application.ErrTrackingActive) {
		t.Fatalf("expected ErrTrackingActive, got %v", err)
	}
	if _, err := env.services.TimeEntries.StopTracking(ctx, other.Principal(), started.ID); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a foreign entry, got %v", err)
	}

	env.factory.Clock.Advance(2 * time.Hour)
	stopped, err := env.services.TimeEntries.StopTracking(ctx, employee.Principal(), started.ID)
	if err != nil {
		t.Fatalf("StopTracking returned error: %v", err)
	}
	if stopped.Active || stopped.ActualHours != "02:00" {
		t.Fatalf("unexpected stopped entry %+v", stopped)
	}
	if stopped.Difference != "-06:00" {
		t.Fatalf("expected -06:00 against eight planned hours, got %s", stopped.Difference)
	}

	if _, err := env.services.TimeEntries.StopTracking(ctx, employee.Principal(), started.ID); !errors.Is(err, application.ErrTrackingInactive) {
		t.Fatalf("expected ErrTrackingInactive, got %v", err)
	}

	env.factory.Clock.Advance(30 * time.Minute)
	resumed, err := env.services.TimeEntries.StartTracking(ctx, employee.Principal())
	if err != nil {
		t.Fatalf("StartTracking returned error: %v", err)
	}
	if resumed.ID != started.ID || !resumed.Active || len(resumed.StartTimes) != 2 {
		t.Fatalf("expected the same entry to resume, got %+v", resumed)
	}
}

func TestTimeEntryService_Ownership(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	ctx := context.Background()
	admin := env.harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.AsAdmin()))
	manager := env.harness.SeedUser(t, testfixtures.NewUserFixture(testfixtures.AsManager()))
	anna := env.harness.SeedUser(t, testfixtures.NewUserFixture())
	bernd := env.harness.SeedUser(t, testfixtures.NewUserFixture())
	project := env.harness.SeedProject(t, testfixtures.NewProjectFixture())
	entry := env.harness.SeedTimeEntry(t, testfixtures.NewTimeEntryFixture(anna.ID))

	if _, err := env.services.TimeEntries.ListTimeEntriesForUser(ctx, bernd.Principal(), anna.ID); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	listed, err := env.services.TimeEntries.ListTimeEntriesForUser(ctx, manager.Principal(), anna.ID)
	if err != nil {
		t.Fatalf("ListTimeEntriesForUser returned error: %v", err)
	}
	if len(listed) != 1 || listed[0].ActualHours != "08:00" {
		t.Fatalf("unexpected entries %+v", listed)
	}

	_, err = env.services.TimeEntries.UpdateTimeEntry(ctx, application.UpdateTimeEntryParams{
		Principal: admin.Principal(),
		EntryID:   entry.ID,
		Input:     application.TimeEntryInput{Date: "2024-01-02", StartTimes: []string{"09:00"}},
	})
	if !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("only owners update entries, got %v", err)
	}

	assigned, err := env.services.TimeEntries.AssignProject(ctx, anna.Principal(), entry.ID, project.ID)
	if err != nil {
		t.Fatalf("AssignProject returned error: %v", err)
	}
	if assigned.ProjectID == nil || *assigned.ProjectID != project.ID {
		t.Fatalf("project not assigned: %+v", assigned)
	}

	updated, err := env.services.TimeEntries.UpdateTimeEntry(ctx, application.UpdateTimeEntryParams{
		Principal: anna.Principal(),
		EntryID:   entry.ID,
		Input: application.TimeEntryInput{
			Date:       "2024-01-04",
			StartTimes: []string{"07:00"},
			EndTimes:   []string{"15:00"},
		},
	})
	if err != nil {
		t.Fatalf("UpdateTimeEntry returned error: %v", err)
	}
	if updated.ActualHours != "08:00" || len(updated.Breaks) != 0 || updated.ProjectID != nil {
		t.Fatalf("unexpected update %+v", updated)
	}

	if err := env.services.TimeEntries.DeleteTimeEntry(ctx, bernd.Principal(), entry.ID); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := env.services.TimeEntries.DeleteTimeEntry(ctx, admin.Principal(), entry.ID); err != nil {
		t.Fatalf("DeleteTimeEntry returned error: %v", err)
	}
	if err := env.services.TimeEntries.DeleteTimeEntry(ctx, admin.Principal(), entry.ID); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
