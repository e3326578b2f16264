package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/testutil"
)

func setupAlertTest(t *testing.T) (*AlertRepository, *testutil.TestDB, context.Context) {
	t.Helper()
	db := testutil.NewTestDB(t)
	return NewAlertRepository(db.DB.DB), db, context.Background()
}

func TestAlertRepository_Create(t *testing.T) {
	repo, db, ctx := setupAlertTest(t)

	t.Run("Create valid alert", func(t *testing.T) {
		d := testutil.FixtureDisaster()
		if err := repo.Create(ctx, nil, d); err != nil {
			t.Fatalf("failed to create alert: %v", err)
		}

		found, err := repo.GetByID(ctx, d.ID)
		if err != nil {
			t.Fatalf("failed to get alert: %v", err)
		}
		if diff := cmp.Diff(d, found); diff != "" {
			t.Errorf("round trip (-want +got):\n%s", diff)
		}
	})

	t.Run("Missing id and status are defaulted", func(t *testing.T) {
		d := testutil.FixtureDisaster(func(d *models.Disaster) {
			d.ID = ""
			d.MissionStatus = ""
			d.Type = "earthquake"
			d.TrustScore = nil
		})
		if err := repo.Create(ctx, nil, d); err != nil {
			t.Fatalf("failed to create alert: %v", err)
		}
		if d.ID == "" || d.MissionStatus != models.MissionStatusOpen || d.Type != models.DisasterTypeEarthquake {
			t.Errorf("defaults not applied: %+v", d)
		}

		found, err := repo.GetByID(ctx, d.ID)
		if err != nil {
			t.Fatalf("failed to get alert: %v", err)
		}
		if found.TrustScore != nil {
			t.Errorf("trust score = %d, want nil", *found.TrustScore)
		}
		if found.EffectiveTrustScore() != models.DefaultTrustScore {
			t.Errorf("effective trust = %d", found.EffectiveTrustScore())
		}
	})

	t.Run("Invalid alert returns error", func(t *testing.T) {
		d := testutil.FixtureDisaster(func(d *models.Disaster) { d.Location = "" })
		if err := repo.Create(ctx, nil, d); !models.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("Create with transaction", func(t *testing.T) {
		d := testutil.FixtureDisaster()
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("failed to begin transaction: %v", err)
		}
		if err := repo.Create(ctx, tx, d); err != nil {
			t.Fatalf("failed to create alert: %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("failed to roll back: %v", err)
		}

		if _, err := repo.GetByID(ctx, d.ID); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("rolled back alert visible: %v", err)
		}
	})
}

func TestAlertRepository_List(t *testing.T) {
	repo, _, ctx := setupAlertTest(t)

	open := testutil.FixtureDisaster(func(d *models.Disaster) { d.Location = "Pune" })
	mine := testutil.FixtureAssignedDisaster("NDRF-Alpha", func(d *models.Disaster) { d.Type = models.DisasterTypeFire })
	theirs := testutil.FixtureAssignedDisaster("Team-X")
	for _, d := range []*models.Disaster{open, mine, theirs} {
		if err := repo.Create(ctx, nil, d); err != nil {
			t.Fatalf("failed to create alert: %v", err)
		}
	}

	status := models.MissionStatusAssigned
	tests := []struct {
		name   string
		filter models.AlertFilter
		want   int
	}{
		{"all", models.AlertFilter{}, 3},
		{"assigned", models.AlertFilter{Status: &status}, 2},
		{"by type", models.AlertFilter{Type: "fire"}, 1},
		{"by responder", models.AlertFilter{ResponderName: "NDRF-Alpha"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("failed to list alerts: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d alerts, got %d", tt.want, len(got))
			}
		})
	}
}

func TestAlertRepository_Update(t *testing.T) {
	repo, _, ctx := setupAlertTest(t)

	d := testutil.FixtureAssignedDisaster("Team-X")
	if err := repo.Create(ctx, nil, d); err != nil {
		t.Fatalf("failed to create alert: %v", err)
	}

	edit := *d
	edit.Details = "Infra: Bridge down | Needs: Food, Water"
	edit.MissionStatus = models.MissionStatusOpen
	edit.ResponderName = ""
	if err := repo.Update(ctx, nil, &edit); err != nil {
		t.Fatalf("failed to update alert: %v", err)
	}

	found, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("failed to get alert: %v", err)
	}
	if found.Details != edit.Details {
		t.Errorf("details = %q", found.Details)
	}
	if found.MissionStatus != models.MissionStatusAssigned || found.ResponderName != "Team-X" {
		t.Errorf("update changed lifecycle: %s / %q", found.MissionStatus, found.ResponderName)
	}

	missing := testutil.FixtureDisaster()
	if err := repo.Update(ctx, nil, missing); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAlertRepository_Assign(t *testing.T) {
	repo, _, ctx := setupAlertTest(t)

	t.Run("Open mission is assigned", func(t *testing.T) {
		d := testutil.FixtureDisaster(func(d *models.Disaster) { d.TrustScore = testutil.IntPtr(40) })
		if err := repo.Create(ctx, nil, d); err != nil {
			t.Fatalf("failed to create alert: %v", err)
		}

		got, err := repo.Assign(ctx, d.ID, "Team-X")
		if err != nil {
			t.Fatalf("failed to assign: %v", err)
		}
		if got.MissionStatus != models.MissionStatusAssigned || got.ResponderName != "Team-X" {
			t.Errorf("got %s / %q", got.MissionStatus, got.ResponderName)
		}
	})

	t.Run("Assigned mission conflicts and keeps responder", func(t *testing.T) {
		d := testutil.FixtureAssignedDisaster("Team-Y")
		if err := repo.Create(ctx, nil, d); err != nil {
			t.Fatalf("failed to create alert: %v", err)
		}

		_, err := repo.Assign(ctx, d.ID, "NDRF-Alpha")
		if !models.IsConflict(err) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		found, _ := repo.GetByID(ctx, d.ID)
		if found.ResponderName != "Team-Y" {
			t.Errorf("responder changed to %q", found.ResponderName)
		}
	})

	t.Run("Missing mission is not found", func(t *testing.T) {
		if _, err := repo.Assign(ctx, "nope", "NDRF-Alpha"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Blank responder is rejected", func(t *testing.T) {
		if _, err := repo.Assign(ctx, "any", " "); !models.IsValidation(err) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Concurrent assigns have one winner", func(t *testing.T) {
		d := testutil.FixtureDisaster()
		if err := repo.Create(ctx, nil, d); err != nil {
			t.Fatalf("failed to create alert: %v", err)
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		winners, conflicts := 0, 0
		for _, team := range []string{"A", "B", "C", "D", "E"} {
			wg.Add(1)
			go func(team string) {
				defer wg.Done()
				_, err := repo.Assign(ctx, d.ID, team)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners++
				case models.IsConflict(err):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(team)
		}
		wg.Wait()

		if winners != 1 || conflicts != 4 {
			t.Errorf("winners = %d, conflicts = %d", winners, conflicts)
		}
	})
}

func TestAlertRepository_Resolve(t *testing.T) {
	repo, _, ctx := setupAlertTest(t)

	open := testutil.FixtureDisaster()
	if err := repo.Create(ctx, nil, open); err != nil {
		t.Fatalf("failed to create alert: %v", err)
	}
	if _, err := repo.Resolve(ctx, open.ID); !models.IsConflict(err) {
		t.Errorf("resolving an OPEN mission: expected ConflictError, got %v", err)
	}

	if _, err := repo.Assign(ctx, open.ID, "NDRF-Alpha"); err != nil {
		t.Fatalf("failed to assign: %v", err)
	}
	got, err := repo.Resolve(ctx, open.ID)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}
	if got.MissionStatus != models.MissionStatusResolved || got.ResponderName != "NDRF-Alpha" {
		t.Errorf("got %s / %q", got.MissionStatus, got.ResponderName)
	}
}

func TestAlertRepository_SoftDelete(t *testing.T) {
	repo, db, ctx := setupAlertTest(t)

	d := testutil.FixtureDisaster()
	if err := repo.Create(ctx, nil, d); err != nil {
		t.Fatalf("failed to create alert: %v", err)
	}

	if err := repo.SoftDelete(ctx, nil, d.ID); err != nil {
		t.Fatalf("failed to delete alert: %v", err)
	}
	if _, err := repo.GetByID(ctx, d.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("deleted alert visible: %v", err)
	}
	list, _ := repo.List(ctx, models.AlertFilter{})
	if len(list) != 0 {
		t.Errorf("deleted alert listed: %+v", list)
	}
	if _, err := repo.Assign(ctx, d.ID, "NDRF-Alpha"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("deleted alert assignable: %v", err)
	}

	if err := repo.SoftDelete(ctx, nil, d.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}

	// The row is kept.
	db.AssertRowCount(t, "alerts", 1)
}

func TestAlertRepository_Stats(t *testing.T) {
	repo, _, ctx := setupAlertTest(t)

	redFlood := func(d *models.Disaster) {
		d.Type = models.DisasterTypeFlood
		d.Color = models.AlertColorRed
	}

	create := func(overrides ...func(*models.Disaster)) *models.Disaster {
		t.Helper()
		d := testutil.FixtureDisaster(overrides...)
		if err := repo.Create(ctx, nil, d); err != nil {
			t.Fatalf("failed to create alert: %v", err)
		}
		return d
	}

	create(redFlood)
	create(redFlood)
	create(func(d *models.Disaster) { d.Color = models.AlertColorOrange })
	create(redFlood, func(d *models.Disaster) {
		d.MissionStatus = models.MissionStatusAssigned
		d.ResponderName = "Team-X"
	})

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	want := &models.DashboardStats{
		TotalAlerts:    4,
		ActiveAlerts:   3,
		CriticalAlerts: 3,
		ThreatOutlook:  models.ThreatOutlookFlood,
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}

	last := create(redFlood)
	if err := repo.SoftDelete(ctx, nil, last.ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	stats, _ = repo.Stats(ctx)
	if stats.TotalAlerts != 4 {
		t.Errorf("deleted alert counted: %d", stats.TotalAlerts)
	}
}

func TestAlertRepository_StatsEmpty(t *testing.T) {
	repo, _, ctx := setupAlertTest(t)

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.TotalAlerts != 0 || stats.ThreatOutlook != models.ThreatOutlookStable {
		t.Errorf("stats = %+v", stats)
	}
}
