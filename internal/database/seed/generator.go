package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/repository"
	"github.com/idro/idro/internal/util"
)

// Config configures the seed data generator.
type Config struct {
	Alerts        int
	MaxCamps      int
	AssignedRatio float64
	ResolvedRatio float64
	RandomSeed    int64
}

// DefaultConfig returns the demo dataset configuration.
func DefaultConfig() Config {
	return Config{
		Alerts:        12,
		MaxCamps:      3,
		AssignedRatio: 0.25,
		ResolvedRatio: 0.15,
		RandomSeed:    2018,
	}
}

// Result counts what Generate inserted.
type Result struct {
	Alerts   int
	Assigned int
	Resolved int
	Camps    int
}

// Generator generates seed data.
type Generator struct {
	db     *sql.DB
	cfg    Config
	rng    *rand.Rand
	seq    int64
	logger *slog.Logger
	alerts *repository.AlertRepository
	camps  *repository.CampRepository
}

// NewGenerator creates a new seed data generator.
func NewGenerator(db *sql.DB, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		db:     db,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.RandomSeed)),
		logger: logger,
		alerts: repository.NewAlertRepository(db),
		camps:  repository.NewCampRepository(db),
	}
}

// Generate inserts the dataset in a single transaction. The same seed
// always yields the same alerts and camps, ids included. Only timestamps
// differ between runs.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	g.logger.Info("starting seed data generation", "alerts", g.cfg.Alerts, "seed", g.cfg.RandomSeed)

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	g.rng = rand.New(rand.NewSource(g.cfg.RandomSeed))
	g.seq = 0

	var res Result
	for i := 0; i < g.cfg.Alerts; i++ {
		d := g.alert(i)
		if err := g.alerts.Create(ctx, tx, d); err != nil {
			return nil, fmt.Errorf("generating alert %d: %w", i, err)
		}
		res.Alerts++
		switch d.MissionStatus {
		case models.MissionStatusAssigned:
			res.Assigned++
		case models.MissionStatusResolved:
			res.Resolved++
		}

		n := 1 + g.rng.Intn(max(g.cfg.MaxCamps, 1))
		for j := 0; j < n; j++ {
			if err := g.camps.Create(ctx, tx, g.camp(d, j)); err != nil {
				return nil, fmt.Errorf("generating camp for alert %s: %w", d.ID, err)
			}
			res.Camps++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	g.logger.Info("seed data generation complete",
		"alerts", res.Alerts,
		"assigned", res.Assigned,
		"resolved", res.Resolved,
		"camps", res.Camps,
	)
	return &res, nil
}

func (g *Generator) alert(i int) *models.Disaster {
	place := Places[i%len(Places)]
	types := InlandTypes
	if place.Coastal {
		types = CoastalTypes
	}
	typ := types[g.rng.Intn(len(types))]

	affected := 200 + g.rng.Intn(4800)
	injured := affected * (1 + g.rng.Intn(8)) / 100
	trust := 20 + g.rng.Intn(81)

	magnitude, color := "Moderate", models.AlertColorOrange
	switch r := g.rng.Float64(); {
	case r < 0.4:
		magnitude, color = "High", models.AlertColorRed
	case r > 0.85:
		magnitude, color = "Low", models.AlertColorGreen
	}

	source, level := models.SourceVolunteerApp, "VOLUNTEER"
	if g.rng.Intn(4) == 0 {
		source, level = models.SourceNGO, "NGO"
	}

	d := &models.Disaster{
		ID:            g.nextID(),
		Type:          typ,
		Location:      place.City + ", " + place.State,
		Latitude:      jitter(g.rng, place.Latitude),
		Longitude:     jitter(g.rng, place.Longitude),
		MissionStatus: models.MissionStatusOpen,
		TrustScore:    &trust,
		AffectedCount: &affected,
		InjuredCount:  &injured,
		Details:       Details[typ],
		Impact:        fmt.Sprintf("%d people affected", affected),
		Magnitude:     magnitude,
		Color:         color,
		SourceType:    source,
		ReporterLevel: level,
	}

	switch r := g.rng.Float64(); {
	case r < g.cfg.ResolvedRatio:
		d.MissionStatus = models.MissionStatusResolved
		d.ResponderName = Responders[g.rng.Intn(len(Responders))]
	case r < g.cfg.ResolvedRatio+g.cfg.AssignedRatio:
		d.MissionStatus = models.MissionStatusAssigned
		d.ResponderName = Responders[g.rng.Intn(len(Responders))]
	}
	return d
}

func (g *Generator) camp(d *models.Disaster, j int) *models.Camp {
	population := 50 + g.rng.Intn(950)
	stock := make(models.Stock, len(Resources))
	for _, r := range Resources {
		stock[r] = string(Levels[g.rng.Intn(len(Levels))])
	}

	c := &models.Camp{
		ID:           g.nextID(),
		AlertID:      d.ID,
		Name:         CampNames[(j+g.rng.Intn(len(CampNames)))%len(CampNames)],
		Location:     d.Location,
		Population:   population,
		InjuredCount: population * g.rng.Intn(6) / 100,
		Latitude:     jitter(g.rng, d.Latitude),
		Longitude:    jitter(g.rng, d.Longitude),
		Stock:        stock,
	}
	if g.rng.Intn(3) == 0 {
		c.IncomingAid = "Truck with rations en route"
	}
	return c
}

func (g *Generator) nextID() string {
	g.seq++
	return util.DeterministicID(g.cfg.RandomSeed<<20 + g.seq)
}

// jitter moves a coordinate by up to about 2 km.
func jitter(rng *rand.Rand, v float64) float64 {
	return v + (rng.Float64()-0.5)*0.04
}
