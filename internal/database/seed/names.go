// Package seed populates the backend with a deterministic demo dataset.
package seed

import "github.com/idro/idro/internal/models"

// Place is a known location used for generated alerts.
type Place struct {
	City      string
	State     string
	Latitude  float64
	Longitude float64
	// Coastal places draw floods and cyclones.
	Coastal bool
}

// Places is the pool of alert locations.
var Places = []Place{
	{"Kochi", "Kerala", 9.9312, 76.2673, true},
	{"Alappuzha", "Kerala", 9.4981, 76.3388, true},
	{"Chennai", "Tamil Nadu", 13.0827, 80.2707, true},
	{"Cuddalore", "Tamil Nadu", 11.7480, 79.7714, true},
	{"Puri", "Odisha", 19.8135, 85.8312, true},
	{"Visakhapatnam", "Andhra Pradesh", 17.6868, 83.2185, true},
	{"Mumbai", "Maharashtra", 19.0760, 72.8777, true},
	{"Surat", "Gujarat", 21.1702, 72.8311, true},
	{"Guwahati", "Assam", 26.1445, 91.7362, false},
	{"Shimla", "Himachal Pradesh", 31.1048, 77.1734, false},
	{"Dehradun", "Uttarakhand", 30.3165, 78.0322, false},
	{"Bhuj", "Gujarat", 23.2420, 69.6669, false},
	{"Patna", "Bihar", 25.5941, 85.1376, false},
	{"Gangtok", "Sikkim", 27.3389, 88.6065, false},
}

// CoastalTypes and InlandTypes are the disaster types drawn per place.
var (
	CoastalTypes = []models.DisasterType{
		models.DisasterTypeFlood, models.DisasterTypeFlood, models.DisasterTypeCyclone,
	}
	InlandTypes = []models.DisasterType{
		models.DisasterTypeEarthquake, models.DisasterTypeLandslide, models.DisasterTypeFire,
		models.DisasterTypeFlood, models.DisasterTypeMedical,
	}
)

// CampNames is the pool of shelter names.
var CampNames = []string{
	"Govt School Relief Camp",
	"Community Hall Shelter",
	"District Stadium Camp",
	"Panchayat Office Shelter",
	"College Auditorium Camp",
	"Railway Colony Shelter",
	"Temple Trust Relief Centre",
	"Municipal Hospital Annex",
}

// Responders is the pool of responder names for assigned missions.
var Responders = []string{
	"NDRF Team Alpha",
	"NDRF Team Bravo",
	"SDRF Kerala Unit 3",
	"Red Cross Volunteers",
	"Civil Defence Squad 7",
}

// Details holds one report line per disaster type.
var Details = map[models.DisasterType]string{
	models.DisasterTypeFlood:      "Water level rising in residential lanes, families stranded on rooftops.",
	models.DisasterTypeCyclone:    "Strong winds uprooted trees, power lines down along the coast road.",
	models.DisasterTypeEarthquake: "Cracks in several buildings, residents evacuated to open ground.",
	models.DisasterTypeLandslide:  "Debris blocking the highway, two houses buried under mud.",
	models.DisasterTypeFire:       "Fire spreading through market stalls, smoke over nearby homes.",
	models.DisasterTypeMedical:    "Cluster of fever cases reported at the relief shelter.",
}

// Resources are the stock keys every generated camp reports.
var Resources = []string{"food", "water", "medicine", "beds"}

// Levels is the distribution stock levels are drawn from.
var Levels = []models.StockLevel{
	models.StockCritical, models.StockLow, models.StockLow,
	models.StockStable, models.StockStable, models.StockSufficient, models.StockFull,
}
