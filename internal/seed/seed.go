package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/steamcity/iot-platform/internal/catalog"
	"github.com/steamcity/iot-platform/internal/docstore"
)

// Defaults for Generate.
const (
	DefaultExperiments = 5
	DefaultDays        = 7
)

type city struct {
	name string
	lon  float64
	lat  float64
}

var cities = []city{
	{"Aix-en-Provence", 5.447427, 43.529742},
	{"Marseille", 5.369780, 43.296482},
	{"Toulon", 5.928000, 43.124228},
	{"Nice", 7.265122, 43.710173},
	{"Avignon", 4.808204, 43.949317},
}

var schools = []string{"Victor Hugo", "Marie Curie", "Jean Moulin", "Albert Camus", "Émile Zola"}

// sensorStatuses weights online three to one against maintenance.
var sensorStatuses = []string{"online", "online", "online", "maintenance"}

// Options controls the generated dataset.
type Options struct {
	Experiments int
	Days        int
	Now         time.Time
	Rand        *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.Experiments <= 0 {
		o.Experiments = DefaultExperiments
	}
	if o.Days < 0 {
		o.Days = 0
	} else if o.Days == 0 {
		o.Days = DefaultDays
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(uint64(o.Now.UnixNano()), 0x5eed)) // #nosec G404 -- demo data
	}
	return o
}

// Dataset is a coherent set of demo documents.
type Dataset struct {
	SensorTypes  []docstore.Document
	Experiments  []docstore.Document
	Sensors      []docstore.Document
	Measurements []docstore.Document
}

// Generate builds demo experiments in the five partner cities, two to four
// sensors per experiment, and one reading per sensor per hour going back
// opts.Days days from opts.Now.
func Generate(opts Options) Dataset {
	opts = opts.withDefaults()
	now := docstore.NewTime(opts.Now)

	var ds Dataset
	for _, id := range catalog.SensorTypeIDs() {
		st, _ := catalog.SensorTypeByID(id)
		ds.SensorTypes = append(ds.SensorTypes, catalog.SensorTypeDocument(id, st))
	}

	ds.Experiments = experiments(opts.Experiments, now)
	for i, exp := range ds.Experiments {
		ds.Sensors = append(ds.Sensors, sensors(opts.Rand, i, exp, now)...)
	}
	for _, s := range ds.Sensors {
		ds.Measurements = append(ds.Measurements, measurements(opts.Rand, s, opts.Now, opts.Days)...)
	}
	return ds
}

func experiments(count int, now docstore.Time) []docstore.Document {
	clusters := catalog.Clusters()
	protocolIDs := catalog.ProtocolIDs()

	out := make([]docstore.Document, 0, count)
	for i := range count {
		cluster := clusters[i%len(clusters)]
		protocolID := protocolIDs[i%len(protocolIDs)]
		protocol, _ := catalog.ProtocolByID(protocolID)
		c := cities[i%len(cities)]
		school := schools[i%len(schools)]

		out = append(out, docstore.Document{
			"id":            fmt.Sprintf("exp-%03d", i+1),
			"title":         protocol.Name + " - " + school,
			"city":          c.name,
			"school":        "Lycée " + school,
			"cluster_id":    cluster.ID,
			"cluster_name":  cluster.Label,
			"protocol_id":   protocolID,
			"protocol_name": protocol.Name,
			"location": docstore.Document{
				"type":        "Point",
				"coordinates": []any{c.lon, c.lat},
			},
			"status":      "active",
			"date":        now.Format(time.DateOnly),
			"description": fmt.Sprintf("Expérience %q menée dans l'établissement.", protocol.Name),
			"created_at":  now,
			"updated_at":  now,
		})
	}
	return out
}

func sensors(rng *rand.Rand, expIndex int, exp docstore.Document, now docstore.Time) []docstore.Document {
	typeIDs := catalog.SensorTypeIDs()
	count := 2 + rng.IntN(3)

	out := make([]docstore.Document, 0, count)
	for i := range count {
		typeID := typeIDs[(expIndex+i)%len(typeIDs)]
		st, _ := catalog.SensorTypeByID(typeID)

		out = append(out, docstore.Document{
			"id":             fmt.Sprintf("sensor-%s-%d", exp["id"], i+1),
			"name":           fmt.Sprintf("Capteur %s - %s", st.Name, exp["school"]),
			"sensor_type_id": typeID,
			"type":           typeID,
			"experiment_id":  exp["id"],
			"status":         sensorStatuses[rng.IntN(len(sensorStatuses))],
			"location": docstore.Document{
				"building": fmt.Sprintf("Bâtiment %c", 'A'+rune(i%3)),
				"room":     fmt.Sprintf("Salle %d", 100+i*10),
				"indoor":   true,
			},
			"metadata": docstore.Document{
				"manufacturer": "Sensirion",
				"model":        "Model-" + strings.ToUpper(typeID),
			},
			"created_at": now,
			"updated_at": now,
		})
	}
	return out
}

func measurements(rng *rand.Rand, sensor docstore.Document, now time.Time, days int) []docstore.Document {
	hours := days * 24
	out := make([]docstore.Document, 0, hours)
	for h := range hours {
		out = append(out, docstore.Document{
			"sensor_id":      sensor["id"],
			"sensor_type_id": sensor["sensor_type_id"],
			"experiment_id":  sensor["experiment_id"],
			"timestamp":      docstore.NewTime(now.Add(-time.Duration(h) * time.Hour)),
			"value":          math.Round(rng.Float64()*100*100) / 100,
			"quality":        docstore.Document{"score": 1, "status": "good"},
		})
	}
	return out
}

// Counts reports how many documents of each kind were written.
type Counts struct {
	SensorTypes  int
	Experiments  int
	Sensors      int
	Measurements int
}

// Load empties the four collections and writes ds into store.
func Load(ctx context.Context, store docstore.Store, ds Dataset) (Counts, error) {
	for _, coll := range []string{docstore.Experiments, docstore.SensorDevices, docstore.SensorTypes, docstore.Measurements} {
		if _, err := store.Delete(ctx, coll, nil); err != nil {
			return Counts{}, fmt.Errorf("clearing %s: %w", coll, err)
		}
	}

	var (
		c   Counts
		err error
	)
	if c.SensorTypes, err = store.InsertMany(ctx, docstore.SensorTypes, ds.SensorTypes); err != nil {
		return c, fmt.Errorf("inserting sensor types: %w", err)
	}
	if c.Experiments, err = store.InsertMany(ctx, docstore.Experiments, ds.Experiments); err != nil {
		return c, fmt.Errorf("inserting experiments: %w", err)
	}
	if c.Sensors, err = store.InsertMany(ctx, docstore.SensorDevices, ds.Sensors); err != nil {
		return c, fmt.Errorf("inserting sensors: %w", err)
	}
	if c.Measurements, err = store.InsertMany(ctx, docstore.Measurements, ds.Measurements); err != nil {
		return c, fmt.Errorf("inserting measurements: %w", err)
	}
	return c, nil
}
