package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/steamcity/iot-platform/internal/docstore"
)

// Cluster is one of the thematic clusters experiments belong to.
type Cluster struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// Protocol is an experimental protocol definition.
type Protocol struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// SensorType describes a kind of sensor and the range of values it reports.
// Boolean sensors have no Range or Precision.
type SensorType struct {
	Name      string      `json:"name"`
	Icon      string      `json:"icon"`
	Unit      string      `json:"unit"`
	Range     *[2]float64 `json:"range,omitempty"`
	Precision *float64    `json:"precision,omitempty"`
	Type      string      `json:"type,omitempty"`
}

// Status is a labelled, coloured enumeration value.
type Status struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Config is the payload served by the reference endpoint.
type Config struct {
	Clusters         map[string]Cluster    `json:"CLUSTERS"`
	Protocols        map[string]Protocol   `json:"PROTOCOLS"`
	SensorTypes      map[string]SensorType `json:"SENSOR_TYPES"`
	SensorStatus     map[string]Status     `json:"SENSOR_STATUS"`
	ExperimentStatus map[string]Status     `json:"EXPERIMENT_STATUS"`
}

func numeric(lo, hi, precision float64) (*[2]float64, *float64) {
	return &[2]float64{lo, hi}, &precision
}

var clusters = []Cluster{
	{ID: 1, Label: "Governance and citizenship", Color: "blue", Icon: "🏛️"},
	{ID: 2, Label: "Environmental quality", Color: "green", Icon: "🌿"},
	{ID: 3, Label: "Mobility", Color: "red", Icon: "🚗"},
	{ID: 4, Label: "Energy savings", Color: "yellow", Icon: "⚡"},
	{ID: 5, Label: "AI and technologies", Color: "purple", Icon: "🤖"},
}

var protocolIDs = []string{
	"city-detective", "data-storytelling", "open-data-explorer",
	"sound-mapping", "noise-pollution", "soundscape-ecology",
	"air-quality-monitoring", "pollution-sources",
	"energy-audit", "renewable-energy", "energy-consumption",
	"light-pollution", "natural-lighting",
	"urban-biodiversity", "pollinator-watch",
	"mobility-patterns", "active-transport",
	"iot-basics", "urban-heat-island",
	"ai-image-recognition", "ml-prediction", "chatbot-development", "ai-data-analysis", "computer-vision",
}

var protocols = map[string]Protocol{
	"city-detective":         {Name: "City Detective Challenge", Category: "Data Analysis"},
	"data-storytelling":      {Name: "Data Storytelling", Category: "Data Analysis"},
	"open-data-explorer":     {Name: "Open Data Explorer", Category: "Data Analysis"},
	"sound-mapping":          {Name: "Sound Mapping", Category: "Sound"},
	"noise-pollution":        {Name: "Noise Pollution Investigation", Category: "Sound"},
	"soundscape-ecology":     {Name: "Soundscape Ecology", Category: "Sound"},
	"air-quality-monitoring": {Name: "Air Quality Monitoring", Category: "Air Quality"},
	"pollution-sources":      {Name: "Pollution Sources Investigation", Category: "Air Quality"},
	"energy-audit":           {Name: "Energy Audit", Category: "Energy"},
	"renewable-energy":       {Name: "Renewable Energy Assessment", Category: "Energy"},
	"energy-consumption":     {Name: "Energy Consumption Patterns", Category: "Energy"},
	"light-pollution":        {Name: "Light Pollution Study", Category: "Light"},
	"natural-lighting":       {Name: "Natural Lighting Optimization", Category: "Light"},
	"urban-biodiversity":     {Name: "Urban Biodiversity Survey", Category: "Biodiversity"},
	"pollinator-watch":       {Name: "Pollinator Watch", Category: "Biodiversity"},
	"mobility-patterns":      {Name: "Mobility Patterns Analysis", Category: "Mobility"},
	"active-transport":       {Name: "Active Transport Promotion", Category: "Mobility"},
	"iot-basics":             {Name: "IoT Basics", Category: "IoT"},
	"urban-heat-island":      {Name: "Urban Heat Island Effect", Category: "Temperature"},
	"ai-image-recognition":   {Name: "AI Image Recognition", Category: "AI"},
	"ml-prediction":          {Name: "Machine Learning Prediction", Category: "AI"},
	"chatbot-development":    {Name: "Chatbot Development", Category: "AI"},
	"ai-data-analysis":       {Name: "AI-Assisted Data Analysis", Category: "AI"},
	"computer-vision":        {Name: "Computer Vision for Cities", Category: "AI"},
}

var sensorTypeIDs = []string{
	"temperature", "humidity", "co2", "noise", "pm25",
	"pm10", "light", "pressure", "motion", "door",
}

func buildSensorTypes() map[string]SensorType {
	st := func(name, icon, unit string, lo, hi, precision float64) SensorType {
		r, p := numeric(lo, hi, precision)
		return SensorType{Name: name, Icon: icon, Unit: unit, Range: r, Precision: p}
	}
	boolean := func(name, icon string) SensorType {
		return SensorType{Name: name, Icon: icon, Unit: "bool", Type: "boolean"}
	}

	return map[string]SensorType{
		"temperature": st("Température", "🌡️", "°C", -40, 85, 0.1),
		"humidity":    st("Humidité", "💧", "%", 0, 100, 0.5),
		"co2":         st("CO2", "🌬️", "ppm", 0, 10000, 1),
		"noise":       st("Niveau sonore", "🔊", "dB", 0, 140, 0.1),
		"pm25":        st("PM2.5", "🫁", "μg/m³", 0, 500, 0.1),
		"pm10":        st("PM10", "🌫️", "μg/m³", 0, 1000, 0.1),
		"light":       st("Luminosité", "💡", "lux", 0, 100000, 1),
		"pressure":    st("Pression", "🌤️", "hPa", 800, 1200, 0.1),
		"motion":      boolean("Mouvement", "🏃"),
		"door":        boolean("Ouverture", "🚪"),
	}
}

var sensorTypes = buildSensorTypes()

var sensorStatus = map[string]Status{
	"online":      {Label: "En ligne", Color: "#27ae60"},
	"offline":     {Label: "Hors ligne", Color: "#e74c3c"},
	"maintenance": {Label: "Maintenance", Color: "#f39c12"},
}

var experimentStatus = map[string]Status{
	"active":    {Label: "Active", Color: "#27ae60"},
	"completed": {Label: "Completed", Color: "#3498db"},
	"pending":   {Label: "Pending", Color: "#f39c12"},
}

// Reference returns every enumeration as one payload. The maps are fresh
// copies on every call.
func Reference() Config {
	cfg := Config{
		Clusters:         make(map[string]Cluster, len(clusters)),
		Protocols:        make(map[string]Protocol, len(protocols)),
		SensorTypes:      make(map[string]SensorType, len(sensorTypes)),
		SensorStatus:     make(map[string]Status, len(sensorStatus)),
		ExperimentStatus: make(map[string]Status, len(experimentStatus)),
	}
	for _, c := range clusters {
		cfg.Clusters[strconv.Itoa(c.ID)] = c
	}
	for k, v := range protocols {
		cfg.Protocols[k] = v
	}
	for k, v := range sensorTypes {
		cfg.SensorTypes[k] = v
	}
	for k, v := range sensorStatus {
		cfg.SensorStatus[k] = v
	}
	for k, v := range experimentStatus {
		cfg.ExperimentStatus[k] = v
	}
	return cfg
}

// Clusters returns the thematic clusters ordered by id.
func Clusters() []Cluster {
	out := make([]Cluster, len(clusters))
	copy(out, clusters)
	return out
}

// ClusterByID looks up a cluster.
func ClusterByID(id int) (Cluster, bool) {
	for _, c := range clusters {
		if c.ID == id {
			return c, true
		}
	}
	return Cluster{}, false
}

// ProtocolIDs returns the protocol identifiers in catalogue order.
func ProtocolIDs() []string {
	out := make([]string, len(protocolIDs))
	copy(out, protocolIDs)
	return out
}

// ProtocolByID looks up a protocol.
func ProtocolByID(id string) (Protocol, bool) {
	p, ok := protocols[id]
	return p, ok
}

// SensorTypeIDs returns the sensor type identifiers in catalogue order.
func SensorTypeIDs() []string {
	out := make([]string, len(sensorTypeIDs))
	copy(out, sensorTypeIDs)
	return out
}

// SensorTypeByID looks up a sensor type.
func SensorTypeByID(id string) (SensorType, bool) {
	st, ok := sensorTypes[id]
	return st, ok
}

// SensorStatuses returns the sensor status keys, sorted.
func SensorStatuses() []string {
	keys := make([]string, 0, len(sensorStatus))
	for k := range sensorStatus {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SensorTypeDocument renders a sensor type as it is persisted in the
// sensor_types collection: the catalogue entry plus its id.
func SensorTypeDocument(id string, st SensorType) docstore.Document {
	doc := docstore.Document{
		"id":   id,
		"name": st.Name,
		"icon": st.Icon,
		"unit": st.Unit,
	}
	if st.Range != nil {
		doc["range"] = []any{st.Range[0], st.Range[1]}
	}
	if st.Precision != nil {
		doc["precision"] = *st.Precision
	}
	if st.Type != "" {
		doc["type"] = st.Type
	}
	return doc
}

// SyncSensorTypes inserts every catalogue sensor type missing from the
// sensor_types collection and returns how many were added. Existing
// documents are left as they are.
func SyncSensorTypes(ctx context.Context, store docstore.Store) (int, error) {
	added := 0
	for _, id := range sensorTypeIDs {
		_, err := store.FindOne(ctx, docstore.SensorTypes, docstore.NewFilter().Eq("id", id))
		if err == nil {
			continue
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return added, fmt.Errorf("looking up sensor type %s: %w", id, err)
		}

		_, err = store.Insert(ctx, docstore.SensorTypes, SensorTypeDocument(id, sensorTypes[id]))
		if errors.Is(err, docstore.ErrDuplicate) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("inserting sensor type %s: %w", id, err)
		}
		added++
	}
	return added, nil
}
