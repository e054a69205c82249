package registry

import "github.com/steamcity/iot-platform/internal/docstore"

// FilterParam maps a list query parameter onto a document field.
type FilterParam struct {
	Param string
	Field string
}

// Kind describes one entity type served by a Registry.
type Kind struct {
	// Collection is the docstore collection holding the documents.
	Collection string

	// Name is the display name used in messages ("Sensor not found").
	Name string

	// Required lists the fields a new document must carry. Each entry is a
	// group of alternatives; the group is satisfied by any one of them.
	Required [][]string

	// RequiredMessage is the validation message when a group is missing.
	RequiredMessage string

	// Aliases are field pairs holding the same value. A created document or
	// an update patch carrying only one field of a pair gets the other
	// filled in.
	Aliases [][2]string

	// Filters are the equality filters accepted by List.
	Filters []FilterParam
}

// ExperimentKind is the experiments collection.
var ExperimentKind = Kind{
	Collection:      docstore.Experiments,
	Name:            "Experiment",
	Required:        [][]string{{"id"}, {"title"}},
	RequiredMessage: "Missing required fields: id and title",
}

// SensorKind is the sensor devices collection. The sensor type may be given
// as either type or sensor_type_id.
var SensorKind = Kind{
	Collection:      docstore.SensorDevices,
	Name:            "Sensor",
	Required:        [][]string{{"id"}, {"experiment_id"}, {"type", "sensor_type_id"}},
	RequiredMessage: "Missing required fields: id, experiment_id, and type",
	Aliases:         [][2]string{{"type", "sensor_type_id"}},
	Filters: []FilterParam{
		{Param: "experiment_id", Field: "experiment_id"},
		{Param: "type", Field: "type"},
		{Param: "sensor_type_id", Field: "sensor_type_id"},
		{Param: "status", Field: "status"},
	},
}

// Present reports whether a document field counts as supplied: a non-empty
// string or any other non-nil value.
func Present(doc docstore.Document, field string) bool {
	v, ok := doc[field]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

func (k Kind) missingRequired(doc docstore.Document) bool {
	for _, group := range k.Required {
		satisfied := false
		for _, field := range group {
			if Present(doc, field) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return true
		}
	}
	return false
}

func (k Kind) fillAliases(doc docstore.Document) {
	for _, pair := range k.Aliases {
		a, b := pair[0], pair[1]
		switch {
		case Present(doc, a) && !Present(doc, b):
			doc[b] = doc[a]
		case Present(doc, b) && !Present(doc, a):
			doc[a] = doc[b]
		}
	}
}

func (k Kind) notFound() error {
	return &Error{Err: ErrNotFound, Message: k.Name + " not found"}
}

func (k Kind) duplicate() error {
	return &Error{Err: ErrDuplicate, Message: k.Name + " with this ID already exists"}
}
