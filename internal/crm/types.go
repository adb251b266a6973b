package crm

import "encoding/json"

// CustomField is one entry of the CRM's custom-field bag. Fields are matched
// by label; every field is optional.
type CustomField struct {
	FieldID   int64        `json:"field_id,omitempty"`
	FieldName string       `json:"field_name"`
	Values    []FieldValue `json:"values"`
}

// FieldValue holds a single value of a custom field. The CRM sends strings,
// numbers and booleans here, so the raw value is kept loosely typed.
type FieldValue struct {
	Value interface{} `json:"value"`
}

// Lead is a CRM sales-pipeline record.
type Lead struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Price        json.Number   `json:"price"`
	CustomFields []CustomField `json:"custom_fields_values"`
}

// Field returns the value of the custom field with the given label, joined
// with ", " when the field carries multiple values. Absence yields an empty
// string, never an error.
func (l Lead) Field(label string) string {
	for _, f := range l.CustomFields {
		if f.FieldName != label {
			continue
		}
		joined := ""
		for i, v := range f.Values {
			if i > 0 {
				joined += ", "
			}
			joined += stringifyValue(v.Value)
		}
		return joined
	}
	return ""
}

func stringifyValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return json.Number(trimFloat(t)).String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func trimFloat(f float64) string {
	data, _ := json.Marshal(f)
	return string(data)
}

// CatalogRef is a catalog element linked to a lead, resolved down to the POS
// product coordinates stored on the element.
type CatalogRef struct {
	ProductID string
	SizeID    string
	Quantity  int
}

// CatalogElement is one priced item definition inside the CRM's own product
// catalog.
type CatalogElement struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	CustomFields []CustomField `json:"custom_fields_values"`
}

// FieldByID returns the first value of the custom field with the given
// numeric id, or "" when absent.
func (e CatalogElement) FieldByID(fieldID int64) string {
	for _, f := range e.CustomFields {
		if f.FieldID != fieldID {
			continue
		}
		if len(f.Values) == 0 {
			return ""
		}
		return stringifyValue(f.Values[0].Value)
	}
	return ""
}
