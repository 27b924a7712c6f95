package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type Scheme struct {
	SchemeName        string `json:"scheme_name"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	Description       string `json:"description"`
	Benefits          string `json:"benefits"`
	Eligibility       string `json:"eligibility"`
	RequiredDocuments string `json:"required_documents"`
	ApplyLink         string `json:"apply_link"`
	OfficialWebsite   string `json:"official_website"`
	State             string `json:"state"`
	Category          string `json:"category"`
	LastUpdated       string `json:"last_updated"`
}

const DefaultState = "All India"

var (
	bracketedSpan = regexp.MustCompile(`(?s)(\[.*\]|\{.*\})`)
	jsonFence     = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\]|\\{.*?\\})\\s*```")
	anyFence      = regexp.MustCompile("(?s)```\\s*(\\[.*?\\]|\\{.*?\\})\\s*```")
)

func decode(text string) (interface{}, bool) {
	var value interface{}
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, false
	}
	return value, true
}

func decodeMatch(re *regexp.Regexp, text string) (interface{}, bool) {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	return decode(match[1])
}

// ParseResponse recovers json from a model reply. It tries, in order, the
// outermost bracketed span, the whole reply, a ```json fence and any fence.
func ParseResponse(text string) (interface{}, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if value, ok := decodeMatch(bracketedSpan, text); ok {
		return value, true
	}
	if value, ok := decode(text); ok {
		return value, true
	}
	if value, ok := decodeMatch(jsonFence, text); ok {
		return value, true
	}
	return decodeMatch(anyFence, text)
}

func stringField(record map[string]interface{}, key string) string {
	value, ok := record[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64, bool:
		return fmt.Sprint(v)
	}
	return ""
}

// CleanSchemes normalizes parsed records. A single object is treated as a
// one element list and records without a scheme name are dropped.
func CleanSchemes(parsed interface{}, url string) []Scheme {
	var records []interface{}
	switch v := parsed.(type) {
	case map[string]interface{}:
		records = []interface{}{v}
	case []interface{}:
		records = v
	}

	schemes := make([]Scheme, 0, len(records))
	for _, r := range records {
		record, ok := r.(map[string]interface{})
		if !ok {
			continue
		}

		name := stringField(record, "scheme_name")
		if name == "" {
			continue
		}

		scheme := Scheme{
			SchemeName:        name,
			StartDate:         stringField(record, "start_date"),
			EndDate:           stringField(record, "end_date"),
			Description:       stringField(record, "description"),
			Benefits:          stringField(record, "benefits"),
			Eligibility:       stringField(record, "eligibility"),
			RequiredDocuments: stringField(record, "required_documents"),
			ApplyLink:         stringField(record, "apply_link"),
			OfficialWebsite:   stringField(record, "official_website"),
			State:             stringField(record, "state"),
			Category:          stringField(record, "category"),
			LastUpdated:       stringField(record, "last_updated"),
		}
		if scheme.OfficialWebsite == "" {
			scheme.OfficialWebsite = url
		}
		if scheme.State == "" {
			scheme.State = DefaultState
		}

		schemes = append(schemes, scheme)
	}

	return schemes
}
