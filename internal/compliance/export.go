package compliance

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"time"

	"veil/pkg/domain"
	dErrors "veil/pkg/domain-errors"
)

// exportBundle is the serializable shape shared by all portability formats.
type exportBundle struct {
	XMLName    xml.Name      `json:"-" xml:"export"`
	UserID     domain.UserID `json:"userId" xml:"userId"`
	ExportDate time.Time     `json:"exportDate" xml:"exportDate"`
	Data       PersonalData  `json:"data" xml:"-"`

	// XML cannot marshal the free-form profile map; it is flattened into
	// field elements for that format only.
	XMLCohorts []domain.CohortAssignment `json:"-" xml:"cohorts>cohort"`
	XMLPrefs   domain.UserPreferences    `json:"-" xml:"preferences"`
	XMLProfile []xmlField                `json:"-" xml:"profile>field,omitempty"`
	XMLLogs    []domain.APIRequestLog    `json:"-" xml:"apiRequestLogs>request"`
}

type xmlField struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

func serializeExport(bundle exportBundle, format ExportFormat) ([]byte, error) {
	switch format {
	case FormatJSON:
		return exportJSON(bundle)
	case FormatCSV:
		return exportCSV(bundle)
	case FormatXML:
		return exportXML(bundle)
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unsupported export format: %s", format)
	}
}

func exportJSON(bundle exportBundle) ([]byte, error) {
	out, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json export: %w", err)
	}
	return out, nil
}

// exportCSV writes a section/field/value sheet. Regulators asked for flat
// files get one table covering the whole bundle.
func exportCSV(bundle exportBundle) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"section", "field", "value"}}
	rows = append(rows,
		[]string{"export", "userId", bundle.UserID.String()},
		[]string{"export", "exportDate", bundle.ExportDate.Format(time.RFC3339)},
	)
	for i, c := range bundle.Data.CohortData {
		prefix := fmt.Sprintf("cohort[%d]", i)
		rows = append(rows,
			[]string{prefix, "topicId", strconv.Itoa(c.TopicID)},
			[]string{prefix, "topicName", c.TopicName},
			[]string{prefix, "confidence", strconv.FormatFloat(c.Confidence, 'f', -1, 64)},
			[]string{prefix, "assignedDate", c.AssignedDate.Format(time.RFC3339)},
			[]string{prefix, "expiryDate", c.ExpiryDate.Format(time.RFC3339)},
		)
	}
	prefs := bundle.Data.Preferences
	rows = append(rows,
		[]string{"preferences", "cohortsEnabled", strconv.FormatBool(prefs.CohortsEnabled)},
		[]string{"preferences", "dataRetentionDays", strconv.Itoa(prefs.DataRetentionDays)},
		[]string{"preferences", "shareWithAdvertisers", strconv.FormatBool(prefs.ShareWithAdvertisers)},
		[]string{"preferences", "disabledTopics", fmt.Sprint(prefs.DisabledTopics)},
	)
	for _, f := range flattenProfile(bundle.Data.Profile) {
		rows = append(rows, []string{"profile", f.Key, f.Value})
	}
	for i, l := range bundle.Data.APIRequestLogs {
		prefix := fmt.Sprintf("apiRequest[%d]", i)
		rows = append(rows,
			[]string{prefix, "requestId", l.RequestID},
			[]string{prefix, "domain", l.Domain},
			[]string{prefix, "timestamp", l.Timestamp.Format(time.RFC3339)},
			[]string{prefix, "requestType", l.RequestType},
			[]string{prefix, "cohortsShared", fmt.Sprint(l.CohortsShared)},
			[]string{prefix, "userConsent", strconv.FormatBool(l.UserConsent)},
		)
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode csv export: %w", err)
	}
	return buf.Bytes(), nil
}

func exportXML(bundle exportBundle) ([]byte, error) {
	bundle.XMLCohorts = bundle.Data.CohortData
	bundle.XMLPrefs = bundle.Data.Preferences
	bundle.XMLProfile = flattenProfile(bundle.Data.Profile)
	bundle.XMLLogs = bundle.Data.APIRequestLogs

	body, err := xml.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode xml export: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func flattenProfile(profile map[string]any) []xmlField {
	if len(profile) == 0 {
		return nil
	}
	keys := make([]string, 0, len(profile))
	for k := range profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]xmlField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, xmlField{Key: k, Value: fmt.Sprint(profile[k])})
	}
	return fields
}

// checksum fingerprints export content so any change in the underlying data
// changes the published digest.
func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
