package backend

import (
	"encoding/json"
	"fmt"

	"github.com/tunebridge/console/internal/models"
)

// wireEntity lists the fields the gateway reads from any workflow record.
// Releases keep their title under step1.
type wireEntity struct {
	ID            json.RawMessage `json:"id"`
	Name          string          `json:"name"`
	Title         string          `json:"title"`
	Subject       string          `json:"subject"`
	Status        string          `json:"status"`
	ReleaseStatus string          `json:"releaseStatus"`
	Category      string          `json:"category"`
	RequestStatus string          `json:"requestStatus"`
	Step1         *struct {
		Title string `json:"title"`
	} `json:"step1"`
}

// DecodeEntity maps a backend record onto the shared workflow shape. When
// the record carries no category tag the family's category is used.
func DecodeEntity(entityType models.EntityType, family models.Category, raw json.RawMessage) (models.WorkflowEntity, error) {
	var w wireEntity
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.WorkflowEntity{}, fmt.Errorf("decode %s record: %w", entityType, err)
	}
	id := recordID(w.ID)
	if id == "" {
		return models.WorkflowEntity{}, fmt.Errorf("decode %s record: missing id", entityType)
	}

	rawStatus := w.Status
	if rawStatus == "" {
		rawStatus = w.ReleaseStatus
	}
	status, err := models.ParseStatus(entityType, rawStatus)
	if err != nil {
		return models.WorkflowEntity{}, err
	}

	rawCategory := w.Category
	if rawCategory == "" {
		rawCategory = string(family)
	}
	category, err := models.ParseCategory(entityType, rawCategory)
	if err != nil {
		return models.WorkflowEntity{}, err
	}

	name := w.Name
	for _, alt := range []string{w.Title, w.Subject} {
		if name == "" {
			name = alt
		}
	}
	if name == "" && w.Step1 != nil {
		name = w.Step1.Title
	}

	return models.WorkflowEntity{
		ID:             id,
		Type:           entityType,
		Name:           name,
		Status:         status,
		Category:       category,
		RequestStatus:  w.RequestStatus,
		HasOpenRequest: models.IsRequestOpen(w.RequestStatus),
		Record:         raw,
	}, nil
}

// DecodePage decodes every item of a raw page. A single malformed record
// fails the whole page so the list never silently drops rows.
func DecodePage(entityType models.EntityType, family models.Category, page *RawPage) (*models.EntityPage, error) {
	out := &models.EntityPage{
		Items:      make([]models.WorkflowEntity, 0, len(page.Items)),
		Pagination: page.Pagination,
	}
	for _, raw := range page.Items {
		e, err := DecodeEntity(entityType, family, raw)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, e)
	}
	return out, nil
}

// recordID accepts both string and numeric ids.
func recordID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
