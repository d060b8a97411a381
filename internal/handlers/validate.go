package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"classifieds/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so field errors match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("location_type", func(fl validator.FieldLevel) bool {
		return models.LocationType(fl.Field().String()).Valid()
	})

	return v
}

// optionalID distinguishes an absent parent_id from an explicit null.
type optionalID struct {
	Set   bool
	Value *int64
}

// UnmarshalJSON is only called when the key is present, null included.
func (o *optionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("parent_id: %w", err)
	}
	o.Value = &id
	return nil
}

type createNodeRequest struct {
	ParentID  *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	Name      string `json:"name" validate:"required,max=200"`
	SortOrder *int   `json:"sort_order" validate:"omitempty,gte=0"`
	IsActive  *bool  `json:"is_active"`
	Type      string `json:"type" validate:"omitempty,location_type"`
}

func (req createNodeRequest) input() models.NodeInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return models.NodeInput{
		ParentID:  req.ParentID,
		Name:      req.Name,
		SortOrder: req.SortOrder,
		IsActive:  active,
		Type:      models.LocationType(req.Type),
	}
}

type updateNodeRequest struct {
	Name      *string    `json:"name" validate:"omitempty,min=1,max=200"`
	SortOrder *int       `json:"sort_order" validate:"omitempty,gte=0"`
	IsActive  *bool      `json:"is_active"`
	Type      *string    `json:"type" validate:"omitempty,location_type"`
	ParentID  optionalID `json:"parent_id"`
}

func (req updateNodeRequest) patch() models.NodePatch {
	p := models.NodePatch{
		Name:       req.Name,
		SortOrder:  req.SortOrder,
		IsActive:   req.IsActive,
		MoveParent: req.ParentID.Set,
		ParentID:   req.ParentID.Value,
	}
	if req.Type != nil {
		t := models.LocationType(*req.Type)
		p.Type = &t
	}
	return p
}

type moveNodeRequest struct {
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

type reorderItemRequest struct {
	ID       int64  `json:"id" validate:"required,gt=0"`
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	Order    int    `json:"order" validate:"gte=0"`
}

type reorderRequest struct {
	Items []reorderItemRequest `json:"items" validate:"required,min=1,max=5000,dive"`
}

func (req reorderRequest) items() []models.ReorderItem {
	items := make([]models.ReorderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = models.ReorderItem{ID: it.ID, ParentID: it.ParentID, Order: it.Order}
	}
	return items
}

// validationError carries per-field messages keyed by JSON path.
type validationError struct {
	Fields map[string]string
}

func (e *validationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// validateRequest runs struct validation and turns field errors into a
// *validationError.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fieldPath(fe)] = fieldMessage(fe)
	}
	return &validationError{Fields: fields}
}

// fieldPath strips the struct name from the namespace:
// "reorderRequest.items[2].id" becomes "items[2].id".
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "location_type":
		return fmt.Sprintf("must be one of: %s, %s, %s, %s",
			models.LocationCountry, models.LocationCity,
			models.LocationDistrict, models.LocationNeighborhood)
	default:
		return "is invalid"
	}
}
