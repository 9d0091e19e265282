package homepage

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/eringen/printshop/sanitize"
)

// SectionInput is the editable part of a section. ID is optional: when empty
// the id is derived from Title.
type SectionInput struct {
	ID               string         `json:"id" validate:"omitempty,max=120"`
	Title            string         `json:"title" validate:"required,max=120"`
	Subtitle         *string        `json:"subtitle" validate:"omitempty,max=240"`
	LayoutKind       LayoutKind     `json:"layoutKind" validate:"required,oneof=featured grid"`
	Background       Background     `json:"background" validate:"required,oneof=white gray"`
	CTALabel         string         `json:"ctaLabel" validate:"max=60"`
	CTAHref          string         `json:"ctaHref"`
	LinkedCategoryID *string        `json:"linkedCategoryId" validate:"omitempty,max=64"`
	Active           *bool          `json:"active"`
	Config           map[string]any `json:"config"`
}

// ItemInput links a product into a section. Position is 1-based; when nil
// the item goes last. Out-of-range positions saturate.
type ItemInput struct {
	ProductID string         `json:"productId" validate:"required,max=64"`
	Position  *int           `json:"position"`
	Metadata  map[string]any `json:"metadata"`
}

// ItemUpdate replaces an item's metadata.
type ItemUpdate struct {
	Metadata map[string]any `json:"metadata"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (in *SectionInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.CTALabel = strings.TrimSpace(in.CTALabel)
	if in.LayoutKind == "" {
		in.LayoutKind = LayoutFeatured
	}
	if in.Background == "" {
		in.Background = BackgroundWhite
	}
	if in.Subtitle != nil && strings.TrimSpace(*in.Subtitle) == "" {
		in.Subtitle = nil
	}
	if in.LinkedCategoryID != nil && strings.TrimSpace(*in.LinkedCategoryID) == "" {
		in.LinkedCategoryID = nil
	}
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(FieldProblem{Field: "body", Message: err.Error()})
	}
	problems := make([]FieldProblem, 0, len(verrs))
	for _, e := range verrs {
		problems = append(problems, FieldProblem{Field: e.Field(), Message: validationMessage(e)})
	}
	return NewValidationError(problems...)
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	case "oneof":
		return "Must be one of: " + e.Param()
	default:
		return "Invalid value"
	}
}

// checkSectionID validates a generated id.
func checkSectionID(id string) error {
	if !sanitize.ValidSectionID(id) {
		return NewValidationError(FieldProblem{
			Field:   "id",
			Message: "Must be 2-60 characters of a-z, 0-9 or -",
		})
	}
	return nil
}

// checkLinkable rejects products missing the fields a homepage card needs.
func checkLinkable(p ProductRecord) error {
	var problems []FieldProblem
	if strings.TrimSpace(p.Name.String) == "" {
		problems = append(problems, FieldProblem{Field: "product.name", Message: "Product has no name"})
	}
	if _, ok := coercePrice(p.Price); !ok {
		problems = append(problems, FieldProblem{Field: "product.price", Message: "Product has no price"})
	}
	if !p.Unit.Valid {
		problems = append(problems, FieldProblem{Field: "product.unit", Message: "Product has no unit"})
	}
	if len(problems) > 0 {
		return NewValidationError(problems...)
	}
	return nil
}
