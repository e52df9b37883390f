package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/crm-basico/internal/domain"
)

// ContactForm is the submitted contact form, shared by create and update.
type ContactForm struct {
	Name    string `form:"nombre" json:"nombre"`
	Email   string `form:"correo" json:"correo"`
	Phone   string `form:"telefono" json:"telefono"`
	Company string `form:"empresa" json:"empresa"`
	Status  string `form:"estado" json:"estado"`
}

// Error carries one message per rejected field, in form order.
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return strings.Join(e.Messages, ", ")
}

// normalizedContact is the form after trimming; the tags run against it.
type normalizedContact struct {
	Name    string `validate:"required,min=2,max=255"`
	Email   string `validate:"required,max=255,email"`
	Phone   string `validate:"omitempty,telefono"`
	Company string `validate:"omitempty,max=255"`
	Status  string `validate:"omitempty,oneof=prospecto cliente inactivo"`
}

var (
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{6,15}$`)
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("telefono", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

var messages = map[string]func(tag string) string{
	"Name": func(tag string) string {
		if tag == "required" {
			return "El nombre es obligatorio"
		}
		return "El nombre debe tener entre 2 y 255 caracteres"
	},
	"Email":   func(string) string { return "El correo electrónico no es válido" },
	"Phone":   func(string) string { return "El teléfono no es válido" },
	"Company": func(string) string { return "El nombre de la empresa es demasiado largo" },
	"Status":  func(string) string { return "Estado no válido" },
}

// Validate normalizes and checks the form. On success it returns the input
// ready for storage: trimmed, lower-cased email, separators stripped from the
// phone, empty optionals as nil and an empty status defaulted to prospecto.
// The returned strings never share memory with the form, whose fields may
// point into a pooled request buffer.
func Validate(form ContactForm) (domain.ContactInput, error) {
	n := normalizedContact{
		Name:    utils.CopyString(strings.TrimSpace(form.Name)),
		Email:   utils.CopyString(strings.ToLower(strings.TrimSpace(form.Email))),
		Phone:   utils.CopyString(NormalizePhone(form.Phone)),
		Company: utils.CopyString(strings.TrimSpace(form.Company)),
		Status:  utils.CopyString(strings.TrimSpace(form.Status)),
	}

	if err := validate.Struct(n); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return domain.ContactInput{}, err
		}
		out := &Error{Messages: make([]string, 0, len(fieldErrs))}
		for _, fe := range fieldErrs {
			msg, ok := messages[fe.StructField()]
			if !ok {
				continue
			}
			out.Messages = append(out.Messages, msg(fe.Tag()))
		}
		return domain.ContactInput{}, out
	}

	status := domain.ContactStatus(n.Status)
	if !status.Valid() {
		status = domain.ContactStatusProspect
	}

	return domain.ContactInput{
		Name:    n.Name,
		Email:   n.Email,
		Phone:   optional(n.Phone),
		Company: optional(n.Company),
		Status:  status,
	}, nil
}

// NormalizePhone trims the value and drops common separators.
func NormalizePhone(raw string) string {
	return phoneSeparators.Replace(strings.TrimSpace(raw))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
