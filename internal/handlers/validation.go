package handlers

import (
	"context"
	"fmt"
	"math"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

const maxImageKilobytes = 2048

var (
	imageMIMETypes  = []string{"image/jpeg", "image/png", "image/gif"}
	imageExtensions = []string{"jpeg", "png", "jpg", "gif"}
)

// ValidationError lists every failed constraint, keyed by field name.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// check inspects one field. It returns a message when the constraint is
// violated and an error only when the check itself could not run.
type check func(ctx context.Context, attr string, f fieldInput) (string, error)

// fieldInput is the field a check is looking at.
type fieldInput struct {
	name string
	in   *requestFields
}

// value is the trimmed value; raw keeps surrounding whitespace.
func (f fieldInput) value() string {
	return f.in.get(f.name)
}

func (f fieldInput) raw() string {
	return f.in.values[f.name]
}

// fieldRule is one row of a constraint table.
type fieldRule struct {
	field string
	// required fields must be filled. When sometimes is also set the
	// requirement only applies once the field is sent.
	required  bool
	sometimes bool
	checks    []check
}

type constraints []fieldRule

// validate evaluates the table against in. Checks only run for filled
// fields; a blank field can only fail its required constraint.
func (c constraints) validate(ctx context.Context, in *requestFields) error {
	verr := &ValidationError{}
	for _, rule := range c {
		attr := strings.ReplaceAll(rule.field, "_", " ")

		if rule.sometimes && !in.has(rule.field) {
			continue
		}
		if !in.filled(rule.field) {
			if rule.required {
				verr.add(rule.field, fmt.Sprintf("The %s field is required.", attr))
			}
			continue
		}

		for _, chk := range rule.checks {
			message, err := chk(ctx, attr, fieldInput{name: rule.field, in: in})
			if err != nil {
				return fmt.Errorf("validate %s: %w", rule.field, err)
			}
			if message != "" {
				verr.add(rule.field, message)
			}
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

var emailValidator = validator.New()

func isString() check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		if f.in.nonString[f.name] || f.in.file(f.name) != nil {
			return fmt.Sprintf("The %s field must be a string.", attr), nil
		}
		return "", nil
	}
}

func maxChars(n int) check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		if len([]rune(f.value())) > n {
			return fmt.Sprintf("The %s field must not be greater than %d characters.", attr, n), nil
		}
		return "", nil
	}
}

func minChars(n int) check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		if len([]rune(f.raw())) < n {
			return fmt.Sprintf("The %s field must be at least %d characters.", attr, n), nil
		}
		return "", nil
	}
}

// maxBytes bounds the encoded length; bcrypt rejects passwords over 72 bytes.
func maxBytes(n int) check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		if len(f.raw()) > n {
			return fmt.Sprintf("The %s field must not be greater than %d characters.", attr, n), nil
		}
		return "", nil
	}
}

func email() check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		if err := emailValidator.Var(f.value(), "email"); err != nil {
			return fmt.Sprintf("The %s field must be a valid email address.", attr), nil
		}
		return "", nil
	}
}

func numeric() check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		if _, ok := parseNumber(f.value()); !ok {
			return fmt.Sprintf("The %s field must be a number.", attr), nil
		}
		return "", nil
	}
}

func integer() check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		if _, ok := parseInteger(f.value()); !ok {
			return fmt.Sprintf("The %s field must be an integer.", attr), nil
		}
		return "", nil
	}
}

// minValue is the numeric lower bound. Non-numeric input is left to the
// numeric and integer checks.
func minValue(n float64) check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		value, ok := parseNumber(f.value())
		if ok && value < n {
			return fmt.Sprintf("The %s field must be at least %s.", attr, strconv.FormatFloat(n, 'f', -1, 64)), nil
		}
		return "", nil
	}
}

func maxValue(n float64) check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		value, ok := parseNumber(f.value())
		if ok && value > n {
			return fmt.Sprintf("The %s field must not be greater than %s.", attr, strconv.FormatFloat(n, 'f', -1, 64)), nil
		}
		return "", nil
	}
}

// confirmed requires <field>_confirmation to carry the same value.
func confirmed() check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		if f.raw() != f.in.values[f.name+"_confirmation"] {
			return fmt.Sprintf("The %s field confirmation does not match.", attr), nil
		}
		return "", nil
	}
}

// unique fails when taken reports the value as already in use.
func unique(taken func(ctx context.Context, value string) (bool, error)) check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		exists, err := taken(ctx, f.value())
		if err != nil {
			return "", err
		}
		if exists {
			return fmt.Sprintf("The %s has already been taken.", attr), nil
		}
		return "", nil
	}
}

// isImage requires an uploaded file whose content sniffs as an image.
func isImage() check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		data, err := f.in.readFile(f.name, maxImageKilobytes<<10)
		if err != nil {
			return "", err
		}
		if data == nil || !strings.HasPrefix(mimetype.Detect(data).String(), "image/") {
			return fmt.Sprintf("The %s field must be an image.", attr), nil
		}
		return "", nil
	}
}

// mimes restricts the sniffed content type and the client extension.
func mimes() check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		message := fmt.Sprintf("The %s field must be a file of type: %s.", attr, strings.Join(imageExtensions, ", "))

		header := f.in.file(f.name)
		if header == nil {
			return message, nil
		}
		data, err := f.in.readFile(f.name, maxImageKilobytes<<10)
		if err != nil {
			return "", err
		}
		if !slices.ContainsFunc(imageMIMETypes, mimetype.Detect(data).Is) {
			return message, nil
		}

		ext := strings.TrimPrefix(strings.ToLower(path.Ext(header.Filename)), ".")
		if ext != "" && !slices.Contains(imageExtensions, ext) {
			return message, nil
		}
		return "", nil
	}
}

func maxKilobytes(n int64) check {
	return func(ctx context.Context, attr string, f fieldInput) (string, error) {
		data, err := f.in.readFile(f.name, n<<10)
		if err != nil {
			return "", err
		}
		if int64(len(data)) > n<<10 {
			return fmt.Sprintf("The %s field must not be greater than %d kilobytes.", attr, n), nil
		}
		return "", nil
	}
}

func parseNumber(raw string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func parseInteger(raw string) (int, bool) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return value, true
}
