package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

const maxMultipartMemory = 32 << 20

// requestFields is a flattened view of a request body that remembers which
// fields were sent at all, so partial updates can tell "absent" from "empty".
// nonString marks JSON values that were numbers, booleans, arrays or objects.
type requestFields struct {
	values    map[string]string
	nonString map[string]bool
	files     map[string]*multipart.FileHeader
	data      map[string][]byte
	form      *multipart.Form
}

func newRequestFields() *requestFields {
	return &requestFields{
		values:    map[string]string{},
		nonString: map[string]bool{},
		files:     map[string]*multipart.FileHeader{},
		data:      map[string][]byte{},
	}
}

// has reports whether the field was sent, as a value or as a file.
func (f *requestFields) has(name string) bool {
	if _, ok := f.values[name]; ok {
		return true
	}
	_, ok := f.files[name]
	return ok
}

// filled reports whether the field was sent with a non-blank value.
func (f *requestFields) filled(name string) bool {
	if _, ok := f.files[name]; ok {
		return true
	}
	return strings.TrimSpace(f.values[name]) != ""
}

// isMultipart reports whether the body was a multipart form.
func (f *requestFields) isMultipart() bool {
	return f.form != nil
}

// close removes temporary files of a multipart body.
func (f *requestFields) close() {
	if f.form != nil {
		_ = f.form.RemoveAll()
	}
}

func (f *requestFields) get(name string) string {
	return strings.TrimSpace(f.values[name])
}

func (f *requestFields) file(name string) *multipart.FileHeader {
	return f.files[name]
}

// readFile returns at most limit+1 bytes of the uploaded file. The result is
// cached so validation and the handler share one read.
func (f *requestFields) readFile(name string, limit int64) ([]byte, error) {
	if data, ok := f.data[name]; ok {
		return data, nil
	}
	header := f.files[name]
	if header == nil {
		return nil, nil
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", name, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", name, err)
	}
	f.data[name] = data
	return data, nil
}

// parseRequestFields reads a JSON, url-encoded or multipart body. Query
// parameters are not included.
func parseRequestFields(r *http.Request) (*requestFields, error) {
	fields := newRequestFields()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		if err := fields.decodeJSON(r.Body); err != nil {
			return nil, err
		}
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		fields.form = r.MultipartForm
		for name, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				fields.values[name] = values[0]
			}
		}
		for name, headers := range r.MultipartForm.File {
			if len(headers) > 0 {
				fields.files[name] = headers[0]
			}
		}
	case mediaType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		for name, values := range r.PostForm {
			if len(values) > 0 {
				fields.values[name] = values[0]
			}
		}
	}
	return fields, nil
}

func (f *requestFields) decodeJSON(body io.Reader) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return fmt.Errorf("decode json body: %w", err)
	}

	for name, value := range payload {
		switch v := value.(type) {
		case nil:
			f.values[name] = ""
		case string:
			f.values[name] = v
		case json.Number:
			f.values[name] = v.String()
			f.nonString[name] = true
		case bool:
			f.values[name] = fmt.Sprint(v)
			f.nonString[name] = true
		default:
			encoded, _ := json.Marshal(v)
			f.values[name] = string(encoded)
			f.nonString[name] = true
		}
	}
	return nil
}

// writeBodyError answers a body that could not be parsed.
func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Payload Too Large")
		return
	}
	writeError(w, http.StatusBadRequest, "Malformed request body")
}
