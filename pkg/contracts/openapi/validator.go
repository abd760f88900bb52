package openapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// Validator checks HTTP exchanges against an OpenAPI 3 document. Documents
// without servers match requests for any host.
type Validator struct {
	doc    *openapi3.T
	router routers.Router
}

// NewValidator loads the document at path
func NewValidator(path string) (*Validator, error) {
	return load(func(l *openapi3.Loader) (*openapi3.T, error) { return l.LoadFromFile(path) }, path)
}

// NewValidatorFromBytes loads an in-memory document, such as api.OpenAPI
func NewValidatorFromBytes(data []byte) (*Validator, error) {
	return load(func(l *openapi3.Loader) (*openapi3.T, error) { return l.LoadFromData(data) }, "embedded document")
}

func load(read func(*openapi3.Loader) (*openapi3.T, error), source string) (*Validator, error) {
	doc, err := read(openapi3.NewLoader())
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document from %s: %w", source, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document %s: %w", source, err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build router for %s: %w", source, err)
	}
	return &Validator{doc: doc, router: router}, nil
}

// input resolves the operation req targets
func (v *Validator) input(req *http.Request) (*openapi3filter.RequestValidationInput, error) {
	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		return nil, fmt.Errorf("no operation for %s %s: %w", req.Method, req.URL.Path, err)
	}
	return &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options:    &openapi3filter.Options{MultiError: true},
	}, nil
}

// ValidateRequest checks req against its operation. The body stays readable.
func (v *Validator) ValidateRequest(req *http.Request) error {
	in, err := v.input(req)
	if err != nil {
		return err
	}
	if err := openapi3filter.ValidateRequest(req.Context(), in); err != nil {
		return fmt.Errorf("request does not match %s: %w", in.Route.Operation.OperationID, err)
	}
	return nil
}

// ValidateResponse checks a recorded response to req against the documented
// responses of its operation.
func (v *Validator) ValidateResponse(req *http.Request, status int, header http.Header, body []byte) error {
	in, err := v.input(req)
	if err != nil {
		return err
	}

	out := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: in,
		Status:                 status,
		Header:                 header,
		Body:                   io.NopCloser(bytes.NewReader(body)),
		Options:                &openapi3filter.Options{MultiError: true, IncludeResponseStatus: true},
	}
	if err := openapi3filter.ValidateResponse(req.Context(), out); err != nil {
		return fmt.Errorf("%d response does not match %s: %w", status, in.Route.Operation.OperationID, err)
	}
	return nil
}

// GetOperationID returns the operation ID req targets
func (v *Validator) GetOperationID(req *http.Request) (string, error) {
	in, err := v.input(req)
	if err != nil {
		return "", err
	}
	return in.Route.Operation.OperationID, nil
}

// GetDocument returns the parsed OpenAPI document.
func (v *Validator) GetDocument() *openapi3.T {
	return v.doc
}

// GetPaths returns all paths defined in the specification, sorted.
func (v *Validator) GetPaths() []string {
	if v.doc.Paths == nil {
		return nil
	}

	paths := make([]string, 0, v.doc.Paths.Len())
	for path := range v.doc.Paths.Map() {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
