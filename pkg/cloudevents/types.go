package cloudevents

import (
	"errors"
	"time"
)

// Event types published by the allocation service
const (
	AllocationPlanned       = "wms.allocation.planned"
	AllocationUnfulfillable = "wms.allocation.unfulfillable"
)

// SourceAllocation is the CloudEvents source of the allocation service
const SourceAllocation = "/wms/allocation-service"

const (
	SpecVersion     = "1.0"
	JSONContentType = "application/json"
)

// Extension attribute names carried as ce-* headers
const (
	ExtCorrelationID = "wmscorrelationid"
	ExtOrderID       = "wmsorderid"
	ExtAllocationID  = "wmsallocationid"
	ExtTraceParent   = "traceparent"
	ExtTraceState    = "tracestate"
)

// WMSCloudEvent represents a CloudEvents v1.0 compliant event for WMS
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// WMS-specific extensions
	CorrelationID string `json:"wmscorrelationid,omitempty"`
	OrderID       string `json:"wmsorderid,omitempty"`
	AllocationID  string `json:"wmsallocationid,omitempty"`

	// W3C trace context, propagated as headers only
	TraceParent string `json:"-"`
	TraceState  string `json:"-"`
}

var (
	errMissingID     = errors.New("cloudevent: id is required")
	errMissingType   = errors.New("cloudevent: type is required")
	errMissingSource = errors.New("cloudevent: source is required")
	errBadSpec       = errors.New("cloudevent: specversion must be 1.0")
)

// Validate checks the required CloudEvents context attributes
func (e *WMSCloudEvent) Validate() error {
	switch {
	case e.SpecVersion != SpecVersion:
		return errBadSpec
	case e.ID == "":
		return errMissingID
	case e.Type == "":
		return errMissingType
	case e.Source == "":
		return errMissingSource
	}
	return nil
}

// Extensions returns the populated extension attributes keyed by name, in a
// stable order for header rendering.
func (e *WMSCloudEvent) Extensions() [][2]string {
	var ext [][2]string
	add := func(name, value string) {
		if value != "" {
			ext = append(ext, [2]string{name, value})
		}
	}
	add(ExtCorrelationID, e.CorrelationID)
	add(ExtOrderID, e.OrderID)
	add(ExtAllocationID, e.AllocationID)
	add(ExtTraceParent, e.TraceParent)
	add(ExtTraceState, e.TraceState)
	return ext
}
