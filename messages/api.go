// Package messages provides the wire types the gateway exchanges with
// machine clients over the JSON, XML, and gob transports.
package messages

import (
	"encoding/gob"
	"encoding/xml"
	"time"
)

// NodeDescriptor describes the current state of one node of a monitored
// application as reported by the node's own monitoring endpoint.
type NodeDescriptor struct {
	// "host:port" of the node's monitoring endpoint
	HostAndPort string `json:"hostAndPort" xml:"hostAndPort"`
	// True if the node answered the last collect
	Available bool `json:"available" xml:"available"`
	// When the gateway last heard from the node. Zero means never.
	CollectedAt time.Time `json:"collectedAt" xml:"collectedAt"`
	// Self reported state, valid only when Available is true
	MemoryUsedBytes int64 `json:"memoryUsedBytes" xml:"memoryUsedBytes"`
	MemoryMaxBytes  int64 `json:"memoryMaxBytes" xml:"memoryMaxBytes"`
	SessionCount    int64 `json:"sessionCount" xml:"sessionCount"`
	ActiveThreads   int64 `json:"activeThreads" xml:"activeThreads"`
	StartedAt       time.Time `json:"startedAt,omitempty" xml:"startedAt,omitempty"`
	// Last collect error for the node, empty when Available
	Error string `json:"error,omitempty" xml:"error,omitempty"`
}

// NodePayload carries one node's raw answer for a part request that the
// gateway forwards without interpreting, for example thread listings.
type NodePayload struct {
	HostAndPort string `json:"hostAndPort" xml:"hostAndPort"`
	ContentType string `json:"contentType,omitempty" xml:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty" xml:"body,omitempty"`
	// Error is set when the node did not answer; Body is then empty
	Error string `json:"error,omitempty" xml:"error,omitempty"`
}

// ResultEnvelope is the top level payload of every machine serialized
// response. When assembling the payload itself fails, the envelope still
// goes out with Error set so a machine client receives a well formed
// answer instead of a broken stream.
type ResultEnvelope struct {
	Application string            `json:"application" xml:"application"`
	Message     string            `json:"message,omitempty" xml:"message,omitempty"`
	Error       string            `json:"error,omitempty" xml:"error,omitempty"`
	Nodes       []*NodeDescriptor `json:"nodes,omitempty" xml:"nodes>node,omitempty"`
	Payloads    []*NodePayload    `json:"payloads,omitempty" xml:"payloads>payload,omitempty"`
}

// ApplicationStatus describes one registered application for the status
// page and the applications part.
type ApplicationStatus struct {
	Name string `json:"name" xml:"name"`
	// True for aggregation groups
	Group bool `json:"group" xml:"group"`
	// Node URLs for leaf applications
	Nodes []string `json:"nodes,omitempty" xml:"nodes>url,omitempty"`
	// Member application names for groups
	Members   []string `json:"members,omitempty" xml:"members>name,omitempty"`
	Available bool     `json:"available" xml:"available"`
	// Last collect error, empty when the application is healthy
	LastError string `json:"lastError,omitempty" xml:"lastError,omitempty"`
}

// ApplicationStatusList represents a list of ApplicationStatus sorted by
// name. Clients should treat ApplicationStatusList instances as
// immutable.
type ApplicationStatusList []*ApplicationStatus

// ApplicationListing carries an ApplicationStatusList on the XML
// transport, which needs a single document root around the list.
type ApplicationListing struct {
	XMLName      xml.Name              `json:"-" xml:"applications"`
	Applications ApplicationStatusList `json:"applications" xml:"application"`
}

func init() {
	// concrete envelope types crossing the gob transport
	gob.Register(&ResultEnvelope{})
	gob.Register(ApplicationStatusList{})
}
