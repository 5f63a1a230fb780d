// internal/model/source.go
package model

// SourceType identifies where raw bytes come from
type SourceType string

const (
	SourceTypeSerial    SourceType = "SERIAL"
	SourceTypeSimulator SourceType = "SIMULATOR"
)

// SourceStatus represents the current connection state of the byte source
type SourceStatus string

const (
	SourceStatusConnected    SourceStatus = "CONNECTED"
	SourceStatusDisconnected SourceStatus = "DISCONNECTED"
	SourceStatusError        SourceStatus = "ERROR"
)
