package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

const AttrDispatchStatus = attribute.Key("worker.dispatch.status")

// Dispatch status values
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)
