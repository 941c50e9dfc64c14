// Package api embeds the service's HTTP and event contracts
package api

import _ "embed"

// OpenAPI is the HTTP contract served under /api/v1/reconciliation
//
//go:embed openapi.yaml
var OpenAPI []byte

// AsyncAPI describes consumed and published CloudEvent payloads
//
//go:embed asyncapi.yaml
var AsyncAPI []byte
