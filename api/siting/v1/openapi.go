package sitingv1

import _ "embed"

// OpenAPISpec OpenAPI 3 описание connect JSON процедур шлюза
//
//go:embed openapi.json
var OpenAPISpec []byte
