package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Generate builds the OpenAPI 3.1 document for the control plane API. The
// surface is fixed, so the document is assembled statically rather than
// introspected.
func Generate(baseURL, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "AcademicChain Control Plane API",
			Description: "Institution, API key, credit metering, and validation API for the AcademicChain issuance platform.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["sessionCookie"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "cookie",
			Name: "admin_token",
		},
	}

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: objectSchema(map[string]*openapi3.SchemaRef{
			"error": {Value: objectSchema(map[string]*openapi3.SchemaRef{
				"code":    intSchema(),
				"message": stringSchema(),
			})},
		}),
	}
	doc.Components.Schemas["Institution"] = &openapi3.SchemaRef{
		Value: objectSchema(map[string]*openapi3.SchemaRef{
			"id":            stringSchema(),
			"name":          stringSchema(),
			"slug":          stringSchema(),
			"status":        enumSchema("active", "blocked", "revoked"),
			"plan":          stringSchema(),
			"credits":       intSchema(),
			"emissions":     intSchema(),
			"verifications": intSchema(),
			"createdAt":     dateTimeSchema(),
		}),
	}
	doc.Components.Schemas["APIKey"] = &openapi3.SchemaRef{
		Value: objectSchema(map[string]*openapi3.SchemaRef{
			"id":            stringSchema(),
			"institutionId": stringSchema(),
			"name":          stringSchema(),
			"role":          stringSchema(),
			"keyPrefix":     stringSchema(),
			"status":        boolSchema(),
			"createdAt":     dateTimeSchema(),
			"expiresAt":     dateTimeSchema(),
			"lastUsed":      dateTimeSchema(),
		}),
	}
	doc.Components.Schemas["AuditEntry"] = &openapi3.SchemaRef{
		Value: objectSchema(map[string]*openapi3.SchemaRef{
			"id":              stringSchema(),
			"institutionId":   stringSchema(),
			"institutionName": stringSchema(),
			"endpoint":        stringSchema(),
			"status":          enumSchema("success", "success_issuance", "failed", "failed_no_credits"),
			"timestamp":       dateTimeSchema(),
		}),
	}
	doc.Components.Schemas["ValidateResult"] = &openapi3.SchemaRef{
		Value: objectSchema(map[string]*openapi3.SchemaRef{
			"valid":            boolSchema(),
			"institution":      stringSchema(),
			"remainingCredits": intSchema(),
			"message":          stringSchema(),
		}),
	}

	doc.Paths = openapi3.NewPaths()

	doc.Paths.Set("/api/v1/validate", &openapi3.PathItem{
		Post: operation("validateKey",
			"Validate a hashed API key and meter issuance credit",
			requestBody(objectSchema(map[string]*openapi3.SchemaRef{
				"hash":      stringSchema(),
				"endpoint":  stringSchema(),
				"operation": stringSchema(),
			}), "hash"),
			jsonResponses("ValidateResult"), false),
	})
	doc.Paths.Set("/api/v1/auth/login", &openapi3.PathItem{
		Post: operation("login", "Authenticate the administrator and set the session cookie",
			requestBody(objectSchema(map[string]*openapi3.SchemaRef{
				"password": stringSchema(),
				"totp":     stringSchema(),
			}), "password"),
			successOnly(), false),
	})
	doc.Paths.Set("/api/v1/auth/logout", &openapi3.PathItem{
		Post: operation("logout", "Clear the session cookie", nil, successOnly(), false),
	})
	doc.Paths.Set("/api/v1/auth/check", &openapi3.PathItem{
		Get: operation("checkSession", "Report whether the session is valid", nil, successOnly(), true),
	})
	doc.Paths.Set("/api/v1/institutions", &openapi3.PathItem{
		Get:  operation("listInstitutions", "List institutions with active key counts", nil, jsonResponses("Institution"), true),
		Post: operation("createInstitution", "Create an institution", requestBody(objectSchema(map[string]*openapi3.SchemaRef{"name": stringSchema(), "slug": stringSchema(), "plan": stringSchema()}), "name"), jsonResponses("Institution"), true),
	})
	doc.Paths.Set("/api/v1/institutions/{id}", &openapi3.PathItem{
		Get:        operation("getInstitution", "Get one institution", nil, jsonResponses("Institution"), true),
		Parameters: pathParam("id"),
	})
	doc.Paths.Set("/api/v1/institutions/{id}/credits", &openapi3.PathItem{
		Post:       operation("adjustCredits", "Add to or set an institution's credit balance", requestBody(objectSchema(map[string]*openapi3.SchemaRef{"amount": intSchema(), "action": enumSchema("add", "set")}), "amount"), successOnly(), true),
		Parameters: pathParam("id"),
	})
	doc.Paths.Set("/api/v1/institutions/{id}/generate-key", &openapi3.PathItem{
		Post:       operation("generateKey", "Create an API key; the raw secret appears once in the response", requestBody(objectSchema(map[string]*openapi3.SchemaRef{"name": stringSchema(), "role": stringSchema(), "expiresAt": dateTimeSchema()}), ""), jsonResponses("APIKey"), true),
		Parameters: pathParam("id"),
	})
	doc.Paths.Set("/api/v1/api-keys", &openapi3.PathItem{
		Get: operation("listKeys", "List API keys with digests withheld", nil, jsonResponses("APIKey"), true),
	})
	doc.Paths.Set("/api/v1/api-keys/{id}", &openapi3.PathItem{
		Delete:     operation("revokeKey", "Revoke (delete) an API key", nil, successOnly(), true),
		Parameters: pathParam("id"),
	})
	doc.Paths.Set("/api/v1/logs", &openapi3.PathItem{
		Get: operation("listLogs", "List validation audit entries, newest first", nil, jsonResponses("AuditEntry"), true),
	})
	doc.Paths.Set("/api/v1/overview", &openapi3.PathItem{
		Get: operation("overview", "Aggregate platform usage counters", nil, successOnly(), true),
	})

	return doc
}

func operation(id, summary string, body *openapi3.RequestBodyRef, responses *openapi3.Responses, secured bool) *openapi3.Operation {
	op := &openapi3.Operation{
		OperationID: id,
		Summary:     summary,
		RequestBody: body,
		Responses:   responses,
	}
	if secured {
		op.Security = &openapi3.SecurityRequirements{{"sessionCookie": {}}}
	}
	return op
}

func requestBody(schema *openapi3.Schema, required string) *openapi3.RequestBodyRef {
	if required != "" {
		schema.Required = []string{required}
	}
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchema(schema),
		},
	}
}

func jsonResponses(schemaName string) *openapi3.Responses {
	responses := openapi3.NewResponses()
	desc := "OK"
	responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content: openapi3.NewContentWithJSONSchemaRef(
				openapi3.NewSchemaRef("#/components/schemas/"+schemaName, nil)),
		},
	})
	addErrorResponse(responses)
	return responses
}

func successOnly() *openapi3.Responses {
	responses := openapi3.NewResponses()
	desc := "OK"
	responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{Description: &desc},
	})
	addErrorResponse(responses)
	return responses
}

func addErrorResponse(responses *openapi3.Responses) {
	desc := "Error"
	responses.Set("default", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content: openapi3.NewContentWithJSONSchemaRef(
				openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)),
		},
	})
}

func pathParam(name string) openapi3.Parameters {
	return openapi3.Parameters{
		{Value: &openapi3.Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
		}},
	}
}

func objectSchema(props map[string]*openapi3.SchemaRef) *openapi3.Schema {
	return &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
	}
}

func stringSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func intSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}
}

func boolSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
}

func dateTimeSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
}

func enumSchema(values ...string) *openapi3.SchemaRef {
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: enum}}
}
