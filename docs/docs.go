// Package docs registra el documento OpenAPI que sirve /swagger/*.
// Se regenera con `swag init -g cmd/api/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {
            "get": {"tags": ["system"], "summary": "Liveness", "responses": {"200": {"description": "ok"}}}
        },
        "/medications": {
            "get": {
                "tags": ["medications"], "summary": "Listar medicamentos", "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/medications.MedicationResponse"}}},
                    "401": {"description": "unauthorized"}
                }
            },
            "post": {
                "tags": ["medications"], "summary": "Registrar medicamento",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/medications.createMedicationRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/medications.writeResponse"}},
                    "400": {"description": "validation error"},
                    "401": {"description": "unauthorized"}
                }
            }
        },
        "/medications/upcoming": {
            "get": {
                "tags": ["reminders"], "summary": "Próximos medicamentos", "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/reminders.UpcomingResponse"}}},
                    "401": {"description": "unauthorized"}
                }
            }
        },
        "/medications/upcoming/stream": {
            "get": {"tags": ["reminders"], "summary": "Stream de próximos medicamentos (websocket)", "responses": {"101": {"description": "Switching Protocols"}}}
        },
        "/medications/{medicationID}": {
            "get": {
                "tags": ["medications"], "summary": "Obtener medicamento", "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "medicationID", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/medications.MedicationResponse"}},
                    "404": {"description": "medication not found"}
                }
            },
            "patch": {
                "tags": ["medications"], "summary": "Actualizar medicamento",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "medicationID", "in": "path", "required": true},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/medications.updateMedicationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/medications.writeResponse"}},
                    "400": {"description": "validation error"},
                    "404": {"description": "medication not found"}
                }
            },
            "delete": {
                "tags": ["medications"], "summary": "Eliminar medicamento",
                "parameters": [{"type": "string", "name": "medicationID", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "medication not found"}}
            }
        },
        "/device": {
            "get": {
                "tags": ["device"], "summary": "Estado del dispositivo", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/devicesync.StateResponse"}}}
            }
        },
        "/device/stream": {
            "get": {"tags": ["device"], "summary": "Stream del estado del dispositivo (websocket)", "responses": {"101": {"description": "Switching Protocols"}}}
        },
        "/device/next-dose": {
            "get": {
                "tags": ["device"], "summary": "Próxima dosis (dispositivo)", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/devicesync.nextDoseResponse"}}}
            }
        },
        "/device/heartbeat": {
            "post": {
                "tags": ["device"], "summary": "Heartbeat del dispositivo", "consumes": ["application/json"],
                "parameters": [{"in": "body", "name": "payload", "schema": {"$ref": "#/definitions/devicesync.heartbeatRequest"}}],
                "responses": {"204": {"description": "No Content"}, "403": {"description": "device token required"}}
            }
        }
    },
    "definitions": {
        "medications.createMedicationRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "dosage": {"type": "string"},
                "food_relation": {"type": "string", "enum": ["before", "with", "after", "any"]},
                "reminder_time": {"type": "string", "example": "08:00"}
            }
        },
        "medications.updateMedicationRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "dosage": {"type": "string"},
                "food_relation": {"type": "string", "enum": ["before", "with", "after", "any"]},
                "reminder_time": {"type": "string"}
            }
        },
        "medications.MedicationResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "account_id": {"type": "string"},
                "name": {"type": "string"},
                "dosage": {"type": "string"},
                "food_relation": {"type": "string"},
                "reminder_time": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "medications.writeResponse": {
            "allOf": [
                {"$ref": "#/definitions/medications.MedicationResponse"},
                {"type": "object", "properties": {"device_synced": {"type": "boolean"}}}
            ]
        },
        "reminders.UpcomingResponse": {
            "allOf": [
                {"$ref": "#/definitions/medications.MedicationResponse"},
                {
                    "type": "object",
                    "properties": {
                        "minutes_until_due": {"type": "integer"},
                        "urgency": {"type": "string", "enum": ["overdue", "soon", "scheduled"]}
                    }
                }
            ]
        },
        "devicesync.StateResponse": {
            "type": "object",
            "properties": {
                "account_id": {"type": "string"},
                "connected": {"type": "boolean"},
                "last_seen_at": {"type": "string", "format": "date-time"},
                "next_dose_time": {"type": "string"}
            }
        },
        "devicesync.nextDoseResponse": {
            "type": "object",
            "properties": {"time": {"type": "string"}}
        },
        "devicesync.heartbeatRequest": {
            "type": "object",
            "properties": {"connected": {"type": "boolean"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "dose-mate API",
	Description:      "Medicamentos, ventana de recordatorios y sincronización con el dispensador.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
