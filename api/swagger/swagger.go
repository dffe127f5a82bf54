package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Room Booking API",
        "description": "Room booking engine: conflict detection, lifecycle sweeping and occupancy projection",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Bookings", "description": "Booking lifecycle and recurrence expansion"},
        {"name": "Rooms", "description": "Room status projection and maintenance control"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Dependencies unavailable"}
                }
            }
        },
        "/bookings": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List bookings",
                "parameters": [
                    {"name": "room", "in": "query", "type": "string"},
                    {"name": "building", "in": "query", "type": "integer"},
                    {"name": "date", "in": "query", "type": "string", "format": "date"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["confirmed", "ongoing", "finished", "cancelled", "swapped"]},
                    {"name": "owner", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Bookings"],
                "summary": "Create a booking",
                "parameters": [
                    {"name": "X-User-ID", "in": "header", "type": "string", "required": true},
                    {"name": "X-User-Name", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Window overlaps an existing booking or room under maintenance", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Get a booking",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Bookings"],
                "summary": "Delete a non-ongoing booking",
                "parameters": [
                    {"name": "X-User-ID", "in": "header", "type": "string", "required": true},
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Booking is ongoing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}/cancel": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Cancel an active booking",
                "parameters": [
                    {"name": "X-User-ID", "in": "header", "type": "string", "required": true},
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Cancelled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Booking state does not allow cancellation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}/swap": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Move a booking to a different room, keeping its window",
                "parameters": [
                    {"name": "X-User-ID", "in": "header", "type": "string", "required": true},
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SwapBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Replacement booking created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Destination window occupied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/bulk": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Expand a weekly recurrence rule into bookings",
                "parameters": [
                    {"name": "X-User-ID", "in": "header", "type": "string", "required": true},
                    {"name": "X-User-Name", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Batch result with created and skipped occurrences", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rooms/{building}/{room}/status": {
            "get": {
                "tags": ["Rooms"],
                "summary": "Projected display status of a room",
                "parameters": [
                    {"name": "building", "in": "path", "type": "integer", "required": true},
                    {"name": "room", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Room not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Rooms"],
                "summary": "Set or lift the maintenance flag",
                "parameters": [
                    {"name": "building", "in": "path", "type": "integer", "required": true},
                    {"name": "room", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetRoomStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "Resulting projected status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateBookingRequest": {
            "type": "object",
            "required": ["room_number", "building_number", "booking_date", "start_time", "end_time", "subject"],
            "properties": {
                "room_number": {"type": "string"},
                "building_number": {"type": "integer"},
                "booking_date": {"type": "string", "format": "date"},
                "start_time": {"type": "string", "format": "date-time"},
                "end_time": {"type": "string", "format": "date-time"},
                "subject": {"type": "string"},
                "occupant_count": {"type": "integer"},
                "notes": {"type": "string"}
            }
        },
        "SwapBookingRequest": {
            "type": "object",
            "required": ["dest_room_number", "dest_building_number"],
            "properties": {
                "dest_room_number": {"type": "string"},
                "dest_building_number": {"type": "integer"}
            }
        },
        "BulkScheduleRequest": {
            "type": "object",
            "required": ["room_number", "building_number", "start_date", "weekdays", "start_time_of_day", "end_time_of_day", "duration_months", "subject"],
            "properties": {
                "room_number": {"type": "string"},
                "building_number": {"type": "integer"},
                "start_date": {"type": "string", "format": "date"},
                "weekdays": {"type": "array", "items": {"type": "string"}},
                "start_time_of_day": {"type": "string", "example": "09:00"},
                "end_time_of_day": {"type": "string", "example": "10:00"},
                "duration_months": {"type": "integer"},
                "subject": {"type": "string"},
                "occupant_count": {"type": "integer"},
                "notes": {"type": "string"}
            }
        },
        "SetRoomStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["available", "maintenance"]}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
