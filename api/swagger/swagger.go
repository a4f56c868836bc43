package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "School timetable management and automatic schedule generation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Login and token refresh"},
        {"name": "Subjects", "description": "Subject catalogue"},
        {"name": "Classes", "description": "Class roster"},
        {"name": "Teachers", "description": "Teacher roster and qualifications"},
        {"name": "Periods", "description": "Daily period slot grid"},
        {"name": "Availability", "description": "Teacher weekly availability"},
        {"name": "Schedules", "description": "Timetable views, generation, manual edits"},
        {"name": "Exports", "description": "Timetable export jobs"},
        {"name": "Users", "description": "Account administration"},
        {"name": "System", "description": "Runtime metrics"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token for a new token pair",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subjects": {
            "get": {
                "tags": ["Subjects"],
                "summary": "List subjects",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "category", "in": "query", "type": "string", "enum": ["CORE", "SPECIALIZATION", "LOCAL_CONTENT"]},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Subjects"],
                "summary": "Create subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSubjectRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subjects/{id}": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Get subject",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            },
            "put": {
                "tags": ["Subjects"],
                "summary": "Update subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSubjectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Subjects"],
                "summary": "Deactivate subject",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/classes": {
            "get": {
                "tags": ["Classes"],
                "summary": "List classes",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "grade", "in": "query", "type": "integer"},
                    {"name": "track", "in": "query", "type": "string", "enum": ["IPA", "IPS"]},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Classes"],
                "summary": "Create class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateClassRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}": {
            "get": {
                "tags": ["Classes"],
                "summary": "Get class",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Classes"],
                "summary": "Update class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateClassRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Classes"],
                "summary": "Deactivate class",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/teachers": {
            "get": {
                "tags": ["Teachers"],
                "summary": "List teachers",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Teachers"],
                "summary": "Create teacher",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTeacherRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}": {
            "get": {
                "tags": ["Teachers"],
                "summary": "Get teacher",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Teachers"],
                "summary": "Update teacher",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTeacherRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Teachers"],
                "summary": "Deactivate teacher",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/teachers/{id}/subjects": {
            "get": {
                "tags": ["Teachers"],
                "summary": "List teaching qualifications",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Teachers"],
                "summary": "Replace teaching qualifications",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetQualificationsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "Get weekly availability",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Availability"],
                "summary": "Replace weekly availability",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetAvailabilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{id}/availability/toggle": {
            "post": {
                "tags": ["Availability"],
                "summary": "Toggle one day and slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ToggleAvailabilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/periods": {
            "get": {
                "tags": ["Periods"],
                "summary": "List period slots",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "isBreak", "in": "query", "type": "boolean"},
                    {"name": "active", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Periods"],
                "summary": "Create period slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePeriodSlotRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedule assignments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "schoolYear", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string", "enum": ["ODD", "EVEN"]},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "dayOfWeek", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/generate": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Generate the timetable for a scope",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/GenerateScheduleResult"}},
                    "412": {"description": "Missing master data"}
                }
            }
        },
        "/schedules/clear": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Delete every assignment in a scope",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClearScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/statistics": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Schedule statistics for a scope",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "schoolYear", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string", "enum": ["ODD", "EVEN"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/class/{classId}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Weekly timetable for one class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "schoolYear", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string", "enum": ["ODD", "EVEN"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/teacher/{teacherId}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Weekly timetable for one teacher",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "teacherId", "in": "path", "required": true, "type": "string"},
                    {"name": "schoolYear", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string", "enum": ["ODD", "EVEN"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}": {
            "put": {
                "tags": ["Schedules"],
                "summary": "Manually adjust one assignment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAssignmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Teacher or class already booked"}
                }
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Delete one assignment",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Enqueue a timetable export job",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportTimetableRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{jobId}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "jobId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export by signed token",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "File stream"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "role", "in": "query", "type": "string", "enum": ["ADMIN", "GURU", "KEPSEK"]},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create user",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Runtime counters snapshot",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "CreateSubjectRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "category": {"type": "string", "enum": ["CORE", "SPECIALIZATION", "LOCAL_CONTENT"]},
                "weeklyHours": {"type": "integer"},
                "description": {"type": "string"}
            },
            "required": ["code", "name", "category", "weeklyHours"]
        },
        "UpdateSubjectRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "category": {"type": "string"},
                "weeklyHours": {"type": "integer"},
                "active": {"type": "boolean"}
            }
        },
        "CreateClassRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "grade": {"type": "integer"},
                "track": {"type": "string", "enum": ["IPA", "IPS"]},
                "capacity": {"type": "integer"},
                "room": {"type": "string"},
                "homeroomTeacherId": {"type": "string"}
            },
            "required": ["name", "grade", "track", "capacity"]
        },
        "UpdateClassRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "grade": {"type": "integer"},
                "track": {"type": "string"},
                "capacity": {"type": "integer"},
                "room": {"type": "string"},
                "homeroomTeacherId": {"type": "string"},
                "active": {"type": "boolean"}
            }
        },
        "CreateTeacherRequest": {
            "type": "object",
            "properties": {
                "nip": {"type": "string"},
                "fullName": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"}
            },
            "required": ["nip", "fullName", "email"]
        },
        "UpdateTeacherRequest": {
            "type": "object",
            "properties": {
                "nip": {"type": "string"},
                "fullName": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "active": {"type": "boolean"}
            }
        },
        "SetQualificationsRequest": {
            "type": "object",
            "properties": {
                "subjectIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["subjectIds"]
        },
        "SetAvailabilityRequest": {
            "type": "object",
            "properties": {
                "entries": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/AvailabilityEntry"}
                }
            },
            "required": ["entries"]
        },
        "AvailabilityEntry": {
            "type": "object",
            "properties": {
                "dayOfWeek": {"type": "string"},
                "periodSlotId": {"type": "string"},
                "available": {"type": "boolean"},
                "note": {"type": "string"}
            }
        },
        "ToggleAvailabilityRequest": {
            "type": "object",
            "properties": {
                "dayOfWeek": {"type": "string"},
                "periodSlotId": {"type": "string"},
                "note": {"type": "string"}
            },
            "required": ["dayOfWeek", "periodSlotId"]
        },
        "CreatePeriodSlotRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "sequence": {"type": "integer"},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"},
                "durationMinutes": {"type": "integer"},
                "isBreak": {"type": "boolean"}
            },
            "required": ["name", "sequence", "startTime", "endTime", "durationMinutes"]
        },
        "GenerateScheduleRequest": {
            "type": "object",
            "properties": {
                "school_year": {"type": "string"},
                "semester": {"type": "string", "enum": ["ODD", "EVEN"]}
            },
            "required": ["school_year", "semester"]
        },
        "ClearScheduleRequest": {
            "type": "object",
            "properties": {
                "school_year": {"type": "string"},
                "semester": {"type": "string", "enum": ["ODD", "EVEN"]}
            },
            "required": ["school_year", "semester"]
        },
        "UpdateAssignmentRequest": {
            "type": "object",
            "properties": {
                "teacher_id": {"type": "string"},
                "period_slot_id": {"type": "string"},
                "day_of_week": {"type": "string"},
                "room": {"type": "string"}
            }
        },
        "GenerateScheduleResult": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "statistics": {
                    "type": "object",
                    "properties": {
                        "total_scheduled": {"type": "integer"},
                        "shortfall_count": {"type": "integer"},
                        "success_rate_percent": {"type": "number"}
                    }
                },
                "conflicts": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ConflictEvent"}
                }
            }
        },
        "ConflictEvent": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["no_subjects", "no_teacher", "insufficient_slots"]},
                "class_id": {"type": "string"},
                "class_name": {"type": "string"},
                "subject_id": {"type": "string"},
                "subject_name": {"type": "string"},
                "message": {"type": "string"},
                "required": {"type": "integer"},
                "assigned": {"type": "integer"}
            }
        },
        "ExportTimetableRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["pdf", "csv"]},
                "class_id": {"type": "string"},
                "school_year": {"type": "string"},
                "semester": {"type": "string", "enum": ["ODD", "EVEN"]}
            },
            "required": ["format", "class_id", "school_year", "semester"]
        },
        "CreateUserRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "fullName": {"type": "string"},
                "role": {"type": "string", "enum": ["ADMIN", "GURU", "KEPSEK"]},
                "teacherId": {"type": "string"}
            },
            "required": ["email", "password", "fullName", "role"]
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
