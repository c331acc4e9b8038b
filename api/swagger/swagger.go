package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Graduation Certificate API",
        "description": "Graduation batch processing and certificate issuance service",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "GraduationBatches", "description": "Batch lifecycle: draft, approval, issuance"},
        {"name": "Certificates", "description": "Issued certificates, downloads and verification"}
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
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/api/v1/graduation-batches": {
            "get": {
                "tags": ["GraduationBatches"],
                "summary": "List graduation batches",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["GraduationBatches"],
                "summary": "Create graduation batch",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBatchRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/graduation-batches/{id}": {
            "get": {
                "tags": ["GraduationBatches"],
                "summary": "Get graduation batch",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "patch": {
                "tags": ["GraduationBatches"],
                "summary": "Edit a draft graduation batch",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateBatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Batch is not draft"}
                }
            }
        },
        "/api/v1/graduation-batches/{id}/generate-students": {
            "post": {
                "tags": ["GraduationBatches"],
                "summary": "Evaluate eligibility and snapshot batch students",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Batch is not draft"},
                    "422": {"description": "Exam results not finalized"}
                }
            }
        },
        "/api/v1/graduation-batches/{id}/students": {
            "get": {
                "tags": ["GraduationBatches"],
                "summary": "List the eligibility snapshot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "description": "csv for an export"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/graduation-batches/{id}/approve": {
            "post": {
                "tags": ["GraduationBatches"],
                "summary": "Approve a draft batch",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Batch is not draft"}
                }
            }
        },
        "/api/v1/graduation-batches/{id}/issue-certificates": {
            "post": {
                "tags": ["GraduationBatches"],
                "summary": "Issue certificates for an approved batch",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IssueRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Batch is not approved"},
                    "422": {"description": "No eligible students or template unavailable"}
                }
            }
        },
        "/api/v1/graduation-batches/{id}/audit": {
            "get": {
                "tags": ["GraduationBatches"],
                "summary": "List the audit trail of a batch",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/certificates": {
            "get": {
                "tags": ["Certificates"],
                "summary": "List issued certificates of a batch",
                "parameters": [
                    {"name": "batch_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/certificates/{id}/download": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Get a signed download link for a certificate PDF",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "PDF not rendered yet"}
                }
            }
        },
        "/api/v1/certificates/download": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Download a certificate PDF with a signed token",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF stream"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/verify/certificates/{hash}": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Verify a certificate by its public hash",
                "parameters": [
                    {"name": "hash", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown hash"}
                }
            }
        }
    },
    "definitions": {
        "GraduationBatch": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "organization_id": {"type": "string"},
                "school_id": {"type": "string"},
                "academic_year_id": {"type": "string"},
                "class_id": {"type": "string"},
                "graduation_date": {"type": "string"},
                "min_attendance_pct": {"type": "number"},
                "exclude_leaves": {"type": "boolean"},
                "status": {"type": "string", "enum": ["draft", "approved", "issued"]},
                "created_by": {"type": "string"},
                "approved_by": {"type": "string"},
                "approved_at": {"type": "string"},
                "exams": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/BatchExam"}
                }
            }
        },
        "BatchExam": {
            "type": "object",
            "properties": {
                "exam_id": {"type": "string"},
                "weight_percentage": {"type": "number"}
            }
        },
        "CreateBatchRequest": {
            "type": "object",
            "properties": {
                "academic_year_id": {"type": "string"},
                "class_id": {"type": "string"},
                "graduation_date": {"type": "string"},
                "min_attendance_pct": {"type": "number"},
                "exclude_leaves": {"type": "boolean"},
                "exams": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/BatchExam"}
                }
            },
            "required": ["academic_year_id", "class_id", "graduation_date", "exams"]
        },
        "UpdateBatchRequest": {
            "type": "object",
            "properties": {
                "academic_year_id": {"type": "string"},
                "class_id": {"type": "string"},
                "graduation_date": {"type": "string"},
                "min_attendance_pct": {"type": "number"},
                "exclude_leaves": {"type": "boolean"},
                "exams": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/BatchExam"}
                }
            }
        },
        "IssueRequest": {
            "type": "object",
            "properties": {
                "template_id": {"type": "string"},
                "certificate_type": {"type": "string"}
            }
        },
        "IssuedCertificate": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "batch_id": {"type": "string"},
                "student_id": {"type": "string"},
                "student_name": {"type": "string"},
                "certificate_no": {"type": "string"},
                "verification_hash": {"type": "string"},
                "pdf_path": {"type": "string"},
                "issued_by": {"type": "string"},
                "issued_at": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
