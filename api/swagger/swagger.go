package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Markbook API",
        "description": "Mark computation and aggregation service over migrated legacy markbooks",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Admin login"},
        {"name": "Students", "description": "Class roster management"},
        {"name": "Mark Sets", "description": "Mark sets, categories and assessments"},
        {"name": "Scores", "description": "Single and bulk score edits"},
        {"name": "Import", "description": "Legacy fixed-format export import"},
        {"name": "Calc Config", "description": "Grading policy configuration"},
        {"name": "Analytics", "description": "Computed marks, KPIs and distributions"},
        {"name": "Reports", "description": "CSV and PDF exports with signed downloads"}
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
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange admin credentials for a JWT",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students with scope, search and paging",
                "responses": {
                    "200": {"description": "Student page"}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create a roster entry",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Fetch one student",
                "responses": {
                    "200": {"description": "Student"},
                    "404": {"description": "Unknown student"}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update a roster entry",
                "responses": {
                    "200": {"description": "Updated"}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Deactivate a student",
                "responses": {
                    "204": {"description": "Deactivated"}
                }
            }
        },
        "/mark-sets": {
            "get": {
                "tags": ["Mark Sets"],
                "summary": "List mark sets for a class",
                "responses": {
                    "200": {"description": "Mark sets in sort order"}
                }
            },
            "post": {
                "tags": ["Mark Sets"],
                "summary": "Create a mark set",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/mark-sets/{id}": {
            "get": {
                "tags": ["Mark Sets"],
                "summary": "Fetch a mark set with its categories",
                "responses": {
                    "200": {"description": "Mark set detail"},
                    "404": {"description": "Unknown mark set"}
                }
            },
            "put": {
                "tags": ["Mark Sets"],
                "summary": "Update a mark set",
                "responses": {
                    "200": {"description": "Updated"}
                }
            }
        },
        "/mark-sets/{id}/categories": {
            "put": {
                "tags": ["Mark Sets"],
                "summary": "Create or reweight a category",
                "responses": {
                    "200": {"description": "Category upserted"}
                }
            }
        },
        "/mark-sets/{id}/assessments": {
            "get": {
                "tags": ["Mark Sets"],
                "summary": "List assessments with category, term and type filters",
                "responses": {
                    "200": {"description": "Assessments"}
                }
            },
            "post": {
                "tags": ["Mark Sets"],
                "summary": "Create an assessment",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/assessments/{assessmentId}": {
            "put": {
                "tags": ["Mark Sets"],
                "summary": "Update an assessment",
                "responses": {
                    "200": {"description": "Updated"}
                }
            },
            "delete": {
                "tags": ["Mark Sets"],
                "summary": "Soft-delete an assessment",
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/membership/students/{studentId}": {
            "get": {
                "tags": ["Mark Sets"],
                "summary": "Per-mark-set validity flags for one student",
                "responses": {
                    "200": {"description": "Membership flags"}
                }
            },
            "put": {
                "tags": ["Mark Sets"],
                "summary": "Toggle a student's validity in one mark set",
                "responses": {
                    "200": {"description": "Updated flags"}
                }
            }
        },
        "/scores/edit": {
            "post": {
                "tags": ["Scores"],
                "summary": "Apply one score edit addressed by roster row",
                "responses": {
                    "200": {"description": "Stored score"},
                    "400": {"description": "Invalid row or value"},
                    "404": {"description": "Unknown student or assessment"}
                }
            }
        },
        "/scores/bulk": {
            "post": {
                "tags": ["Scores"],
                "summary": "Apply a batch of score edits",
                "responses": {
                    "200": {"description": "Per-edit outcome summary"},
                    "413": {"description": "Batch exceeds the edit ceiling"}
                }
            }
        },
        "/import/file": {
            "post": {
                "tags": ["Import"],
                "summary": "Import one legacy export file",
                "responses": {
                    "200": {"description": "Import summary"},
                    "409": {"description": "Assessment title collision"},
                    "422": {"description": "Malformed export file"}
                }
            }
        },
        "/import/directory": {
            "post": {
                "tags": ["Import"],
                "summary": "Queue a directory of legacy export files",
                "responses": {
                    "202": {"description": "Files enqueued"}
                }
            }
        },
        "/calc-config": {
            "get": {
                "tags": ["Calc Config"],
                "summary": "Effective grading policy",
                "responses": {
                    "200": {"description": "Effective configuration"}
                }
            }
        },
        "/calc-config/override": {
            "put": {
                "tags": ["Calc Config"],
                "summary": "Set a grading policy override",
                "responses": {
                    "200": {"description": "Override stored"}
                }
            },
            "delete": {
                "tags": ["Calc Config"],
                "summary": "Clear the grading policy override",
                "responses": {
                    "204": {"description": "Override cleared"}
                }
            }
        },
        "/analytics/mark-sets/{id}": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Shaped analytics for one mark set",
                "responses": {
                    "200": {"description": "Rows, KPIs and distribution"}
                }
            }
        },
        "/analytics/combined": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Shaped cross-mark-set analytics",
                "responses": {
                    "200": {"description": "Combined rows, KPIs and distribution"}
                }
            }
        },
        "/analytics/status": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Runtime counters snapshot",
                "responses": {
                    "200": {"description": "System metrics"}
                }
            }
        },
        "/reports/mark-sets/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export a mark set report as CSV or PDF",
                "responses": {
                    "200": {"description": "Rendered file with signed token"}
                }
            }
        },
        "/reports/combined": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export a combined report as CSV or PDF",
                "responses": {
                    "200": {"description": "Rendered file with signed token"}
                }
            }
        },
        "/reports/download/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a rendered report by signed token",
                "responses": {
                    "200": {"description": "File attachment"},
                    "401": {"description": "Expired or invalid token"}
                }
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
