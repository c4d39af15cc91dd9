// Package docs holds the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/tixengine/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/events/{id}": {
			"get": {
				"tags": [
					"catalog"
				],
				"summary": "Get event",
				"responses": {
					"200": {
						"description": "OK"
					},
					"304": {
						"description": "Not Modified"
					},
					"404": {
						"description": "Not Found"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/events/{id}/tiers": {
			"get": {
				"tags": [
					"catalog"
				],
				"summary": "List tiers of an event",
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/tiers/{id}/availability": {
			"get": {
				"tags": [
					"catalog"
				],
				"summary": "Tier availability",
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/tiers/{id}/availability/stream": {
			"get": {
				"tags": [
					"catalog"
				],
				"summary": "Stream tier availability",
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found"
					},
					"503": {
						"description": "Service Unavailable"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"produces": [
					"text/event-stream"
				]
			}
		},
		"/orders": {
			"post": {
				"tags": [
					"orders"
				],
				"summary": "Open order (idempotent)",
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request"
					},
					"401": {
						"description": "Unauthorized"
					},
					"409": {
						"description": "sold out / idem in progress"
					},
					"429": {
						"description": "Too Many Requests"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					},
					{
						"type": "string",
						"name": "Idempotency-Key",
						"in": "header",
						"required": false
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpgin.OpenOrderRequest"
						}
					}
				]
			}
		},
		"/orders/{id}": {
			"get": {
				"tags": [
					"orders"
				],
				"summary": "Get order with tickets",
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Forbidden"
					},
					"404": {
						"description": "Not Found"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					},
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/orders/{id}/cancel": {
			"post": {
				"tags": [
					"orders"
				],
				"summary": "Cancel pending order",
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Forbidden"
					},
					"409": {
						"description": "Conflict"
					},
					"410": {
						"description": "Gone"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					},
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/orders/{id}/pay": {
			"post": {
				"tags": [
					"orders"
				],
				"summary": "Confirm payment",
				"responses": {
					"200": {
						"description": "OK"
					},
					"409": {
						"description": "Conflict"
					},
					"410": {
						"description": "Gone"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/orders/{id}/refund": {
			"post": {
				"tags": [
					"orders"
				],
				"summary": "Refund order",
				"responses": {
					"200": {
						"description": "OK"
					},
					"409": {
						"description": "Conflict"
					},
					"422": {
						"description": "Unprocessable Entity"
					},
					"423": {
						"description": "Locked"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/tickets/{id}/refund": {
			"post": {
				"tags": [
					"tickets"
				],
				"summary": "Refund ticket",
				"responses": {
					"200": {
						"description": "OK"
					},
					"422": {
						"description": "Unprocessable Entity"
					},
					"423": {
						"description": "Locked"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/tickets/verify": {
			"post": {
				"tags": [
					"tickets"
				],
				"summary": "Verify ticket at entry",
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not Found"
					},
					"422": {
						"description": "Unprocessable Entity"
					},
					"423": {
						"description": "Locked"
					}
				},
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpgin.VerifyTicketRequest"
						}
					}
				]
			}
		},
		"/users/me/orders": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "List my orders",
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					}
				]
			}
		},
		"/users/me/tickets": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "List my tickets",
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					}
				]
			}
		},
		"/users/me/collectibles": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "List my collectibles",
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					}
				]
			}
		},
		"/users/me/transfers": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "List my transfers",
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					}
				]
			}
		},
		"/users/me/mintable-orders": {
			"get": {
				"tags": [
					"collectibles"
				],
				"summary": "List orders eligible for a collectible",
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					}
				]
			}
		},
		"/collectibles": {
			"post": {
				"tags": [
					"collectibles"
				],
				"summary": "Create collectible from a paid order",
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request"
					},
					"403": {
						"description": "Forbidden"
					},
					"409": {
						"description": "Conflict"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpgin.CreateCollectibleRequest"
						}
					}
				]
			}
		},
		"/collectibles/{id}/mint-status": {
			"post": {
				"tags": [
					"collectibles"
				],
				"summary": "Update mint status",
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request"
					},
					"404": {
						"description": "Not Found"
					},
					"409": {
						"description": "Conflict"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpgin.UpdateMintStatusRequest"
						}
					}
				]
			}
		},
		"/transfers": {
			"post": {
				"tags": [
					"transfers"
				],
				"summary": "Create transfer",
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request"
					},
					"403": {
						"description": "Forbidden"
					},
					"422": {
						"description": "Unprocessable Entity"
					},
					"423": {
						"description": "Locked"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpgin.CreateTransferRequest"
						}
					}
				]
			}
		},
		"/transfers/{code}": {
			"get": {
				"tags": [
					"transfers"
				],
				"summary": "Look up transfer by code",
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized"
					},
					"404": {
						"description": "Not Found"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					},
					{
						"type": "string",
						"name": "code",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/transfers/{code}/qr": {
			"get": {
				"tags": [
					"transfers"
				],
				"summary": "Transfer link as QR code",
				"responses": {
					"200": {
						"description": "OK"
					},
					"401": {
						"description": "Unauthorized"
					},
					"404": {
						"description": "Not Found"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					},
					{
						"type": "string",
						"name": "code",
						"in": "path",
						"required": true
					}
				],
				"produces": [
					"image/png"
				]
			}
		},
		"/transfers/{code}/accept": {
			"post": {
				"tags": [
					"transfers"
				],
				"summary": "Accept transfer",
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Forbidden"
					},
					"404": {
						"description": "Not Found"
					},
					"409": {
						"description": "Conflict"
					},
					"410": {
						"description": "Gone"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					},
					{
						"type": "string",
						"name": "code",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/transfers/{code}/reject": {
			"post": {
				"tags": [
					"transfers"
				],
				"summary": "Reject transfer",
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Forbidden"
					},
					"404": {
						"description": "Not Found"
					},
					"409": {
						"description": "Conflict"
					},
					"410": {
						"description": "Gone"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					},
					{
						"type": "string",
						"name": "code",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/transfers/{code}/cancel": {
			"post": {
				"tags": [
					"transfers"
				],
				"summary": "Cancel transfer",
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Forbidden"
					},
					"404": {
						"description": "Not Found"
					},
					"409": {
						"description": "Conflict"
					},
					"410": {
						"description": "Gone"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "X-User-ID",
						"in": "header",
						"required": false
					},
					{
						"type": "string",
						"name": "code",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/admin/events": {
			"post": {
				"tags": [
					"admin"
				],
				"summary": "Create event",
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request"
					},
					"409": {
						"description": "Conflict"
					}
				},
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpgin.CreateEventRequest"
						}
					}
				]
			}
		},
		"/admin/events/{id}/tiers": {
			"post": {
				"tags": [
					"admin"
				],
				"summary": "Create tier",
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Bad Request"
					},
					"404": {
						"description": "Not Found"
					},
					"409": {
						"description": "Conflict"
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/httpgin.CreateTierRequest"
						}
					}
				]
			}
		}
	},
	"definitions": {
		"httpgin.OpenOrderRequest": {
			"type": "object",
			"required": [
				"event_id",
				"tier_id",
				"quantity"
			],
			"properties": {
				"event_id": {
					"type": "string"
				},
				"tier_id": {
					"type": "string"
				},
				"quantity": {
					"type": "integer"
				}
			}
		},
		"httpgin.VerifyTicketRequest": {
			"type": "object",
			"required": [
				"ticket_code"
			],
			"properties": {
				"ticket_code": {
					"type": "string"
				}
			}
		},
		"httpgin.CreateCollectibleRequest": {
			"type": "object",
			"required": [
				"order_id",
				"definition_id"
			],
			"properties": {
				"order_id": {
					"type": "string"
				},
				"definition_id": {
					"type": "string"
				}
			}
		},
		"httpgin.UpdateMintStatusRequest": {
			"type": "object",
			"required": [
				"status"
			],
			"properties": {
				"status": {
					"type": "string",
					"enum": [
						"pending",
						"minting",
						"minted",
						"failed"
					]
				},
				"on_chain": {
					"type": "object"
				}
			}
		},
		"httpgin.CreateTransferRequest": {
			"type": "object",
			"required": [
				"asset_type",
				"asset_id",
				"kind"
			],
			"properties": {
				"asset_type": {
					"type": "string",
					"enum": [
						"ticket",
						"collectible"
					]
				},
				"asset_id": {
					"type": "string"
				},
				"kind": {
					"type": "string",
					"enum": [
						"gift",
						"sale"
					]
				},
				"price": {
					"type": "string"
				},
				"message": {
					"type": "string"
				},
				"ttl_hours": {
					"type": "integer",
					"enum": [
						24,
						48,
						72
					]
				}
			}
		},
		"httpgin.CreateEventRequest": {
			"type": "object",
			"required": [
				"title",
				"starts_at",
				"ends_at"
			],
			"properties": {
				"title": {
					"type": "string"
				},
				"starts_at": {
					"type": "string"
				},
				"ends_at": {
					"type": "string"
				}
			}
		},
		"httpgin.CreateTierRequest": {
			"type": "object",
			"required": [
				"name",
				"price",
				"capacity"
			],
			"properties": {
				"name": {
					"type": "string"
				},
				"price": {
					"type": "string"
				},
				"capacity": {
					"type": "integer"
				}
			}
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:		  "1.0",
	Host:			 "localhost:8080",
	BasePath:		 "/",
	Schemes:		  []string{},
	Title:			"TixEngine API",
	Description:	  "Ticket inventory, holds, orders and ownership transfers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:		"{{",
	RightDelim:	   "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
