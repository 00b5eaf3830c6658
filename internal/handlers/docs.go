package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"traffic-dashboard/internal/pipeline"
)

type object = map[string]interface{}

func queryParam(name, description string, schema object) object {
	return object{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func enumSchema[T ~string](values []T) object {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = string(v)
	}
	return object{"type": "string", "enum": names}
}

func jsonResponse(description string, schema object) object {
	return object{
		"description": description,
		"content": object{
			"application/json": object{"schema": schema},
		},
	}
}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func errorResponses(codes ...int) object {
	out := object{}
	for _, code := range codes {
		out[strconv.Itoa(code)] = jsonResponse(http.StatusText(code), ref("Error"))
	}
	return out
}

func withResponses(base object, extra object) object {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func viewIDs() []pipeline.ViewID {
	views := pipeline.Views()
	ids := make([]pipeline.ViewID, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	return ids
}

// openAPIDocument builds the OpenAPI 3.0 document for the dashboard API
func openAPIDocument() object {
	partitions := enumSchema(pipeline.PartitionNames())
	dimensions := enumSchema(pipeline.Dimensions())
	orders := enumSchema([]pipeline.Order{pipeline.OrderAscending, pipeline.OrderByValue, pipeline.OrderNone})

	return object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "Traffic Volume Dashboard API",
			"description": "Aggregated views over hourly I-94 westbound traffic volume with weather and holiday context",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": object{
			"/health": object{
				"get": object{
					"summary": "Health check",
					"responses": object{
						"200": jsonResponse("Dataset loaded", object{"type": "object"}),
						"503": jsonResponse("Dataset not loaded yet", object{"type": "object"}),
					},
				},
			},
			"/api/dataset": object{
				"get": object{
					"summary":   "Dataset summary",
					"responses": withResponses(object{"200": jsonResponse("Summary", ref("DatasetSummary"))}, errorResponses(503)),
				},
			},
			"/api/views": object{
				"get": object{
					"summary":     "List dashboard views",
					"description": "View catalog plus the partitions, dimensions and orders accepted by /api/aggregate",
					"responses":   object{"200": jsonResponse("View catalog", object{"type": "object"})},
				},
			},
			"/api/views/{view}": object{
				"get": object{
					"summary": "Compute a dashboard view",
					"parameters": []object{{
						"name":     "view",
						"in":       "path",
						"required": true,
						"schema":   enumSchema(viewIDs()),
					}},
					"responses": withResponses(object{"200": jsonResponse("Computed view", ref("ViewResult"))}, errorResponses(404, 500, 503)),
				},
			},
			"/api/aggregate": object{
				"get": object{
					"summary":     "Ad-hoc group mean",
					"description": "Mean traffic volume grouped by one or two dimensions over a partition",
					"parameters": []object{
						queryParam("partition", "Observation subset (default: all)", partitions),
						queryParam("key", "Grouping dimension (required)", dimensions),
						queryParam("key2", "Optional second grouping dimension", dimensions),
						queryParam("order", "Result order (default: ascending)", orders),
					},
					"responses": withResponses(object{"200": jsonResponse("Groups", object{
						"type": "object",
						"properties": object{
							"query":  object{"type": "object"},
							"groups": object{"type": "array", "items": ref("Group")},
						},
					})}, errorResponses(400, 503)),
				},
			},
			"/api/observations": object{
				"get": object{
					"summary": "List observations",
					"parameters": []object{
						queryParam("start_date", "Inclusive lower bound (YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)", object{"type": "string"}),
						queryParam("end_date", "Inclusive upper bound; a bare date covers the whole day", object{"type": "string"}),
						queryParam("page", "Page number (default: 1)", object{"type": "integer", "default": 1}),
						queryParam("limit", "Records per page (default: 100, max: 1000)", object{"type": "integer", "default": defaultPageLimit}),
					},
					"responses": withResponses(object{"200": jsonResponse("Paginated observations", object{
						"type": "object",
						"properties": object{
							"data":        object{"type": "array", "items": ref("Observation")},
							"total":       object{"type": "integer"},
							"page":        object{"type": "integer"},
							"limit":       object{"type": "integer"},
							"total_pages": object{"type": "integer"},
						},
					})}, errorResponses(400, 503)),
				},
			},
			"/metrics": object{
				"get": object{
					"summary": "Prometheus metrics",
					"responses": object{
						"200": object{
							"description": "Prometheus metrics in text format",
							"content":     object{"text/plain": object{"schema": object{"type": "string"}}},
						},
					},
				},
			},
		},
		"components": object{
			"schemas": object{
				"Error": object{
					"type": "object",
					"properties": object{
						"error":   object{"type": "string"},
						"message": object{"type": "string"},
						"code":    object{"type": "integer"},
					},
				},
				"Group": object{
					"type": "object",
					"properties": object{
						"key":   object{"description": "Scalar key, or [row, column] for two-dimensional queries"},
						"mean":  object{"type": "number"},
						"count": object{"type": "integer"},
					},
				},
				"Observation": object{
					"type": "object",
					"properties": object{
						"timestamp":           object{"type": "string", "format": "date-time"},
						"traffic_volume":      object{"type": "integer", "minimum": 0},
						"temperature_kelvin":  object{"type": "number"},
						"weather_main":        object{"type": "string"},
						"weather_description": object{"type": "string"},
						"holiday":             object{"type": "string", "nullable": true},
						"derived": object{
							"type": "object",
							"properties": object{
								"hour":        object{"type": "integer"},
								"month":       object{"type": "integer"},
								"year":        object{"type": "integer"},
								"day_of_week": object{"type": "integer", "description": "0 = Monday"},
							},
						},
					},
				},
				"DatasetSummary": object{
					"type": "object",
					"properties": object{
						"source":          object{"type": "string"},
						"rows":            object{"type": "integer"},
						"rejected_rows":   object{"type": "integer"},
						"first_timestamp": object{"type": "string", "format": "date-time"},
						"last_timestamp":  object{"type": "string", "format": "date-time"},
						"loaded_at":       object{"type": "string", "format": "date-time"},
					},
				},
				"ViewResult": object{
					"type": "object",
					"properties": object{
						"id":     object{"type": "string"},
						"title":  object{"type": "string"},
						"chart":  object{"type": "string", "enum": []string{"histogram", "line", "barh", "scatter", "heatmap"}},
						"rows":   object{"type": "integer"},
						"series": object{"type": "array", "items": object{"type": "object"}},
					},
				},
			},
		},
	}
}

// OpenAPISpec serves the OpenAPI 3.0 document
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument())
}
