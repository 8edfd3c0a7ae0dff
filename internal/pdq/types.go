package pdq

import "encoding/json"

// Query is one predefined query of a schema, rendered as SQL by the server.
type Query struct {
	ID  int    `json:"id"`
	SQL string `json:"SQL"`
}

// Schema is the summary the server returns from /initSchemas.
type Schema struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Queries []Query `json:"queries,omitempty"`
}

// Query returns the query with the given id.
func (s Schema) Query(id int) (Query, bool) {
	for _, q := range s.Queries {
		if q.ID == id {
			return q, true
		}
	}
	return Query{}, false
}

// InitialInfo is the /initSchemas payload.
type InitialInfo struct {
	Schemas []Schema `json:"schemas"`
}

// Find returns the schema with the given id.
func (i InitialInfo) Find(id int) (Schema, bool) {
	for _, s := range i.Schemas {
		if s.ID == id {
			return s, true
		}
	}
	return Schema{}, false
}

// PlanRef identifies which (schema, query) pair a computed plan belongs to.
type PlanRef struct {
	SchemaID int `json:"schemaID"`
	QueryID  int `json:"queryID"`
}

// Matches reports whether the plan was computed for schemaID/queryID.
// A nil ref never matches.
func (r *PlanRef) Matches(schemaID, queryID int) bool {
	return r != nil && r.SchemaID == schemaID && r.QueryID == queryID
}

// Plan is a computed plan as returned by /plan. The graphical plan tree is
// kept as raw JSON; pdqctl only forwards it.
type Plan struct {
	SchemaID        int             `json:"schemaID"`
	QueryID         int             `json:"queryID"`
	GraphicalPlan   json.RawMessage `json:"graphicalPlan,omitempty"`
	BestPlan        string          `json:"bestPlan,omitempty"`
	ComputationTime float64         `json:"computationTime,omitempty"`
}

// Ref returns the identity of the plan.
func (p *Plan) Ref() *PlanRef {
	if p == nil {
		return nil
	}
	return &PlanRef{SchemaID: p.SchemaID, QueryID: p.QueryID}
}

// RunResults is the /run payload. Rows are kept as raw JSON.
type RunResults struct {
	Results json.RawMessage `json:"results"`
	Runtime float64         `json:"runtime,omitempty"`
}
