package pdq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"pdqctl/internal/errs"
)

// InitSchemas fetches the list of schemas (id, name, predefined queries).
//
// The body is read as text and then parsed, so a truncated or non-JSON body
// surfaces as ErrKindMalformedResponse rather than a transport error.
func (c *Client) InitSchemas(ctx context.Context) (InitialInfo, error) {
	body, err := c.get(ctx, "/initSchemas", "application/json")
	if err != nil {
		return InitialInfo{}, err
	}

	var info InitialInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return InitialInfo{}, errs.Wrap(errs.ErrKindMalformedResponse, "decode /initSchemas", err)
	}
	return info, nil
}

// Relations returns the relations of a schema as a raw JSON document.
func (c *Client) Relations(ctx context.Context, schemaID int) (json.RawMessage, error) {
	return c.getJSONDocument(ctx, "/getRelations", schemaID)
}

// Dependencies returns the dependencies of a schema as a raw JSON document.
func (c *Client) Dependencies(ctx context.Context, schemaID int) (json.RawMessage, error) {
	return c.getJSONDocument(ctx, "/getDependencies", schemaID)
}

func (c *Client) getJSONDocument(ctx context.Context, route string, schemaID int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("id", strconv.Itoa(schemaID))
	body, err := c.get(ctx, route+"?"+q.Encode(), "application/json")
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if isEmptyPayload(body) {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("%s: schema %d not found", route, schemaID))
	}
	if !json.Valid(body) {
		return nil, errs.New(errs.ErrKindMalformedResponse, "decode "+route)
	}
	return json.RawMessage(body), nil
}

// VerifyQuery asks the server whether sql parses against the schema.
func (c *Client) VerifyQuery(ctx context.Context, schemaID, queryID int, sql string) (bool, error) {
	if err := requireSQL(sql); err != nil {
		return false, err
	}
	body, err := c.get(ctx, queryPath("verifyQuery", schemaID, queryID, sql), "application/json")
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(body, &ok); err != nil {
		return false, errs.Wrap(errs.ErrKindMalformedResponse, "decode /verifyQuery", err)
	}
	return ok, nil
}

// Plan computes a plan for sql. The result is stamped with schemaID/queryID
// so callers can tell which query the plan belongs to.
func (c *Client) Plan(ctx context.Context, schemaID, queryID int, sql string) (*Plan, error) {
	if err := requireSQL(sql); err != nil {
		return nil, err
	}
	body, err := c.get(ctx, queryPath("plan", schemaID, queryID, sql), "application/json")
	if err != nil {
		return nil, err
	}
	if isEmptyPayload(bytes.TrimSpace(body)) {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("/plan: no plan found for schema %d query %d", schemaID, queryID))
	}

	var p Plan
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errs.Wrap(errs.ErrKindMalformedResponse, "decode /plan", err)
	}
	p.SchemaID = schemaID
	p.QueryID = queryID
	return &p, nil
}

// Run plans and executes sql and returns the result rows.
func (c *Client) Run(ctx context.Context, schemaID, queryID int, sql string) (*RunResults, error) {
	if err := requireSQL(sql); err != nil {
		return nil, err
	}
	body, err := c.get(ctx, queryPath("run", schemaID, queryID, sql), "application/json")
	if err != nil {
		return nil, err
	}
	if isEmptyPayload(bytes.TrimSpace(body)) {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("/run: no results for schema %d query %d", schemaID, queryID))
	}

	var r RunResults
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, errs.Wrap(errs.ErrKindMalformedResponse, "decode /run", err)
	}
	return &r, nil
}

// DownloadPlan fetches the computed plan for sql as opaque XML bytes.
// sql is sent as given; callers normalize whitespace first.
func (c *Client) DownloadPlan(ctx context.Context, schemaID, queryID int, sql string) ([]byte, error) {
	return c.download(ctx, "downloadPlan", schemaID, queryID, sql, "application/xml")
}

// DownloadRun fetches the run results for sql as CSV bytes.
func (c *Client) DownloadRun(ctx context.Context, schemaID, queryID int, sql string) ([]byte, error) {
	return c.download(ctx, "downloadRun", schemaID, queryID, sql, "text/csv")
}

func (c *Client) download(ctx context.Context, route string, schemaID, queryID int, sql, accept string) ([]byte, error) {
	if err := requireSQL(sql); err != nil {
		return nil, err
	}
	body, err := c.get(ctx, queryPath(route, schemaID, queryID, sql), accept)
	if err != nil {
		return nil, err
	}
	// The server answers 200 with an empty body when it has nothing on disk.
	if len(body) == 0 {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("/%s: server returned no content for schema %d query %d", route, schemaID, queryID))
	}
	return body, nil
}

func requireSQL(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return errs.New(errs.ErrKindInvalidInput, "sql is required")
	}
	return nil
}

func isEmptyPayload(body []byte) bool {
	return len(body) == 0 || string(body) == "null"
}
