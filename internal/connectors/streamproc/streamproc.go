// Package streamproc is a ksqlDB-equivalent REST client used by the
// Pipeline Orchestrator to submit stream/table DDL, with helpers to
// preview query results and read cluster info via /info.
package streamproc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fastjson"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// Client talks to one ksqlDB-compatible stream processing endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client against baseURL (e.g. "http://ksqldb:8088").
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type ksqlRequest struct {
	KSQL           string            `json:"ksql"`
	StreamsProperties map[string]any `json:"streamsProperties,omitempty"`
}

// StatementResult is one element of the /ksql response array.
type StatementResult struct {
	StatementText string `json:"statementText"`
	CommandStatus struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"commandStatus"`
	Error string `json:"error_message,omitempty"`
}

// ExecStatement submits DDL/DML (CREATE STREAM, CREATE TABLE, ...) to /ksql.
func (c *Client) ExecStatement(ctx context.Context, statement string) ([]StatementResult, error) {
	return c.ExecStatementWithProperties(ctx, statement, nil)
}

// ExecStatementWithProperties is ExecStatement plus per-statement streams
// properties (e.g. "ksql.streams.auto.offset.reset": "earliest", returned
// alongside a filter stream's DDL by the Anomaly Engine so the derived
// stream's processor starts from the beginning of its source topic).
func (c *Client) ExecStatementWithProperties(ctx context.Context, statement string, props map[string]any) ([]StatementResult, error) {
	body, err := json.Marshal(ksqlRequest{KSQL: statement, StreamsProperties: props})
	if err != nil {
		return nil, fmt.Errorf("marshal ksql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ksql", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/vnd.ksql.v1+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConnectFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: exec statement: status %d", models.ErrQueryFailed, resp.StatusCode)
	}

	var results []StatementResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode ksql response: %w", err)
	}
	return results, nil
}

// QueryRow is one decoded line of a /query NDJSON response, scoped to the
// join preview use case: a row of named column values plus any error.
type QueryRow struct {
	Columns []any  `json:"row,omitempty"`
	Error   string `json:"errorMessage,omitempty"`
}

// PreviewQuery streams up to maxRows result rows from a bounded SELECT,
// giving a sample of a query's output.
func (c *Client) PreviewQuery(ctx context.Context, statement string, maxRows int) ([]QueryRow, error) {
	body, err := json.Marshal(ksqlRequest{KSQL: statement})
	if err != nil {
		return nil, fmt.Errorf("marshal query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/vnd.ksql.v1+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConnectFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: preview query: status %d", models.ErrQueryFailed, resp.StatusCode)
	}

	var rows []QueryRow
	var parser fastjson.Parser
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && len(rows) < maxRows {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		row, ok := parseQueryRow(&parser, line)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return rows, fmt.Errorf("%w: scan preview stream: %v", models.ErrQueryFailed, err)
	}

	return rows, nil
}

// parseQueryRow parses a single NDJSON preview-query line with fastjson
// rather than a per-line encoding/json unmarshal, avoiding a struct
// allocation for every one of a potentially large preview stream's rows.
func parseQueryRow(parser *fastjson.Parser, line []byte) (QueryRow, bool) {
	v, err := parser.ParseBytes(line)
	if err != nil {
		return QueryRow{}, false
	}

	var row QueryRow
	if msg := v.Get("errorMessage"); msg != nil {
		row.Error = string(msg.GetStringBytes())
	}
	if arr := v.GetArray("row"); arr != nil {
		row.Columns = make([]any, len(arr))
		for i, elem := range arr {
			row.Columns[i] = fastjsonValue(elem)
		}
	}
	return row, true
}

// fastjsonValue converts a fastjson.Value leaf into a plain Go value,
// matching the shapes encoding/json would have produced for the same
// JSON document (float64 for numbers, to stay a drop-in for existing
// QueryRow.Columns consumers).
func fastjsonValue(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return v.GetFloat64()
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeNull:
		return nil
	default:
		return v.String()
	}
}

// Info reports the cluster's server info.
func (c *Client) Info(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConnectFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: info: status %d", models.ErrQueryFailed, resp.StatusCode)
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode info response: %w", err)
	}
	return info, nil
}
