package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

func TestParseRunProgressURI(t *testing.T) {
	runID := uuid.New()

	tests := []struct {
		name      string
		uri       string
		wantID    uuid.UUID
		wantError bool
		errSubstr string
	}{
		{
			name:   "valid run ID",
			uri:    fmt.Sprintf("rentl://runs/%s/progress", runID),
			wantID: runID,
		},
		{
			name:      "wrong scheme",
			uri:       fmt.Sprintf("other://runs/%s/progress", runID),
			wantError: true,
			errSubstr: "invalid run progress URI",
		},
		{
			name:      "missing /progress suffix",
			uri:       fmt.Sprintf("rentl://runs/%s", runID),
			wantError: true,
			errSubstr: "invalid run progress URI",
		},
		{
			name:      "empty run ID between slashes",
			uri:       "rentl://runs//progress",
			wantError: true,
			errSubstr: "empty run ID",
		},
		{
			name:      "run ID is not a UUID",
			uri:       "rentl://runs/latest/progress",
			wantError: true,
			errSubstr: "invalid run ID",
		},
		{
			name:      "completely invalid URI",
			uri:       "garbage",
			wantError: true,
			errSubstr: "invalid run progress URI",
		},
		{
			name:      "empty string",
			uri:       "",
			wantError: true,
			errSubstr: "invalid run progress URI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRunProgressURI(tt.uri)

			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
				assert.Equal(t, uuid.Nil, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got)
		})
	}
}

func readRequest(uri string) mcplib.ReadResourceRequest {
	req := mcplib.ReadResourceRequest{}
	req.Params.URI = uri
	return req
}

// parseResourceJSON unmarshals the first text content of a resource read.
func parseResourceJSON(t *testing.T, contents []mcplib.ResourceContents, v any) {
	t.Helper()
	require.NotEmpty(t, contents)
	text, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok, "expected TextResourceContents")
	assert.Equal(t, "application/json", text.MIMEType)
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

func TestHandleRunsList(t *testing.T) {
	srv, fix := newTestServer(t)
	ctx := context.Background()

	older := fix.seedRun(t, model.RunCompleted, -2)
	newer := fix.seedRun(t, model.RunRunning, -1)

	contents, err := srv.handleRunsList(ctx, readRequest("rentl://runs"))
	require.NoError(t, err)

	var resp struct {
		Runs  []model.RunIndexEntry `json:"runs"`
		Total int                   `json:"total"`
	}
	parseResourceJSON(t, contents, &resp)

	require.Equal(t, 2, resp.Total)
	assert.Equal(t, newer.RunID, resp.Runs[0].RunID, "newest run first")
	assert.Equal(t, older.RunID, resp.Runs[1].RunID)
	assert.Equal(t, "tsukikage", resp.Runs[0].Project)
}

func TestHandleRunProgress(t *testing.T) {
	srv, fix := newTestServer(t)
	ctx := context.Background()

	state := fix.seedRun(t, model.RunRunning, -1)

	uri := fmt.Sprintf("rentl://runs/%s/progress", state.RunID)
	contents, err := srv.handleRunProgress(ctx, readRequest(uri))
	require.NoError(t, err)

	var resp map[string]any
	parseResourceJSON(t, contents, &resp)

	assert.Equal(t, state.RunID.String(), resp["run_id"])
	assert.Equal(t, string(model.RunRunning), resp["status"])
	phases, ok := resp["phases"].([]any)
	require.True(t, ok)
	assert.Len(t, phases, 2)

	// Unknown runs surface as errors, not empty documents.
	_, err = srv.handleRunProgress(ctx, readRequest(fmt.Sprintf("rentl://runs/%s/progress", uuid.New())))
	require.Error(t, err)

	_, err = srv.handleRunProgress(ctx, readRequest("rentl://runs/nope/progress"))
	require.Error(t, err)
}

func TestHandlePendingApprovals(t *testing.T) {
	srv, fix := newTestServer(t)
	ctx := context.Background()

	state := fix.seedRun(t, model.RunAwaitingApproval, -1)
	d := fix.seedDecision(t, state.RunID, "l3")

	contents, err := srv.handlePendingApprovals(ctx, readRequest("rentl://approvals/pending"))
	require.NoError(t, err)

	var resp struct {
		Decisions []map[string]any `json:"decisions"`
		Total     int              `json:"total"`
	}
	parseResourceJSON(t, contents, &resp)

	require.Equal(t, 1, resp.Total)
	assert.Equal(t, d.ID.String(), resp.Decisions[0]["id"])
	assert.Equal(t, "l3", resp.Decisions[0]["line_id"])
	_, hasToken := resp.Decisions[0]["token"]
	assert.False(t, hasToken, "resume token should not appear in resource output")
}

func TestHandlePendingApprovalsNoStore(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.pending = nil

	_, err := srv.handlePendingApprovals(context.Background(), readRequest("rentl://approvals/pending"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pending-decision store")
}
