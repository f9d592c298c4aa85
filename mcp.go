package pgadmin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rickchristie/postgres-admin/internal/coerce"
)

// describedColumn is a column as the describe_columns tool shows it.
type describedColumn struct {
	ColumnMetadata
	SemanticType SemanticType `json:"semantic_type"`
	Widget       Widget       `json:"widget"`
	Required     bool         `json:"required"`
}

type describeOutput struct {
	Schema      string                   `json:"schema"`
	Name        string                   `json:"name"`
	PrimaryKey  string                   `json:"primary_key"`
	Columns     []describedColumn        `json:"columns"`
	ForeignKeys []ForeignKeyRelationship `json:"foreign_keys"`
}

// RegisterMCPTools registers the table administration tools on mcpServer.
func RegisterMCPTools(mcpServer *server.MCPServer, m *DatabaseManager) {
	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List the tables of the configured schema that the current role can read."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(listTablesTool, m.loggedToolHandler("list_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := m.ListTables(ctx)
		if err != nil {
			return m.toolError(err), nil
		}
		return jsonResult(map[string]any{"tables": tables})
	}))

	describeTool := mcp.NewTool("describe_columns",
		mcp.WithDescription("Describe the columns of a table: raw and semantic type, nullability, default, primary and foreign keys, and the input widget used to edit it."),
		mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(describeTool, m.loggedToolHandler("describe_columns", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		md, err := m.GetColumnsWithTypes(ctx, table)
		if err != nil {
			return m.toolError(err), nil
		}
		return jsonResult(describe(md))
	}))

	fetchPageTool := mcp.NewTool("fetch_page",
		mcp.WithDescription(fmt.Sprintf("Fetch one page (%d rows) of a table with its total row count. Sensitive columns are redacted unless raw is true.", m.PageSize())),
		mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		mcp.WithString("sort_column", mcp.Description("Column to order by; natural table order when omitted")),
		mcp.WithBoolean("descending", mcp.Description("Sort descending")),
		mcp.WithBoolean("raw", mcp.Description("Return values without redaction")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(fetchPageTool, m.loggedToolHandler("fetch_page", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		page, err := m.FetchPage(ctx, table, req.GetInt("page", 1), PageOptions{
			Raw:        req.GetBool("raw", false),
			SortColumn: req.GetString("sort_column", ""),
			Descending: req.GetBool("descending", false),
		})
		if err != nil {
			return m.toolError(err), nil
		}
		return jsonResult(page)
	}))

	fetchRowTool := mcp.NewTool("fetch_row",
		mcp.WithDescription("Fetch one row by primary key. Returns {} when no row matches."),
		mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Primary key value")),
		mcp.WithBoolean("raw", mcp.Description("Return values without redaction")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(fetchRowTool, m.loggedToolHandler("fetch_row", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		id, ok := scalarArg(req, "id")
		if !ok {
			return mcp.NewToolResultError("id parameter is required"), nil
		}
		row, err := m.FetchRow(ctx, table, id, req.GetBool("raw", false))
		if err != nil {
			return m.toolError(err), nil
		}
		return jsonResult(row)
	}))

	insertTool := mcp.NewTool("insert_row",
		mcp.WithDescription("Insert one row. columns and values pair up by position; omitted columns take their defaults. Values are validated against the column types and foreign keys before anything is written."),
		mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
		mcp.WithArray("columns", mcp.Required(), mcp.Description("Column names"), mcp.WithStringItems()),
		mcp.WithArray("values", mcp.Required(), mcp.Description("Values, one per column: string, number, boolean or null")),
	)
	mcpServer.AddTool(insertTool, m.loggedToolHandler("insert_row", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		columns, values, err := rowArgs(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := m.InsertRow(ctx, table, columns, values); err != nil {
			return m.toolError(err), nil
		}
		return jsonResult(map[string]any{"inserted": 1})
	}))

	updateTool := mcp.NewTool("update_cell",
		mcp.WithDescription("Set one column of the row with the given primary key. null clears a nullable column."),
		mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
		mcp.WithString("column", mcp.Required(), mcp.Description("The column to change")),
		mcp.WithAny("value", mcp.Required(), mcp.Description("New value: a string, number, boolean, or null to clear the column. An empty string also clears non-text columns.")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Primary key value")),
		mcp.WithIdempotentHintAnnotation(true),
	)
	mcpServer.AddTool(updateTool, m.loggedToolHandler("update_cell", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		column, err := req.RequireString("column")
		if err != nil {
			return mcp.NewToolResultError("column parameter is required"), nil
		}
		raw, present := req.GetArguments()["value"]
		if !present {
			return mcp.NewToolResultError("value parameter is required (use null to clear)"), nil
		}
		id, ok := scalarArg(req, "id")
		if !ok {
			return mcp.NewToolResultError("id parameter is required"), nil
		}
		if err := m.UpdateCell(ctx, table, column, coerce.FromAny(raw), id); err != nil {
			return m.toolError(err), nil
		}
		return jsonResult(map[string]any{"updated": 1})
	}))

	deleteTool := mcp.NewTool("delete_row",
		mcp.WithDescription(`Delete the row with the given primary key, or every row when id is "all". Columns registered for soft cascade are set to NULL in the same transaction; for "all" the key sequence restarts at 1.`),
		mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
		mcp.WithString("id", mcp.Required(), mcp.Description(`Primary key value, or "all"`)),
		mcp.WithDestructiveHintAnnotation(true),
	)
	mcpServer.AddTool(deleteTool, m.loggedToolHandler("delete_row", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		id, ok := scalarArg(req, "id")
		if !ok {
			return mcp.NewToolResultError("id parameter is required"), nil
		}
		if err := m.DeleteRow(ctx, table, id); err != nil {
			return m.toolError(err), nil
		}
		return jsonResult(map[string]any{"deleted": id})
	}))

	truncateTool := mcp.NewTool("truncate_table",
		mcp.WithDescription("Remove every row of a table and restart its identity sequences. Fails when other tables reference it."),
		mcp.WithString("table", mcp.Required(), mcp.Description("The table name")),
		mcp.WithString("schema", mcp.Description("The schema name (defaults to the configured schema)")),
		mcp.WithDestructiveHintAnnotation(true),
	)
	mcpServer.AddTool(truncateTool, m.loggedToolHandler("truncate_table", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		if err := m.TruncateTable(ctx, req.GetString("schema", ""), table); err != nil {
			return m.toolError(err), nil
		}
		return jsonResult(map[string]any{"truncated": table})
	}))
}

func describe(md *TableMetadata) describeOutput {
	out := describeOutput{
		Schema:      md.Schema,
		Name:        md.Name,
		PrimaryKey:  md.PrimaryKey(),
		Columns:     make([]describedColumn, len(md.Columns)),
		ForeignKeys: md.ForeignKeys,
	}
	for i, c := range md.Columns {
		out.Columns[i] = describedColumn{
			ColumnMetadata: c,
			SemanticType:   c.SemanticType(),
			Widget:         coerce.InputWidgetFor(c.RawType),
			Required:       c.Required(),
		}
	}
	return out
}

// scalarArg reads a string or number argument as text.
func scalarArg(req mcp.CallToolRequest, name string) (string, bool) {
	raw, ok := req.GetArguments()[name]
	if !ok || raw == nil {
		return "", false
	}
	v := coerce.FromAny(raw)
	if v.IsNull() {
		return "", false
	}
	return v.String(), true
}

// rowArgs reads the parallel columns and values arrays.
func rowArgs(req mcp.CallToolRequest) ([]string, []Value, error) {
	args := req.GetArguments()
	rawCols, ok := args["columns"].([]any)
	if !ok {
		return nil, nil, fmt.Errorf("columns parameter must be an array of strings")
	}
	rawVals, ok := args["values"].([]any)
	if !ok {
		return nil, nil, fmt.Errorf("values parameter must be an array")
	}
	if len(rawCols) != len(rawVals) {
		return nil, nil, fmt.Errorf("got %d columns but %d values", len(rawCols), len(rawVals))
	}
	columns := make([]string, len(rawCols))
	values := make([]Value, len(rawVals))
	for i, c := range rawCols {
		s, ok := c.(string)
		if !ok || s == "" {
			return nil, nil, fmt.Errorf("columns[%d] must be a non-empty string", i)
		}
		columns[i] = s
		values[i] = coerce.FromAny(rawVals[i])
	}
	return columns, values, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal result"), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// toolError turns err into a tool error result, with matching error hints
// appended, through the error sink.
func (m *DatabaseManager) toolError(err error) *mcp.CallToolResult {
	msg := m.errHints.Annotate(err.Error())
	return mcp.NewToolResultError(m.errors.HandleError(msg, HTTPStatus(err)).Error())
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (m *DatabaseManager) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		m.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
