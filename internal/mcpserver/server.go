// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes habit tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/habithub/internal/habitservice"
	"github.com/starford/habithub/internal/models"
)

const modelURI = "habithub://data-model"

// Server wraps the MCP server with habit tools.
type Server struct {
	mcp *server.MCPServer
	svc *habitservice.Service
}

// New creates a new MCP server with all habit tools registered.
func New(svc *habitservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Habithub",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_habits",
		mcp.WithDescription("List a user's habits, including pending invites, with weekly success rates "+
			"and the rows of other members of together habits."),
		mcp.WithString("email", mcp.Required(), mcp.Description("User email")),
	), s.listHabits)

	s.mcp.AddTool(mcp.NewTool("get_heatmap",
		mcp.WithDescription("Return the 53-week heatmap of one habit with a status per day. "+
			"See the "+modelURI+" resource for cell meanings."),
		mcp.WithString("email", mcp.Required(), mcp.Description("User email")),
		mcp.WithString("habit_id", mcp.Required(), mcp.Description("Habit id from list_habits")),
	), s.getHeatmap)

	s.mcp.AddTool(mcp.NewTool("toggle_log",
		mcp.WithDescription("Cycle a day of a habit through unlogged, done and failed."),
		mcp.WithString("email", mcp.Required(), mcp.Description("User email")),
		mcp.WithString("habit_id", mcp.Required(), mcp.Description("Habit id from list_habits")),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD; defaults to today")),
	), s.toggleLog)

	s.mcp.AddTool(mcp.NewTool("get_leaderboard",
		mcp.WithDescription("Rank a user against their accepted friends by average weekly rate."),
		mcp.WithString("email", mcp.Required(), mcp.Description("User email")),
	), s.getLeaderboard)

	s.mcp.AddTool(mcp.NewTool("respond_invite",
		mcp.WithDescription("Accept or decline a pending together-habit invite. A declined invite is never offered again."),
		mcp.WithString("email", mcp.Required(), mcp.Description("Invited user email")),
		mcp.WithString("habit_id", mcp.Required(), mcp.Description("Invite id or shared habit id from list_habits")),
		mcp.WithBoolean("accept", mcp.Required(), mcp.Description("true to join, false to decline")),
	), s.respondInvite)

	s.mcp.AddResource(
		mcp.NewResource(modelURI, "Habit Data Model",
			mcp.WithResourceDescription("Statuses, log states, rates and heatmap cell classes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readModelResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listHabits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Habits(ctx, email))
}

func (s *Server) getHeatmap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	habitID, err := req.RequireString("habit_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	grid, err := s.svc.Heatmap(ctx, email, habitID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("heatmap %s: %v", habitID, err)), nil
	}
	return jsonResult(grid)
}

func (s *Server) toggleLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	habitID, err := req.RequireString("habit_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date := req.GetString("date", "")
	if date == "" {
		date = models.FormatDate(s.svc.Today())
	}
	state, _, err := s.svc.ToggleLog(ctx, email, habitID, date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s on %s: %s", habitID, date, state)), nil
}

func (s *Server) getLeaderboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Leaderboard(ctx, email))
}

func (s *Server) respondInvite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	habitID, err := req.RequireString("habit_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	accept, err := req.RequireBool("accept")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.RespondToInviteByID(ctx, email, habitID, accept)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", rec.Habit.Name, rec.Habit.Status)), nil
}

func (s *Server) readModelResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      modelURI,
			MIMEType: "text/markdown",
			Text:     HabitModel,
		},
	}, nil
}
