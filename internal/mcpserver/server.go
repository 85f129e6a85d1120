// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Verbo reading tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/verbo/internal/readingservice"
)

const passageURI = "verbo://current-passage"

// Server wraps the MCP server with Verbo tools.
type Server struct {
	mcp *server.MCPServer
	svc *readingservice.Service
}

// New creates a new MCP server with all Verbo tools registered.
func New(svc *readingservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Verbo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("navigate",
		mcp.WithDescription("Move the reader to a Bible reference written in free text, "+
			"e.g. \"Juan 3:16\" or \"Génesis 1\". Book names may be abbreviated or unaccented."),
		mcp.WithString("reference", mcp.Required(), mcp.Description("Text containing the reference")),
	), s.navigate)

	s.mcp.AddTool(mcp.NewTool("current_passage",
		mcp.WithDescription("Return the book, chapter and verses currently open in the reader."),
	), s.currentPassage)

	s.mcp.AddTool(mcp.NewTool("toggle_read",
		mcp.WithDescription("Mark a chapter as read, or unmark it. Defaults to the current chapter."),
		mcp.WithString("book_id", mcp.Description("Book identifier, e.g. JHN")),
		mcp.WithString("chapter", mcp.Description("Chapter number, e.g. 3")),
	), s.toggleRead)

	s.mcp.AddTool(mcp.NewTool("save_note",
		mcp.WithDescription("Save a personal note. Without a key the note goes on the selected verse; "+
			"with general=true it goes on the current chapter."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text; empty clears the note")),
		mcp.WithString("key", mcp.Description("Verse ID to attach the note to")),
		mcp.WithBoolean("general", mcp.Description("Attach to the current chapter instead of a verse")),
	), s.saveNote)

	s.mcp.AddTool(mcp.NewTool("list_bookmarks",
		mcp.WithDescription("List the bookmarked verses."),
	), s.listBookmarks)

	s.mcp.AddTool(mcp.NewTool("reading_progress",
		mcp.WithDescription("List the chapters marked as read, per book."),
	), s.readingProgress)

	// Resource: the passage open in the reader.
	s.mcp.AddResource(
		mcp.NewResource(passageURI, "Current Passage",
			mcp.WithResourceDescription("The chapter currently open in the reader, one verse per line."),
			mcp.WithMIMEType("text/plain"),
		),
		s.readPassageResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) navigate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("reference")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok, err := s.svc.Navigate(ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no reference recognised in %q", ref)), nil
	}
	return mcp.NewToolResultText("navigating; call current_passage to read it"), nil
}

// passageText renders the open chapter, marking the highlighted verse.
func (s *Server) passageText() (string, error) {
	st := s.svc.Reader()
	if st.CurrentBook == nil || st.CurrentChapter == nil {
		return "", fmt.Errorf("reader not ready (%s)", st.Phase)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", st.CurrentBook.Name, st.CurrentChapter.Number)
	for _, v := range st.Verses {
		mark := ""
		if v.Number == st.Highlight {
			mark = " *"
		}
		fmt.Fprintf(&b, "%s%s %s\n", v.Number, mark, v.Text)
	}
	return b.String(), nil
}

func (s *Server) currentPassage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := s.passageText()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) readPassageResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text, err := s.passageText()
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      passageURI,
			MIMEType: "text/plain",
			Text:     text,
		},
	}, nil
}

func (s *Server) toggleRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bookID := req.GetString("book_id", "")
	chapter := req.GetString("chapter", "")
	read, err := s.svc.ToggleRead(ctx, bookID, chapter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if read {
		return mcp.NewToolResultText("marked as read"), nil
	}
	return mcp.NewToolResultText("marked as unread"), nil
}

func (s *Server) saveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := s.svc.SaveNote(ctx, req.GetString("key", ""), content, req.GetBool("general", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", key)), nil
}

func (s *Server) listBookmarks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bms := s.svc.Bookmarks()
	if len(bms) == 0 {
		return mcp.NewToolResultText("no bookmarks"), nil
	}
	return jsonResult(bms), nil
}

func (s *Server) readingProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Progress()), nil
}
