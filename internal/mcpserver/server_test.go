package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/verbo/internal/models"
	"github.com/starford/verbo/internal/testutil"
)

func testServer(t *testing.T) (*Server, *testutil.Reading) {
	t.Helper()
	rd := testutil.NewReading(t, nil, nil)
	return New(rd.Service), rd
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "navigate":
		result, err = srv.navigate(ctx, req)
	case "current_passage":
		result, err = srv.currentPassage(ctx, req)
	case "toggle_read":
		result, err = srv.toggleRead(ctx, req)
	case "save_note":
		result, err = srv.saveNote(ctx, req)
	case "list_bookmarks":
		result, err = srv.listBookmarks(ctx, req)
	case "reading_progress":
		result, err = srv.readingProgress(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestNavigateAndReadPassage(t *testing.T) {
	srv, rd := testServer(t)

	r := callTool(t, srv, "navigate", map[string]interface{}{"reference": "juan 2:3"})
	if r.IsError {
		t.Fatalf("navigate failed: %s", resultText(r))
	}
	testutil.WaitChapter(t, rd.Service, "JHN.2")
	if _, ok := rd.Service.ScrollTarget(context.Background()); !ok {
		t.Fatal("highlight not applied")
	}

	r = callTool(t, srv, "current_passage", map[string]interface{}{})
	text := resultText(r)
	if !strings.HasPrefix(text, "Juan 2\n") {
		t.Errorf("passage header = %q", text)
	}
	if !strings.Contains(text, "3 * texto JHN.2:3\n") {
		t.Errorf("highlight missing in %q", text)
	}
}

func TestNavigateUnrecognised(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "navigate", map[string]interface{}{"reference": "buenos días"})
	if !r.IsError {
		t.Error("expected error for text without a reference")
	}
	r = callTool(t, srv, "navigate", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing reference")
	}
}

func TestToggleReadAndProgress(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "toggle_read", map[string]interface{}{})
	if text := resultText(r); text != "marked as read" {
		t.Fatalf("toggle = %q", text)
	}
	r = callTool(t, srv, "toggle_read", map[string]interface{}{"book_id": "JHN", "chapter": "3"})
	if text := resultText(r); text != "marked as read" {
		t.Fatalf("toggle JHN 3 = %q", text)
	}

	r = callTool(t, srv, "reading_progress", map[string]interface{}{})
	var p models.ReadProgressMap
	if err := json.Unmarshal([]byte(resultText(r)), &p); err != nil {
		t.Fatalf("progress json: %v", err)
	}
	if len(p["GEN"]) != 1 || len(p["JHN"]) != 1 {
		t.Errorf("progress = %v", p)
	}

	r = callTool(t, srv, "toggle_read", map[string]interface{}{})
	if text := resultText(r); text != "marked as unread" {
		t.Errorf("second toggle = %q", text)
	}
}

func TestSaveNote(t *testing.T) {
	srv, rd := testServer(t)

	r := callTool(t, srv, "save_note", map[string]interface{}{"content": "Principio", "general": true})
	if text := resultText(r); text != "saved: GEN-1-GENERAL" {
		t.Fatalf("general note = %q", text)
	}
	r = callTool(t, srv, "save_note", map[string]interface{}{"content": "Luz", "key": "GEN.1.3"})
	if text := resultText(r); text != "saved: GEN.1.3" {
		t.Fatalf("keyed note = %q", text)
	}
	r = callTool(t, srv, "save_note", map[string]interface{}{"content": "x"})
	if !r.IsError {
		t.Error("expected error without key or selected verse")
	}

	notes := rd.Service.Notes()
	if notes["GEN.1.3"] != "Luz" || notes["GEN-1-GENERAL"] != "Principio" {
		t.Errorf("notes = %v", notes)
	}
}

func TestListBookmarks(t *testing.T) {
	srv, rd := testServer(t)

	r := callTool(t, srv, "list_bookmarks", map[string]interface{}{})
	if text := resultText(r); text != "no bookmarks" {
		t.Errorf("empty bookmarks = %q", text)
	}

	if _, err := rd.Service.ToggleBookmark(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, srv, "list_bookmarks", map[string]interface{}{})
	var bms []models.Bookmark
	if err := json.Unmarshal([]byte(resultText(r)), &bms); err != nil {
		t.Fatalf("bookmarks json: %v", err)
	}
	if len(bms) != 1 || bms[0].ID != "GEN.1.1" {
		t.Errorf("bookmarks = %+v", bms)
	}
}

func TestPassageResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readPassageResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != passageURI || !strings.HasPrefix(tc.Text, "Génesis 1\n") {
		t.Errorf("resource = %+v", contents[0])
	}
}
