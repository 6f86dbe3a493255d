package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ehwaz/internal/models"
	"github.com/starford/ehwaz/internal/noteservice"
	"github.com/starford/ehwaz/internal/testutil"
)

type fakeEngine struct {
	commits int
	synced  bool
}

func (f *fakeEngine) Commit(ctx context.Context, n *models.Note) error {
	f.commits++
	return nil
}
func (f *fakeEngine) Sync(ctx context.Context)       { f.synced = true }
func (f *fakeEngine) Push(ctx context.Context) error { return nil }
func (f *fakeEngine) Pull(ctx context.Context) error { return nil }
func (f *fakeEngine) QueueDepth() int                { return 0 }
func (f *fakeEngine) Configured() bool               { return false }
func (f *fakeEngine) Online() bool                   { return true }

func testServer(t *testing.T) (*Server, *fakeEngine) {
	t.Helper()
	db := testutil.TestDB(t)
	engine := &fakeEngine{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := noteservice.NewService(db, engine, logger)
	return New(svc, engine), engine
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "sync_now":
		result, err = srv.syncNow(ctx, req)
	case "sync_status":
		result, err = srv.syncStatus(ctx, req)
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

func TestCreateAndReadNote(t *testing.T) {
	srv, engine := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "Test Note",
		"content": "Hello world",
		"tags":    "go, testing",
	})
	text := resultText(r)
	if !strings.HasPrefix(text, "created note ") {
		t.Fatalf("create result = %q", text)
	}
	if engine.commits != 1 {
		t.Errorf("commits = %d, want 1", engine.commits)
	}

	// created note <id> (status: unsynced)
	id := strings.Fields(text)[2]
	r = callTool(t, srv, "read_note", map[string]interface{}{"id": id})
	text = resultText(r)
	if !strings.Contains(text, "Test Note") || !strings.Contains(text, "Hello world") {
		t.Errorf("read result = %q", text)
	}
	if !strings.Contains(text, "testing") {
		t.Errorf("tags missing from read result: %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestListNotesStatusFilter(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_note", map[string]interface{}{
		"title": "A", "content": "first",
	})
	callTool(t, srv, "create_note", map[string]interface{}{
		"title": "B", "content": "second",
	})

	r := callTool(t, srv, "list_notes", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, `"A"`) || !strings.Contains(text, `"B"`) {
		t.Errorf("list = %q", text)
	}

	r = callTool(t, srv, "list_notes", map[string]interface{}{"status": "synced"})
	if text := resultText(r); strings.Contains(text, `"A"`) {
		t.Errorf("synced filter returned unsynced note: %q", text)
	}

	r = callTool(t, srv, "list_notes", map[string]interface{}{"status": "bogus"})
	if !r.IsError {
		t.Error("expected error for unknown status")
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_note", map[string]interface{}{
		"title": "Channel patterns", "content": "fan-in and fan-out",
	})
	callTool(t, srv, "create_note", map[string]interface{}{
		"title": "Unrelated", "content": "nothing here",
	})

	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "fan-in"})
	text := resultText(r)
	if !strings.Contains(text, "Channel patterns") {
		t.Errorf("search = %q", text)
	}
	if strings.Contains(text, "Unrelated") {
		t.Errorf("search matched unrelated note: %q", text)
	}
}

func TestSyncNow(t *testing.T) {
	srv, engine := testServer(t)
	r := callTool(t, srv, "sync_now", map[string]interface{}{})
	if !engine.synced {
		t.Error("sync_now did not run a sync pass")
	}
	if text := resultText(r); !strings.Contains(text, "queue depth: 0") {
		t.Errorf("sync_now result = %q", text)
	}
}

func TestSyncStatus(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "sync_status", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, `"configured":false`) || !strings.Contains(text, `"online":true`) {
		t.Errorf("sync_status = %q", text)
	}
}

func TestSplitTags(t *testing.T) {
	got := splitTags(" a, b ,, c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("splitTags = %v", got)
	}
	if splitTags("") != nil {
		t.Error("empty input should return nil")
	}
}
