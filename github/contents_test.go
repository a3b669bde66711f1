package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetContents_File(t *testing.T) {
	var gotPath, gotRef string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotRef = r.URL.Query().Get("ref")
		w.Write([]byte(`{"type":"file","name":"my post.md","path":"content/blog/my post.md","sha":"abc","content":"aGk=\n","encoding":"base64"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, "test-token")
	contents, err := client.GetContents(context.Background(), "alice", "notes", "content/blog/my post.md", "main")
	if err != nil {
		t.Fatalf("GetContents: %v", err)
	}
	if contents.IsDir() {
		t.Fatal("file reported as directory")
	}
	if contents.File.SHA != "abc" {
		t.Errorf("SHA = %q, want abc", contents.File.SHA)
	}
	if gotPath != "/repos/alice/notes/contents/content/blog/my%20post.md" {
		t.Errorf("path = %q", gotPath)
	}
	if gotRef != "main" {
		t.Errorf("ref = %q, want main", gotRef)
	}
}

func TestGetContents_Directory(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"type":"file","name":"a.md","path":"content/blog/a.md","sha":"1"},{"type":"dir","name":"drafts","path":"content/blog/drafts","sha":"2"}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server, "test-token")
	contents, err := client.GetContents(context.Background(), "alice", "notes", "content/blog", "")
	if err != nil {
		t.Fatalf("GetContents: %v", err)
	}
	if !contents.IsDir() {
		t.Fatal("directory reported as file")
	}
	if len(contents.Entries) != 2 || contents.Entries[1].Type != "dir" {
		t.Errorf("Entries = %+v", contents.Entries)
	}
}

func TestPutContents_SendsSHAAndMethod(t *testing.T) {
	var method string
	var body PutContentsRequest
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":{"type":"file","path":"content/thoughts.json","sha":"new-sha"},"commit":{"sha":"c1"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, "test-token")
	result, err := client.PutContents(context.Background(), "alice", "notes", "content/thoughts.json", PutContentsRequest{
		Message: "Update thoughts",
		Content: "W10=",
		SHA:     "old-sha",
	})
	if err != nil {
		t.Fatalf("PutContents: %v", err)
	}
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if body.SHA != "old-sha" || body.Content != "W10=" {
		t.Errorf("request body = %+v", body)
	}
	if result.Content.SHA != "new-sha" {
		t.Errorf("result sha = %q, want new-sha", result.Content.SHA)
	}
}

func TestDeleteContents(t *testing.T) {
	var method string
	var body DeleteContentsRequest
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"content":null,"commit":{"sha":"c2"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, "test-token")
	err := client.DeleteContents(context.Background(), "alice", "notes", "content/blog/a.md", DeleteContentsRequest{
		Message: "Delete a",
		SHA:     "sha-a",
	})
	if err != nil {
		t.Fatalf("DeleteContents: %v", err)
	}
	if method != http.MethodDelete || body.SHA != "sha-a" {
		t.Errorf("method = %s, body = %+v", method, body)
	}
}

func TestGetTree_Recursive(t *testing.T) {
	var query string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"sha":"t","tree":[{"path":"content/blog/a.md","type":"blob","sha":"1"}],"truncated":false}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, "test-token")
	tree, err := client.GetTree(context.Background(), "alice", "notes", "main", true)
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	if query != "recursive=1" {
		t.Errorf("query = %q, want recursive=1", query)
	}
	if len(tree.Entries) != 1 || tree.Entries[0].Path != "content/blog/a.md" {
		t.Errorf("Entries = %+v", tree.Entries)
	}
}
