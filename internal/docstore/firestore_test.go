package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const docsPath = "/projects/demo/databases/(default)/documents"

func newTestFirestore(t *testing.T, h http.HandlerFunc) *Firestore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	f, err := NewFirestore("demo", nil,
		WithHTTPClient(srv.Client()),
		WithBaseURL(srv.URL),
		WithRateLimit(0),
		WithBackoff(func(int) time.Duration { return 0 }),
	)
	if err != nil {
		t.Fatalf("NewFirestore: %v", err)
	}
	return f
}

func TestNewFirestore_Validation(t *testing.T) {
	if _, err := NewFirestore("", nil, WithHTTPClient(http.DefaultClient)); err == nil {
		t.Error("NewFirestore should reject an empty project")
	}
	if _, err := NewFirestore("demo", nil); err == nil {
		t.Error("NewFirestore should require a token source or HTTP client")
	}
}

func TestList_FollowsPageTokens(t *testing.T) {
	var calls int
	f := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != docsPath+"/users" {
			t.Errorf("path = %q", r.URL.Path)
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"documents":[{"name":"projects/demo/databases/(default)/documents/users/u1","fields":{"name":{"stringValue":"Alice"}}}],"nextPageToken":"p2"}`)
		case "p2":
			fmt.Fprint(w, `{"documents":[{"name":"projects/demo/databases/(default)/documents/users/u2","fields":{"name":{"stringValue":"Bob"}}}]}`)
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	})

	got, err := f.List(context.Background(), "users")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(got) != 2 || got[0].ID != "u1" || got[1].ID != "u2" || got[1].Name() != "Bob" {
		t.Errorf("List = %+v", got)
	}
}

func TestList_DecodesValueTypes(t *testing.T) {
	f := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"documents":[{"name":"x/users/u1","fields":{
			"s":{"stringValue":"hi"},
			"i":{"integerValue":"42"},
			"d":{"doubleValue":1.5},
			"b":{"booleanValue":true},
			"n":{"nullValue":null},
			"t":{"timestampValue":"2024-01-02T03:04:05.123Z"},
			"m":{"mapValue":{"fields":{"k":{"stringValue":"v"}}}},
			"a":{"arrayValue":{"values":[{"integerValue":"1"},{"stringValue":"two"}]}},
			"empty":{"arrayValue":{}}
		}}]}`)
	})

	got, err := f.List(context.Background(), "users")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := map[string]any{
		"s":     "hi",
		"i":     int64(42),
		"d":     1.5,
		"b":     true,
		"n":     nil,
		"t":     time.Date(2024, 1, 2, 3, 4, 5, 123000000, time.UTC),
		"m":     map[string]any{"k": "v"},
		"a":     []any{int64(1), "two"},
		"empty": []any{},
	}
	if diff := cmp.Diff(want, got[0].Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestQuery_SendsFieldFilter(t *testing.T) {
	f := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != docsPath+":runQuery" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			StructuredQuery struct {
				From []struct {
					CollectionID string `json:"collectionId"`
				} `json:"from"`
				Where struct {
					FieldFilter struct {
						Field struct {
							FieldPath string `json:"fieldPath"`
						} `json:"field"`
						Op    string         `json:"op"`
						Value map[string]any `json:"value"`
					} `json:"fieldFilter"`
				} `json:"where"`
			} `json:"structuredQuery"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		q := body.StructuredQuery
		if len(q.From) != 1 || q.From[0].CollectionID != "event_registrations" {
			t.Errorf("from = %+v", q.From)
		}
		ff := q.Where.FieldFilter
		if ff.Field.FieldPath != "eventId" || ff.Op != "EQUAL" || ff.Value["stringValue"] != "gsoc" {
			t.Errorf("fieldFilter = %+v", ff)
		}
		fmt.Fprint(w, `[{"readTime":"2024-01-01T00:00:00Z"},{"document":{"name":"x/event_registrations/r1","fields":{"eventId":{"stringValue":"gsoc"}}}}]`)
	})

	got, err := f.Query(context.Background(), "event_registrations", "eventId", "gsoc")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Errorf("Query = %+v, want [r1]", got)
	}
}

func TestUpdate_UsesMaskAndPrecondition(t *testing.T) {
	f := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if r.URL.Path != docsPath+"/users/u1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if diff := cmp.Diff([]string{"welcomeEmailSent", "welcomeEmailSentAt"}, q["updateMask.fieldPaths"]); diff != "" {
			t.Errorf("mask mismatch (-want +got):\n%s", diff)
		}
		if q.Get("currentDocument.exists") != "true" {
			t.Error("missing currentDocument.exists precondition")
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"welcomeEmailSent":{"booleanValue":true}`) {
			t.Errorf("body = %s", body)
		}
		if !strings.Contains(string(body), `"welcomeEmailSentAt":{"timestampValue":"2024-06-01T12:00:00Z"}`) {
			t.Errorf("body = %s", body)
		}
		fmt.Fprint(w, `{}`)
	})

	err := f.Update(context.Background(), "users", "u1", map[string]any{
		"welcomeEmailSent":   true,
		"welcomeEmailSentAt": time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	f := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"No document to update","status":"NOT_FOUND"}}`)
	})
	err := f.Update(context.Background(), "users", "gone", map[string]any{"welcomeEmailSent": false})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
}

func TestRequest_RetriesServerErrors(t *testing.T) {
	var calls int
	f := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"documents":[]}`)
	})
	if _, err := f.List(context.Background(), "users"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRequest_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int
	f := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down","status":"RESOURCE_EXHAUSTED"}}`)
	})
	_, err := f.List(context.Background(), "users")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != "RESOURCE_EXHAUSTED" {
		t.Fatalf("err = %v, want wrapped *APIError", err)
	}
	if calls != maxRetries+1 {
		t.Errorf("calls = %d, want %d", calls, maxRetries+1)
	}
}

func TestRequest_ClientErrorNotRetried(t *testing.T) {
	var calls int
	f := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"message":"Missing or insufficient permissions.","status":"PERMISSION_DENIED"}}`)
	})
	_, err := f.List(context.Background(), "users")
	if err == nil || !strings.Contains(err.Error(), "insufficient permissions") {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBatchUpdate_ChunksCommits(t *testing.T) {
	var mu sync.Mutex
	var sizes []int
	f := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != docsPath+":commit" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			Writes []struct {
				Update struct {
					Name string `json:"name"`
				} `json:"update"`
				UpdateMask struct {
					FieldPaths []string `json:"fieldPaths"`
				} `json:"updateMask"`
				CurrentDocument struct {
					Exists bool `json:"exists"`
				} `json:"currentDocument"`
			} `json:"writes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		w0 := body.Writes[0]
		if !strings.HasPrefix(w0.Update.Name, "projects/demo/databases/(default)/documents/users/") {
			t.Errorf("write name = %q", w0.Update.Name)
		}
		if !w0.CurrentDocument.Exists || len(w0.UpdateMask.FieldPaths) != 2 {
			t.Errorf("write = %+v", w0)
		}
		mu.Lock()
		sizes = append(sizes, len(body.Writes))
		mu.Unlock()
		fmt.Fprint(w, `{"writeResults":[]}`)
	})

	ids := make([]string, 1200)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%d", i)
	}
	err := f.BatchUpdate(context.Background(), "users", ids, map[string]any{"welcomeEmailSent": true, "welcomeEmailSentAt": nil})
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}
	if diff := cmp.Diff([]int{500, 500, 200}, sizes); diff != "" {
		t.Errorf("commit sizes (-want +got):\n%s", diff)
	}
}

func TestBatchUpdate_PartialFailure(t *testing.T) {
	var calls int
	f := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"bad write","status":"INVALID_ARGUMENT"}}`)
			return
		}
		fmt.Fprint(w, `{}`)
	})

	ids := make([]string, 700)
	for i := range ids {
		ids[i] = fmt.Sprintf("r%d", i)
	}
	err := f.BatchUpdate(context.Background(), "event_registrations", ids, map[string]any{"seminarEmailSent": true})
	var partial *PartialError
	if !errors.As(err, &partial) {
		t.Fatalf("err = %v, want *PartialError", err)
	}
	if len(partial.Committed) != 500 || len(partial.Failed) != 200 {
		t.Errorf("committed=%d failed=%d, want 500/200", len(partial.Committed), len(partial.Failed))
	}
	if partial.Failed[0] != "r500" {
		t.Errorf("first failed id = %s, want r500", partial.Failed[0])
	}
}

func TestBatchUpdate_FirstCommitFailureIsNotPartial(t *testing.T) {
	f := newTestFirestore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"nope"}}`)
	})
	err := f.BatchUpdate(context.Background(), "users", []string{"u1", "u2"}, map[string]any{"welcomeEmailSent": true})
	if err == nil {
		t.Fatal("expected error")
	}
	var partial *PartialError
	if errors.As(err, &partial) {
		t.Error("failure before any commit should not be partial")
	}
}

func TestQuoteFieldPath(t *testing.T) {
	tests := map[string]string{
		"email":      "email",
		"_private":   "_private",
		"with-dash":  "`with-dash`",
		"has space":  "`has space`",
		"2startsNum": "`2startsNum`",
	}
	for in, want := range tests {
		if got := quoteFieldPath(in); got != want {
			t.Errorf("quoteFieldPath(%q) = %q, want %q", in, got, want)
		}
	}
}
