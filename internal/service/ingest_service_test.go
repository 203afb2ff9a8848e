package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/liliang-cn/docqa/internal/config"
	"github.com/liliang-cn/docqa/internal/domain"
)

// threePageDocument has the code on its second page only
func threePageDocument() []byte {
	filler := strings.Repeat("Lorem ipsum dolor sit amet, consectetur adipiscing elit. ", 18)
	pages := []string{
		"Page one.\n\n" + filler,
		"Page two.\n\n" + filler + "\n\nThe secret code is ZX-492.\n\n" + filler,
		"Page three.\n\n" + filler,
	}
	return []byte(strings.Join(pages, "\n\n"))
}

func TestResolveAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		form       string
		want       string
		wantErr    error
	}{
		{"form wins", "sk-env", " sk-form ", "sk-form", nil},
		{"blank form falls back", "sk-env", "  ", "sk-env", nil},
		{"placeholder falls back", "sk-env", "string", "sk-env", nil},
		{"placeholder any case", "sk-env", "STRING", "sk-env", nil},
		{"nothing anywhere", "", "", "", domain.ErrMissingCredential},
		{"placeholder only", "", "string", "", domain.ErrMissingCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *config.Config) { c.LLM.APIKey = tt.configured })
			got, err := h.ingest.ResolveAPIKey(tt.form)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmbedAllRespectsBatchSize(t *testing.T) {
	for _, tt := range []struct {
		texts int
		calls int
		last  int
	}{
		{1000, 20, 50},
		{1001, 21, 1},
		{49, 1, 49},
	} {
		h := newHarness(t, nil)
		texts := make([]string, tt.texts)
		for i := range texts {
			texts[i] = fmt.Sprintf("chunk %d", i)
		}

		vecs, err := h.ingest.embedAll(context.Background(), h.client, texts)
		if err != nil {
			t.Fatalf("%d texts: %v", tt.texts, err)
		}
		if len(vecs) != tt.texts {
			t.Errorf("%d texts: got %d vectors", tt.texts, len(vecs))
		}
		if len(h.client.batchSizes) != tt.calls {
			t.Fatalf("%d texts: %d embedding calls, want %d", tt.texts, len(h.client.batchSizes), tt.calls)
		}
		for i, n := range h.client.batchSizes {
			if n > 50 {
				t.Errorf("%d texts: batch %d has %d inputs", tt.texts, i, n)
			}
		}
		if got := h.client.batchSizes[len(h.client.batchSizes)-1]; got != tt.last {
			t.Errorf("%d texts: last batch = %d, want %d", tt.texts, got, tt.last)
		}
	}
}

func TestUploadThenAskFindsCode(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.LLM.APIKey = "sk-env" })

	sess, err := h.ingest.Upload(context.Background(), UploadRequest{Filename: "handbook.txt", Content: threePageDocument()})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if sess.ID == "" || sess.Filename != "handbook.txt" || sess.ChunkCount < 3 {
		t.Fatalf("session = %+v", sess)
	}
	if sess.ExpiresAt.IsZero() {
		t.Error("session has no expiry")
	}

	ans, err := h.qa.Ask(context.Background(), sess.ID, "What is the secret code?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Answer != "The secret code is ZX-492." {
		t.Errorf("answer = %q", ans.Answer)
	}
	if ans.Context == "" {
		t.Error("empty context")
	}

	prompt := h.client.prompts[len(h.client.prompts)-1]
	if prompt[0].Role != domain.RoleSystem || prompt[0].Content != SystemPrompt {
		t.Errorf("system message = %+v", prompt[0])
	}
	if !strings.HasPrefix(prompt[1].Content, "Question: What is the secret code?\n\nContext: ") {
		t.Errorf("user message = %q", prompt[1].Content)
	}
	if !strings.Contains(prompt[1].Content, "ZX-492") {
		t.Error("retrieved context does not include the code")
	}

	msgs, err := h.qa.History(sess.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != domain.RoleUser || msgs[1].Content != ans.Answer {
		t.Errorf("history = %+v", msgs)
	}
}

func TestUploadLogsSplitter(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.LLM.APIKey = "sk-env" })
	if _, err := h.ingest.Upload(context.Background(), UploadRequest{Filename: "notes.txt", Content: []byte("The secret code is ZX-492.")}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	entries := h.logs.FilterMessage("Document indexed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d indexing log entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["splitter"]; got != "recursive" {
		t.Errorf("splitter field = %v, want recursive", got)
	}
}

type failingSplitter struct{}

func (failingSplitter) Split(string) ([]string, error) { return nil, errors.New("splitter broke") }
func (failingSplitter) Name() string { return "failing" }

func TestUploadSplitterFailure(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.LLM.APIKey = "sk-env" })
	h.ingest.splitter = failingSplitter{}

	if _, err := h.ingest.Upload(context.Background(), UploadRequest{Filename: "notes.txt", Content: []byte("hello")}); err == nil {
		t.Fatal("expected splitter error")
	}
	if h.sessions.Len() != 0 || h.client.embedCalls() != 0 {
		t.Errorf("sessions = %d, embed calls = %d after splitter failure", h.sessions.Len(), h.client.embedCalls())
	}
}

func TestUploadWithoutCredentialCreatesNothing(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.ingest.Upload(context.Background(), UploadRequest{Filename: "a.txt", Content: []byte("hello")})
	if !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
	if h.sessions.Len() != 0 || len(h.factory.keys) != 0 {
		t.Errorf("upload without credential left state: sessions=%d clients=%d", h.sessions.Len(), len(h.factory.keys))
	}
	if _, err := h.qa.Ask(context.Background(), "3f2b8f3e-7c1a-4d9e-9a55-2f1a8c0b6d11", "hi"); !errors.Is(err, domain.ErrUnknownSession) {
		t.Errorf("ask err = %v, want ErrUnknownSession", err)
	}
}

func TestUploadKeyIsScopedToSession(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-process")
	h := newHarness(t, func(c *config.Config) { c.LLM.APIKey = "sk-process" })

	if _, err := h.ingest.Upload(context.Background(), UploadRequest{Filename: "a.txt", Content: []byte("hello world"), APIKey: "sk-caller"}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(h.factory.keys) != 1 || h.factory.keys[0] != "sk-caller" {
		t.Errorf("client keys = %v, want [sk-caller]", h.factory.keys)
	}
	if got := os.Getenv("OPENAI_API_KEY"); got != "sk-process" {
		t.Errorf("process environment changed to %q", got)
	}
}

func TestUploadFailuresLeaveNoSession(t *testing.T) {
	small := func(c *config.Config) {
		c.LLM.APIKey = "sk-env"
		c.RAG.ChunkSize = 60
		c.RAG.ChunkOverlap = 0
		c.RAG.EmbedBatchSize = 2
	}
	doc := []byte(strings.Repeat("Several words make up this sentence here. ", 20))

	tests := []struct {
		name    string
		setup   func(*fakeClient)
		wantErr error
	}{
		{"second batch errors", func(c *fakeClient) { c.failOnCall = 2 }, errBatch},
		{"short batch", func(c *fakeClient) { c.shortBy = 1 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, small)
			tt.setup(h.client)

			_, err := h.ingest.Upload(context.Background(), UploadRequest{Filename: "doc.txt", Content: doc})
			if err == nil {
				t.Fatal("expected upload to fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if h.sessions.Len() != 0 {
				t.Errorf("%d sessions registered after failure", h.sessions.Len())
			}
			if n, _ := h.history.CountSessions(); n != 0 {
				t.Errorf("%d sessions recorded after failure", n)
			}
		})
	}
}

func TestUploadRejectsBadDocuments(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.LLM.APIKey = "sk-env" })

	tests := []struct {
		filename string
		content  []byte
		wantErr  error
	}{
		{"data.csv", []byte("a,b"), domain.ErrUnsupportedFormat},
		{"blank.txt", []byte("   \n\t"), domain.ErrEmptyDocument},
		{"", []byte("x"), domain.ErrInvalidRequest},
	}
	for _, tt := range tests {
		_, err := h.ingest.Upload(context.Background(), UploadRequest{Filename: tt.filename, Content: tt.content})
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%q: err = %v, want %v", tt.filename, err, tt.wantErr)
		}
	}
	if h.client.embedCalls() != 0 {
		t.Errorf("%d embedding calls for rejected documents", h.client.embedCalls())
	}
}

func TestConcurrentUploadsGetDistinctSessions(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.LLM.APIKey = "sk-env" })

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := h.ingest.Upload(context.Background(), UploadRequest{
				Filename: fmt.Sprintf("doc-%d.txt", i),
				Content:  []byte(fmt.Sprintf("document number %d", i)),
			})
			if err != nil {
				t.Errorf("upload %d: %v", i, err)
				return
			}
			ids[i] = sess.ID
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" || seen[id] {
			t.Fatalf("duplicate or missing session id in %v", ids)
		}
		seen[id] = true
	}
	if h.sessions.Len() != n {
		t.Errorf("live sessions = %d, want %d", h.sessions.Len(), n)
	}
}
