package convert_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Maria-the2nd/flow-stach-sub004/convert"
	"github.com/Maria-the2nd/flow-stach-sub004/page"
	"github.com/Maria-the2nd/flow-stach-sub004/webflow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func serviceDocument(t *testing.T) string {
	t.Helper()
	doc := webflow.NewDocument()
	doc.Payload.Nodes = append(doc.Payload.Nodes, webflow.Node{ID: "svc-1", Type: webflow.NodeBlock, Tag: "div"})
	raw, err := doc.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func TestGenerate_Success(t *testing.T) {
	inner := serviceDocument(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var req convert.GenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.SectionName != "hero" {
			t.Errorf("section name = %q", req.SectionName)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"webflowJson": inner})
	}))
	defer srv.Close()

	client := convert.NewClient(srv.URL, "", 0, zap.NewNop())
	doc, err := client.Generate(context.Background(), convert.GenRequest{HTML: "<div>x</div>", SectionName: "hero"})
	if err != nil {
		t.Fatal(err)
	}
	if doc.NodeByID("svc-1") == nil {
		t.Error("service document lost in transit")
	}
}

func TestGenerate_BearerToken(t *testing.T) {
	inner := serviceDocument(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"webflowJson": inner})
	}))
	defer srv.Close()

	client := convert.NewClient(srv.URL, "sk-test", 0, zap.NewNop())
	if _, err := client.Generate(context.Background(), convert.GenRequest{HTML: "<div>x</div>"}); err != nil {
		t.Fatal(err)
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"empty document", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"webflowJson": ""}`))
		}},
		{"bad shape", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"webflowJson": "{\"type\": \"wrong\"}"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := convert.NewClient(srv.URL, "", 0, zap.NewNop())
			_, err := client.Generate(context.Background(), convert.GenRequest{HTML: "<div>x</div>"})
			if !errors.Is(err, convert.ErrGeneration) {
				t.Errorf("err = %v, want ErrGeneration", err)
			}
		})
	}
}

func TestGenerate_Disabled(t *testing.T) {
	client := convert.NewClient("", "", 0, nil)
	if client.Enabled() {
		t.Error("client with no endpoint reports enabled")
	}
	if _, err := client.Generate(context.Background(), convert.GenRequest{}); !errors.Is(err, convert.ErrGeneration) {
		t.Errorf("err = %v, want ErrGeneration", err)
	}
}

func TestConvertSection_FallsBackToBuilder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sec := page.Section{Name: "hero", HTML: `<section class="hero"><p>x</p></section>`, ClassNames: []string{"hero"}}
	client := convert.NewClient(srv.URL, "", 0, zap.NewNop())
	builder := convert.NewBuilder(zap.NewNop())

	doc, _ := convert.ConvertSection(context.Background(), sec, client, builder, buildOptions(), zap.NewNop())
	if !doc.Valid() {
		t.Fatal("fallback did not produce a valid document")
	}
	if len(doc.Payload.Nodes) == 0 {
		t.Error("fallback produced no nodes")
	}
}

func TestConvertSection_PrefersService(t *testing.T) {
	inner := serviceDocument(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"webflowJson": inner})
	}))
	defer srv.Close()

	sec := page.Section{Name: "hero", HTML: `<section class="hero"><p>x</p></section>`}
	client := convert.NewClient(srv.URL, "", 0, zap.NewNop())
	builder := convert.NewBuilder(zap.NewNop())

	doc, _ := convert.ConvertSection(context.Background(), sec, client, builder, buildOptions(), zap.NewNop())
	if doc.NodeByID("svc-1") == nil {
		t.Error("service result discarded despite success")
	}
}
