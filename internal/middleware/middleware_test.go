package middleware

import (
	"encoding/json"
	"testing"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/httpcontext"
)

type stubVerifier map[string]error

func (s stubVerifier) Verify(raw string) (string, error) {
	if err, ok := s[raw]; ok && err != nil {
		return "", err
	}
	if _, ok := s[raw]; ok {
		return "user-" + raw, nil
	}
	return "", domain.ErrTokenInvalid
}

func TestJWTAuth(t *testing.T) {
	verifier := stubVerifier{"good": nil, "old": domain.ErrTokenExpired}

	cases := map[string]struct {
		header     string
		wantStatus int
		wantReason string
	}{
		"missing header":   {header: "", wantStatus: fasthttp.StatusUnauthorized, wantReason: "missing"},
		"wrong scheme":     {header: "Token good", wantStatus: fasthttp.StatusUnauthorized, wantReason: "malformed"},
		"bare token":       {header: "good", wantStatus: fasthttp.StatusUnauthorized, wantReason: "malformed"},
		"empty bearer":     {header: "Bearer ", wantStatus: fasthttp.StatusUnauthorized, wantReason: "malformed"},
		"invalid token":    {header: "Bearer forged", wantStatus: fasthttp.StatusUnauthorized, wantReason: "invalid"},
		"expired token":    {header: "Bearer old", wantStatus: fasthttp.StatusUnauthorized, wantReason: "expired"},
		"valid token":      {header: "Bearer good", wantStatus: fasthttp.StatusOK},
		"lowercase scheme": {header: "bearer good", wantStatus: fasthttp.StatusUnauthorized, wantReason: "malformed"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			var seenUser string
			handler := JWTAuth(verifier, zap.New(core))(func(ctx *fasthttp.RequestCtx) {
				seenUser = httpcontext.UserID(ctx)
				ctx.SetStatusCode(fasthttp.StatusOK)
			})

			var ctx fasthttp.RequestCtx
			if tc.header != "" {
				ctx.Request.Header.Set(fasthttp.HeaderAuthorization, tc.header)
			}
			handler(&ctx)

			if got := ctx.Response.StatusCode(); got != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, got)
			}
			if tc.wantStatus == fasthttp.StatusOK {
				if seenUser != "user-good" {
					t.Fatalf("expected user-good on request, got %q", seenUser)
				}
				return
			}

			var env transport.Envelope
			if err := json.Unmarshal(ctx.Response.Body(), &env); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if env.Status != "error" || env.Code != string(domain.ErrCodeUnauthorized) {
				t.Fatalf("unexpected envelope %+v", env)
			}
			entries := logs.FilterField(zap.String("reason", tc.wantReason)).All()
			if len(entries) != 1 {
				t.Fatalf("expected one log entry with reason %q, got %d", tc.wantReason, len(entries))
			}
			for _, f := range entries[0].Context {
				if f.Key == "token" || f.Key == "authorization" {
					t.Fatal("token must not be logged")
				}
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	handler := CORS([]string{"https://app.example.com"})(func(ctx *fasthttp.RequestCtx) {
		called = true
	})

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodOptions)
	ctx.Request.Header.Set(fasthttp.HeaderOrigin, "https://app.example.com")
	ctx.Request.Header.Set(fasthttp.HeaderAccessControlRequestMethod, fasthttp.MethodPost)
	handler(&ctx)

	if called {
		t.Fatal("preflight must not reach the handler")
	}
	if ctx.Response.StatusCode() != fasthttp.StatusNoContent {
		t.Fatalf("expected 204, got %d", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Header.Peek(fasthttp.HeaderAccessControlAllowOrigin)); got != "https://app.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if got := string(ctx.Response.Header.Peek(fasthttp.HeaderAccessControlAllowHeaders)); got != corsAllowHeaders {
		t.Fatalf("unexpected allow headers %q", got)
	}
}

func TestCORSOrigins(t *testing.T) {
	cases := map[string]struct {
		allowed []string
		origin  string
		want    string
	}{
		"wildcard":         {allowed: []string{"*"}, origin: "https://any.example", want: "*"},
		"listed":           {allowed: []string{"https://a.example/"}, origin: "https://a.example", want: "https://a.example"},
		"not listed":       {allowed: []string{"https://a.example"}, origin: "https://evil.example", want: ""},
		"no origin header": {allowed: []string{"*"}, origin: "", want: ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			handler := CORS(tc.allowed)(func(ctx *fasthttp.RequestCtx) {
				ctx.SetStatusCode(fasthttp.StatusOK)
			})
			var ctx fasthttp.RequestCtx
			if tc.origin != "" {
				ctx.Request.Header.Set(fasthttp.HeaderOrigin, tc.origin)
			}
			handler(&ctx)
			if got := string(ctx.Response.Header.Peek(fasthttp.HeaderAccessControlAllowOrigin)); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAccessLogRecordsRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := Chain(func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusCreated)
	}, AccessLog(zap.New(core)))

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetRequestURI("/api/tasks")
	handler(&ctx)

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one access log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(fasthttp.StatusCreated) || fields["path"] != "/api/tasks" || fields["method"] != "POST" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if fields["request_id"] == "" || len(ctx.Response.Header.Peek(httpcontext.HeaderRequestID)) == 0 {
		t.Fatal("expected a request id")
	}
}
