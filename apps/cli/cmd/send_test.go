package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitexec/packages/executor"
	"github.com/abdul-hamid-achik/hitexec/packages/history"
	"github.com/abdul-hamid-achik/hitexec/packages/output"
)

func TestBuildRequest(t *testing.T) {
	t.Run("defaults to GET", func(t *testing.T) {
		req, payload, err := buildRequest("http://example.com", sendOptions{})
		require.NoError(t, err)
		assert.Equal(t, "GET", req.Method)
		assert.IsType(t, executor.Plain{}, payload)
	})

	t.Run("defaults to POST with a body", func(t *testing.T) {
		req, _, err := buildRequest("http://example.com", sendOptions{data: `{"a":1}`})
		require.NoError(t, err)
		assert.Equal(t, "POST", req.Method)
		assert.Equal(t, "application/json", req.Header("Content-Type"))
		assert.Equal(t, `{"a":1}`, string(req.Body))
	})

	t.Run("explicit method and headers", func(t *testing.T) {
		req, _, err := buildRequest("http://example.com", sendOptions{
			method:  "put",
			headers: []string{"X-Token: abc", "Content-Type: text/plain"},
			data:    "hello",
		})
		require.NoError(t, err)
		assert.Equal(t, "PUT", req.Method)
		assert.Equal(t, "abc", req.Header("X-Token"))
		assert.Equal(t, "text/plain", req.Header("Content-Type"))
	})

	t.Run("body from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "body.txt")
		require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))

		req, _, err := buildRequest("http://example.com", sendOptions{data: "@" + path})
		require.NoError(t, err)
		assert.Equal(t, "plain text", string(req.Body))
		assert.Empty(t, req.Header("Content-Type"))
	})

	t.Run("missing body file", func(t *testing.T) {
		_, _, err := buildRequest("http://example.com", sendOptions{data: "@/does/not/exist"})
		assert.Error(t, err)
	})

	t.Run("invalid header", func(t *testing.T) {
		_, _, err := buildRequest("http://example.com", sendOptions{headers: []string{"no-colon"}})
		assert.Error(t, err)
	})

	t.Run("form fields make a multipart payload", func(t *testing.T) {
		req, payload, err := buildRequest("http://example.com", sendOptions{form: []string{"a=1"}})
		require.NoError(t, err)
		assert.Equal(t, "POST", req.Method)
		assert.IsType(t, executor.Multipart{}, payload)
	})
}

func TestFormSupplier(t *testing.T) {
	t.Run("rejects malformed fields", func(t *testing.T) {
		_, err := formSupplier([]string{"novalue"})
		assert.Error(t, err)

		_, err = formSupplier([]string{"=value"})
		assert.Error(t, err)
	})

	t.Run("opens files lazily", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "later.txt")

		supplier, err := formSupplier([]string{"title=report", "file=@" + path})
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path, []byte("created after parsing"), 0644))

		parts, err := supplier()
		require.NoError(t, err)
		require.Len(t, parts, 2)
		assert.Equal(t, int64(len("created after parsing")), parts[1].Length)
		closeReaders(parts)
	})

	t.Run("missing file fails at supply time", func(t *testing.T) {
		supplier, err := formSupplier([]string{"title=report", "file=@/does/not/exist"})
		require.NoError(t, err)

		_, err = supplier()
		assert.Error(t, err)
	})
}

func TestBuildValidations(t *testing.T) {
	rules, err := buildValidations(sendOptions{
		expectType: "application/json",
		expectBody: []string{"ok"},
		expectJSON: []string{"id=1", "name"},
		maxTime:    "2s",
	})
	require.NoError(t, err)
	assert.Len(t, rules, 5)

	_, err = buildValidations(sendOptions{expectJSON: []string{"=1"}})
	assert.Error(t, err)

	_, err = buildValidations(sendOptions{maxTime: "soon"})
	assert.Error(t, err)

	_, err = buildValidations(sendOptions{schema: "/does/not/exist.json"})
	assert.Error(t, err)
}

func TestParseExpected(t *testing.T) {
	assert.Equal(t, float64(1), parseExpected("1"))
	assert.Equal(t, true, parseExpected("true"))
	assert.Nil(t, parseExpected("null"))
	assert.Equal(t, "quoted", parseExpected(`"quoted"`))
	assert.Equal(t, "ada", parseExpected("ada"))
}

func TestResolveConfig(t *testing.T) {
	t.Run("applies the default status range", func(t *testing.T) {
		cfg, err := resolveConfig(sendOptions{config: writeConfig(t, "timeout: 5000\n")})
		require.NoError(t, err)
		assert.Equal(t, defaultExpectStatus, cfg.StatusCodes)
		assert.Equal(t, 5*time.Second, cfg.TimeoutDuration())
	})

	t.Run("flags override the file", func(t *testing.T) {
		cfg, err := resolveConfig(sendOptions{
			config:       writeConfig(t, "timeout: 5000\nstatusCodes: \"200\"\n"),
			timeout:      "2s",
			expectStatus: "2xx",
			insecure:     true,
			requestID:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, cfg.TimeoutDuration())
		assert.Equal(t, "2xx", cfg.StatusCodes)
		assert.False(t, cfg.GetValidateSSL())
		assert.True(t, cfg.GetRequestID())
	})

	t.Run("invalid timeout", func(t *testing.T) {
		_, err := resolveConfig(sendOptions{config: writeConfig(t, "{}\n"), timeout: "later"})
		assert.Error(t, err)
	})

	t.Run("invalid auth", func(t *testing.T) {
		_, err := resolveConfig(sendOptions{config: writeConfig(t, "{}\n"), auth: "kerberos x"})
		assert.Error(t, err)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := resolveConfig(sendOptions{config: filepath.Join(t.TempDir(), "missing.yaml")})
		assert.Error(t, err)
	})
}

func TestSend(t *testing.T) {
	var counter atomic.Int64
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/users/1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":1,"name":"ada"}`))
		case "/upload":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				w.WriteHeader(nethttp.StatusBadRequest)
				return
			}
			file, _, err := r.FormFile("file")
			if err != nil {
				w.WriteHeader(nethttp.StatusBadRequest)
				return
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			_, _ = w.Write([]byte(r.FormValue("title") + ":" + string(data)))
		case "/counter":
			n := counter.Add(1)
			_, _ = fmt.Fprintf(w, `{"count":%d}`, n)
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		default:
			w.WriteHeader(nethttp.StatusNotFound)
		}
	}))
	defer server.Close()

	t.Run("success is recorded in history", func(t *testing.T) {
		db := filepath.Join(t.TempDir(), "history.db")
		var stdout, stderr bytes.Buffer

		err := send(context.Background(), &stdout, &stderr, server.URL+"/users/1", sendOptions{
			config:     writeConfig(t, "{}\n"),
			output:     "json",
			expectJSON: []string{"id=1", "name=ada"},
			history:    db,
			repeat:     1,
		})
		require.NoError(t, err)

		var line output.JSONExchange
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &line))
		require.NotNil(t, line.Response)
		assert.Equal(t, 200, line.Response.StatusCode)
		assert.Nil(t, line.Error)

		store, err := history.Open(db)
		require.NoError(t, err)
		defer store.Close()

		entries, err := store.List(context.Background(), history.Filter{})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 200, entries[0].StatusCode)
	})

	t.Run("status rejection exits with validation failure", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		err := send(context.Background(), &stdout, &stderr, server.URL+"/missing", sendOptions{
			config:  writeConfig(t, "{}\n"),
			output:  "console",
			noColor: true,
		})
		require.Error(t, err)
		assert.Equal(t, ExitValidationFailure, ExitCode(err))
		assert.Contains(t, stdout.String(), "404")
		assert.Contains(t, stdout.String(), "validation")
	})

	t.Run("json field mismatch", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		err := send(context.Background(), &stdout, &stderr, server.URL+"/users/1", sendOptions{
			config:     writeConfig(t, "{}\n"),
			output:     "json",
			expectJSON: []string{"name=grace"},
		})
		assert.Equal(t, ExitValidationFailure, ExitCode(err))
	})

	t.Run("multipart upload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.txt")
		require.NoError(t, os.WriteFile(path, []byte("contents"), 0644))
		var stdout, stderr bytes.Buffer

		err := send(context.Background(), &stdout, &stderr, server.URL+"/upload", sendOptions{
			config:     writeConfig(t, "{}\n"),
			output:     "console",
			noColor:    true,
			verbose:    true,
			form:       []string{"title=q3", "file=@" + path},
			expectBody: []string{"q3:contents"},
		})
		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "q3:contents")
	})

	t.Run("curl command", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		err := send(context.Background(), &stdout, &stderr, "", sendOptions{
			config:     writeConfig(t, "{}\n"),
			output:     "json",
			curl:       "curl " + server.URL + "/users/1",
			expectJSON: []string{"id=1"},
		})
		require.NoError(t, err)
	})

	t.Run("repeat prints a summary", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		err := send(context.Background(), &stdout, &stderr, server.URL+"/users/1", sendOptions{
			config: writeConfig(t, "{}\n"),
			output: "json",
			repeat: 3,
		})
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		require.Len(t, lines, 4)

		var doc map[string]output.JSONSummary
		require.NoError(t, json.Unmarshal([]byte(lines[3]), &doc))
		summary := doc["summary"]
		assert.Equal(t, int64(3), summary.Total)
		assert.Equal(t, int64(3), summary.Success)
	})

	t.Run("diff between repeats", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		err := send(context.Background(), &stdout, &stderr, server.URL+"/counter", sendOptions{
			config:  writeConfig(t, "{}\n"),
			output:  "console",
			noColor: true,
			repeat:  2,
			diff:    true,
		})
		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "body changed:")
		assert.Contains(t, stdout.String(), `-   "count": 1`)
		assert.Contains(t, stdout.String(), `+   "count": 2`)
	})

	t.Run("canceling the context cancels the request", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(100*time.Millisecond, cancel)
		var stdout, stderr bytes.Buffer

		start := time.Now()
		err := send(ctx, &stdout, &stderr, server.URL+"/slow", sendOptions{
			config: writeConfig(t, "{}\n"),
			output: "json",
		})
		assert.Equal(t, ExitCanceled, ExitCode(err))
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	t.Run("connection refused", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		err := send(context.Background(), &stdout, &stderr, "http://127.0.0.1:1/", sendOptions{
			config: writeConfig(t, "{}\n"),
			output: "json",
		})
		assert.Equal(t, ExitNetworkError, ExitCode(err))
	})

	t.Run("usage errors", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		err := send(context.Background(), &stdout, &stderr, "not a url", sendOptions{})
		assert.Equal(t, ExitUsageError, ExitCode(err))

		err = send(context.Background(), &stdout, &stderr, server.URL, sendOptions{data: "x", form: []string{"a=1"}})
		assert.Equal(t, ExitUsageError, ExitCode(err))
	})

	t.Run("config errors", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		err := send(context.Background(), &stdout, &stderr, server.URL, sendOptions{
			config: writeConfig(t, "maxAttempts: -1\n"),
		})
		assert.Equal(t, ExitConfigError, ExitCode(err))
	})
}

func TestApplyCurl(t *testing.T) {
	t.Run("requires a URL or curl", func(t *testing.T) {
		_, _, err := applyCurl("", sendOptions{})
		assert.Error(t, err)
	})

	t.Run("fills options from the command", func(t *testing.T) {
		target, opts, err := applyCurl("", sendOptions{
			curl:    `curl -X PUT -H "X-A: 1" -u ada:pw -k -m 5 -d '{"a":1}' https://api.example.com/x`,
			headers: []string{"X-B: 2"},
		})
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/x", target)
		assert.Equal(t, "PUT", opts.method)
		assert.Equal(t, []string{"X-A: 1", "X-B: 2"}, opts.headers)
		assert.Equal(t, `{"a":1}`, opts.data)
		assert.Equal(t, "basic ada pw", opts.auth)
		assert.Equal(t, "5s", opts.timeout)
		assert.True(t, opts.insecure)
	})

	t.Run("flags win", func(t *testing.T) {
		target, opts, err := applyCurl("http://override.example.com", sendOptions{
			curl:   `curl -X PUT -u ada:pw https://api.example.com/x`,
			method: "PATCH",
			auth:   "bearer tok",
		})
		require.NoError(t, err)
		assert.Equal(t, "http://override.example.com", target)
		assert.Equal(t, "PATCH", opts.method)
		assert.Equal(t, "bearer tok", opts.auth)
	})

	t.Run("reads a command file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "request.sh")
		require.NoError(t, os.WriteFile(path, []byte("curl \\\n  -F a=1 \\\n  https://api.example.com/up\n"), 0644))

		target, opts, err := applyCurl("", sendOptions{curl: "@" + path})
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/up", target)
		assert.Equal(t, []string{"a=1"}, opts.form)
	})

	t.Run("invalid command", func(t *testing.T) {
		_, _, err := applyCurl("", sendOptions{curl: "curl -X"})
		assert.Error(t, err)
	})
}

func TestBodyTracker(t *testing.T) {
	var tracker bodyTracker

	_, ok := tracker.swap([]byte("a"))
	assert.False(t, ok)

	previous, ok := tracker.swap([]byte("b"))
	assert.True(t, ok)
	assert.Equal(t, "a", string(previous))
}

func TestWatchPaths(t *testing.T) {
	paths := watchPaths(sendOptions{
		config: "cfg.yaml",
		data:   "@body.json",
		form:   []string{"a=1", "file=@upload.bin"},
		schema: "schema.json",
	})
	assert.Equal(t, []string{"cfg.yaml", "body.json", "upload.bin", "schema.json"}, paths)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "body.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reruns := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, io.Discard, []string{path}, func() { reruns <- struct{}{} })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"a":1}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))

	select {
	case <-reruns:
	case <-time.After(3 * time.Second):
		t.Fatal("no rerun after write")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchNeedsFiles(t *testing.T) {
	err := watch(context.Background(), io.Discard, nil, func() {})
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".hitexec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
