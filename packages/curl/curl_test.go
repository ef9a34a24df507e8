package curl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SimpleGet(t *testing.T) {
	cmd, err := Parse(`curl https://api.example.com/users`)
	require.NoError(t, err)

	assert.Equal(t, "GET", cmd.Method)
	assert.Equal(t, "https://api.example.com/users", cmd.URL)
	assert.Empty(t, cmd.Auth())
}

func TestParse_PostWithData(t *testing.T) {
	cmd, err := Parse(`curl -X POST https://api.example.com/users -d '{"name":"John"}'`)
	require.NoError(t, err)

	assert.Equal(t, "POST", cmd.Method)
	assert.Equal(t, `{"name":"John"}`, cmd.Body)
	assert.NotContains(t, cmd.Headers, "Content-Type")
}

func TestParse_ImplicitPost(t *testing.T) {
	cmd, err := Parse(`curl -d "name=John" -d "age=3" https://api.example.com/users`)
	require.NoError(t, err)

	assert.Equal(t, "POST", cmd.Method)
	assert.Equal(t, "name=John&age=3", cmd.Body)
	assert.Equal(t, "application/x-www-form-urlencoded", cmd.Headers["Content-Type"])
}

func TestParse_JSONFlag(t *testing.T) {
	cmd, err := Parse(`curl --json '{"a":1}' https://api.example.com`)
	require.NoError(t, err)

	assert.Equal(t, "POST", cmd.Method)
	assert.Equal(t, "application/json", cmd.Headers["Content-Type"])
	assert.Equal(t, "application/json", cmd.Headers["Accept"])
}

func TestParse_WithHeaders(t *testing.T) {
	cmd, err := Parse(`curl -H "Content-Type: application/json" -H "Authorization: Bearer token123" -A agent/1 https://api.example.com/users`)
	require.NoError(t, err)

	assert.Equal(t, "application/json", cmd.Headers["Content-Type"])
	assert.Equal(t, "Bearer token123", cmd.Headers["Authorization"])
	assert.Equal(t, "agent/1", cmd.Headers["User-Agent"])
}

func TestParse_Form(t *testing.T) {
	cmd, err := Parse(`curl -F title=report -F "file=@/tmp/report.pdf" https://api.example.com/upload`)
	require.NoError(t, err)

	assert.Equal(t, "POST", cmd.Method)
	assert.Equal(t, []string{"title=report", "file=@/tmp/report.pdf"}, cmd.Form)
}

func TestParse_MixedDataAndForm(t *testing.T) {
	_, err := Parse(`curl -d a=1 -F b=2 https://api.example.com`)
	assert.Error(t, err)
}

func TestParse_BasicAuth(t *testing.T) {
	cmd, err := Parse(`curl -u admin:password123 https://api.example.com/admin`)
	require.NoError(t, err)

	assert.Equal(t, "basic admin password123", cmd.Auth())
}

func TestParse_Flags(t *testing.T) {
	cmd, err := Parse(`curl -k -L -x http://proxy:8080 -m 5 --compressed https://api.example.com`)
	require.NoError(t, err)

	assert.True(t, cmd.Insecure)
	assert.True(t, cmd.FollowRedirects)
	assert.Equal(t, "http://proxy:8080", cmd.Proxy)
	assert.Equal(t, "5", cmd.MaxTime)
	assert.Equal(t, "https://api.example.com", cmd.URL)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(`curl`)
	assert.Error(t, err)

	_, err = Parse(`curl -X`)
	assert.Error(t, err)

	_, err = Parse(`curl -H "X: 1"`)
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	input := `# create a user
curl -X POST \
  -H 'Content-Type: application/json' \
  -d '{"name":"ada"}' \
  https://api.example.com/users

curl https://api.example.com/other
`
	line, err := Read(strings.NewReader(input))
	require.NoError(t, err)

	cmd, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users", cmd.URL)
	assert.Equal(t, `{"name":"ada"}`, cmd.Body)

	_, err = Read(strings.NewReader("# only a comment\n"))
	assert.Error(t, err)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{`-X POST -d "hello world"`, []string{"-X", "POST", "-d", "hello world"}},
		{`-H 'Content-Type: application/json'`, []string{"-H", "Content-Type: application/json"}},
		{`-d '{"key": "value"}'`, []string{"-d", `{"key": "value"}`}},
		{`-d ''`, []string{"-d", ""}},
		{`-d 'a\b'`, []string{"-d", `a\b`}},
		{"-X GET \\\n https://x", []string{"-X", "GET", "https://x"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tokenize(tt.input), tt.input)
	}
}
