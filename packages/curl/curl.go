// Package curl parses curl command lines so they can be sent with hitexec.
package curl

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Command is a parsed curl invocation.
type Command struct {
	Method          string
	URL             string
	Headers         map[string]string
	Body            string
	Form            []string // name=value or name=@file, in order
	User            string   // user:password
	Insecure        bool
	FollowRedirects bool
	Proxy           string
	MaxTime         string // seconds, as given
}

// Auth returns the credentials as an auth description ("basic user pass"),
// or "" when the command carries none.
func (c *Command) Auth() string {
	if c.User == "" {
		return ""
	}
	user, pass, _ := strings.Cut(c.User, ":")
	return "basic " + user + " " + pass
}

// Read joins backslash continued lines from r into one command, skipping
// blank lines and # comments. Only the first command is returned.
func Read(r io.Reader) (string, error) {
	var cmd strings.Builder
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			if cmd.Len() > 0 {
				break
			}
			continue
		}

		if strings.HasSuffix(line, "\\") {
			cmd.WriteString(strings.TrimSuffix(line, "\\"))
			cmd.WriteString(" ")
			continue
		}

		cmd.WriteString(line)
		break
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read curl command: %w", err)
	}
	if cmd.Len() == 0 {
		return "", fmt.Errorf("no curl command found")
	}
	return strings.TrimSpace(cmd.String()), nil
}

// Parse parses a curl command line. Unknown flags are skipped.
func Parse(line string) (*Command, error) {
	cmd := &Command{
		Headers: make(map[string]string),
	}

	tokens := tokenize(strings.TrimSpace(line))
	if len(tokens) > 0 && tokens[0] == "curl" {
		tokens = tokens[1:]
	}

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		value := func() (string, error) {
			if i+1 >= len(tokens) {
				return "", fmt.Errorf("missing value for %s", token)
			}
			i++
			return tokens[i], nil
		}

		switch token {
		case "-X", "--request":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cmd.Method = strings.ToUpper(v)

		case "-H", "--header":
			v, err := value()
			if err != nil {
				return nil, err
			}
			if name, val, ok := strings.Cut(v, ":"); ok {
				cmd.Headers[strings.TrimSpace(name)] = strings.TrimSpace(val)
			}

		case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii":
			v, err := value()
			if err != nil {
				return nil, err
			}
			if cmd.Body != "" {
				cmd.Body += "&" + v
			} else {
				cmd.Body = v
			}

		case "--json":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cmd.Body = v
			setDefault(cmd.Headers, "Content-Type", "application/json")
			setDefault(cmd.Headers, "Accept", "application/json")

		case "-F", "--form", "--form-string":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cmd.Form = append(cmd.Form, v)

		case "-u", "--user":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cmd.User = v

		case "-A", "--user-agent":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cmd.Headers["User-Agent"] = v

		case "-e", "--referer":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cmd.Headers["Referer"] = v

		case "-b", "--cookie":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cmd.Headers["Cookie"] = v

		case "-x", "--proxy":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cmd.Proxy = v

		case "-m", "--max-time":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cmd.MaxTime = v

		case "--url":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cmd.URL = v

		case "-k", "--insecure":
			cmd.Insecure = true

		case "-L", "--location":
			cmd.FollowRedirects = true

		default:
			if strings.HasPrefix(token, "-") {
				// Skip unknown flags with potential values
				if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") && !isURL(tokens[i+1]) {
					i++
				}
				continue
			}
			if cmd.URL == "" && isURL(token) {
				cmd.URL = token
			}
		}
	}

	if cmd.URL == "" {
		return nil, fmt.Errorf("no URL found in curl command")
	}
	if cmd.Body != "" && len(cmd.Form) > 0 {
		return nil, fmt.Errorf("curl command mixes --data and --form")
	}

	if cmd.Method == "" {
		cmd.Method = "GET"
		if cmd.Body != "" || len(cmd.Form) > 0 {
			cmd.Method = "POST"
		}
	}
	if cmd.Body != "" && len(cmd.Form) == 0 && !strings.HasPrefix(cmd.Body, "@") {
		if _, ok := cmd.Headers["Content-Type"]; !ok && !looksLikeJSON(cmd.Body) {
			cmd.Headers["Content-Type"] = "application/x-www-form-urlencoded"
		}
	}

	return cmd, nil
}

func setDefault(headers map[string]string, key, value string) {
	if _, ok := headers[key]; !ok {
		headers[key] = value
	}
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// tokenize splits a command line into tokens, respecting quotes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	escaped := false
	quoted := false

	flush := func() {
		if current.Len() > 0 || quoted {
			tokens = append(tokens, current.String())
			current.Reset()
		}
		quoted = false
	}

	for _, r := range cmd {
		if escaped {
			// a backslash before a newline continues the line
			if r != '\n' {
				current.WriteRune(r)
			}
			escaped = false
			continue
		}

		switch r {
		case '\\':
			if inSingleQuote {
				current.WriteRune(r)
			} else {
				escaped = true
			}
		case '\'':
			if inDoubleQuote {
				current.WriteRune(r)
			} else {
				inSingleQuote = !inSingleQuote
				quoted = true
			}
		case '"':
			if inSingleQuote {
				current.WriteRune(r)
			} else {
				inDoubleQuote = !inDoubleQuote
				quoted = true
			}
		case ' ', '\t', '\n', '\r':
			if inSingleQuote || inDoubleQuote {
				current.WriteRune(r)
			} else {
				flush()
			}
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return tokens
}

// isURL checks if a string looks like a URL.
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
