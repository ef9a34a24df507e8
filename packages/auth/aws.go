package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitexec/packages/http"
)

const unsignedPayload = "UNSIGNED-PAYLOAD"

// AWSSigV4 signs every attempt with AWS Signature Version 4.
type AWSSigV4 struct {
	AccessKey    string
	SecretKey    string
	Region       string
	Service      string
	SessionToken string

	// Now defaults to time.Now.
	Now func() time.Time
}

var _ http.RequestInterceptor = (*AWSSigV4)(nil)

func (a *AWSSigV4) Adapt(_ context.Context, req *nethttp.Request) error {
	if a.AccessKey == "" || a.SecretKey == "" {
		return fmt.Errorf("AWS auth credentials not provided")
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	t := now().UTC()
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")

	payloadHash, err := payloadHash(req)
	if err != nil {
		return err
	}

	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)
	if a.SessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", a.SessionToken)
	}

	signedHeaders, canonicalHeaders := canonicalHeaders(req)

	canonicalURI := req.URL.EscapedPath()
	if canonicalURI == "" {
		canonicalURI = "/"
	}

	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI,
		canonicalQueryString(req.URL.Query()),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, a.Region, a.Service)

	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := signatureKey(a.SecretKey, dateStamp, a.Region, a.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	req.Header.Set("Authorization", fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		a.AccessKey, credentialScope, signedHeaders, signature))

	return nil
}

func (a *AWSSigV4) Retry(context.Context, *http.Request, *http.Response, error, int) http.RetryDecision {
	return http.DoNotRetry
}

// payloadHash hashes a replayable body. Streamed bodies are signed as
// unsigned payloads.
func payloadHash(req *nethttp.Request) (string, error) {
	if req.Body == nil || req.Body == nethttp.NoBody {
		return sha256Hex(nil), nil
	}
	if req.GetBody == nil {
		return unsignedPayload, nil
	}

	body, err := req.GetBody()
	if err != nil {
		return "", fmt.Errorf("failed to read body for signing: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read body for signing: %w", err)
	}
	return sha256Hex(data), nil
}

func canonicalHeaders(req *nethttp.Request) (signed, canonical string) {
	headers := map[string]string{"host": req.URL.Host}
	if req.Host != "" {
		headers["host"] = req.Host
	}
	for k, v := range req.Header {
		name := strings.ToLower(k)
		if name == "x-amz-date" || name == "x-amz-content-sha256" || name == "x-amz-security-token" || name == "content-type" {
			headers[name] = strings.TrimSpace(strings.Join(v, ","))
		}
	}

	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(headers[k])
		b.WriteByte('\n')
	}
	return strings.Join(names, ";"), b.String()
}

func canonicalQueryString(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		vals := append([]string(nil), values[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			pairs = append(pairs, awsEscape(k)+"="+awsEscape(v))
		}
	}
	return strings.Join(pairs, "&")
}

// awsEscape percent-encodes everything except unreserved characters.
func awsEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func signatureKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "aws4_request")
}
