package twitter

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"
)

// OAUTH 1.0a SIGNING (HMAC-SHA1):
//
//  1. Collect every parameter: the oauth_* protocol values plus the request's
//     query string and form body.
//  2. Percent-encode keys and values (RFC 3986), sort by key then value, and
//     join as k=v&k=v. This is the "parameter string".
//  3. Base string = METHOD & encode(scheme://host/path) & encode(parameter string).
//  4. Key = encode(consumerSecret) & encode(tokenSecret). The token secret is
//     empty when asking for a request token.
//  5. oauth_signature = base64(HMAC-SHA1(key, base string)).
//
// Only the oauth_* values go into the Authorization header.

// signer computes OAuth 1.0a Authorization headers for one consumer.
type signer struct {
	consumerKey    string
	consumerSecret string
	now            func() time.Time
	nonce          func() string
}

func newSigner(key, secret string) *signer {
	return &signer{
		consumerKey:    key,
		consumerSecret: secret,
		now:            time.Now,
		nonce:          func() string { return xid.New().String() },
	}
}

// authorization returns the value of the Authorization header for a request.
// extra carries additional protocol parameters (oauth_callback, oauth_verifier).
func (s *signer) authorization(method string, u *url.URL, params url.Values, token, tokenSecret string, extra map[string]string) string {
	oauth := map[string]string{
		"oauth_consumer_key":     s.consumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if token != "" {
		oauth["oauth_token"] = token
	}
	for k, v := range extra {
		oauth[k] = v
	}

	oauth["oauth_signature"] = s.signature(method, u, params, oauth, tokenSecret)

	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, percentEncode(k), percentEncode(oauth[k])))
	}
	return "OAuth " + strings.Join(parts, ", ")
}

func (s *signer) signature(method string, u *url.URL, params url.Values, oauth map[string]string, tokenSecret string) string {
	base := strings.ToUpper(method) + "&" +
		percentEncode(baseURL(u)) + "&" +
		percentEncode(parameterString(params, oauth))

	key := percentEncode(s.consumerSecret) + "&" + percentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	_, _ = mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type pair struct{ k, v string }

func parameterString(params url.Values, oauth map[string]string) string {
	pairs := make([]pair, 0, len(params)+len(oauth))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	for k, v := range oauth {
		pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return strings.Join(parts, "&")
}

// baseURL is scheme://host/path with scheme and host lower-cased and no query.
func baseURL(u *url.URL) string {
	host := strings.ToLower(u.Host)
	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return scheme + "://" + host + u.EscapedPath()
}

// percentEncode is RFC 3986 encoding: unreserved characters stay, space is %20.
func percentEncode(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(url.QueryEscape(s), "+", "%20"), "*", "%2A")
}
