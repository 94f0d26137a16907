package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// execute is the expiry-aware call wrapper shared by both authenticator
// variants. The caller must hold the variant's lock for the whole
// check-deadline, refresh, call and retry sequence, so concurrent callers
// cannot invalidate each other's in-flight token or corrupt the retry
// accounting.
//
// Classification of the single retry: a transport 401/403 or a mapped
// expiry status code forces one refresh with the deadline cleared and one
// retry. A second failure of the same kind surfaces as ExpiredTokenError
// and is never retried again.
func execute(ctx context.Context, s session, name string, body []byte) (gjson.Result, error) {
	desc, ok := s.catalog().Resolve(name, s.account())
	if !ok {
		return gjson.Result{}, &UnknownEndpointError{Endpoint: name}
	}

	isLogin := name == EndpointLogin
	if !isLogin {
		if err := s.ensureFreshLocked(ctx, false); err != nil {
			return gjson.Result{}, err
		}
		if !s.token().Authenticated() {
			return gjson.Result{}, &ExpiredTokenError{Detail: "not logged in"}
		}
	}

	result, err := roundTrip(ctx, s, name, desc, body)
	if err == nil {
		return result, nil
	}
	if isLogin {
		// A transport-level unauthorized on the login call is a credential
		// rejection, not an expiry.
		if IsExpiredToken(err) {
			return gjson.Result{}, &InvalidCredentialsError{Detail: "login request rejected"}
		}
		return gjson.Result{}, err
	}
	if !IsExpiredToken(err) {
		return gjson.Result{}, err
	}

	log.Debugf("endpoint %s signalled token expiry, forcing refresh and retrying once", name)
	if errRefresh := s.ensureFreshLocked(ctx, true); errRefresh != nil {
		return gjson.Result{}, errRefresh
	}
	return roundTrip(ctx, s, name, desc, body)
}

// roundTrip issues exactly one HTTP call and classifies its outcome into
// the typed error taxonomy. Transport exceptions never escape
// unclassified; they are wrapped into ServiceUnavailableError.
func roundTrip(ctx context.Context, s session, name string, desc EndpointDescriptor, body []byte) (gjson.Result, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, desc.Method, s.baseURL()+desc.Path, reader)
	if err != nil {
		return gjson.Result{}, &ServiceUnavailableError{Detail: "building request failed", Cause: err}
	}
	// Header composition embeds the current token, account and device id,
	// so it is recomputed for every call.
	req.Header = s.headers()
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return gjson.Result{}, &ServiceUnavailableError{Detail: fmt.Sprintf("request to %s failed", name), Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, &ServiceUnavailableError{Detail: fmt.Sprintf("reading %s response failed", name), Cause: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return gjson.Result{}, &ExpiredTokenError{Detail: fmt.Sprintf("endpoint %s returned HTTP %d", name, resp.StatusCode)}
	case resp.StatusCode >= http.StatusInternalServerError:
		s.token().Clear()
		return gjson.Result{}, &ServiceUnavailableError{Detail: fmt.Sprintf("endpoint %s returned HTTP %d", name, resp.StatusCode)}
	}

	if !jsonContentType(resp.Header.Get("Content-Type")) || !gjson.ValidBytes(raw) {
		log.Errorf("endpoint %s returned a non-JSON response (HTTP %d)", name, resp.StatusCode)
		return gjson.Result{}, &UnknownEndpointError{Endpoint: name, RawBody: raw}
	}

	parsed := gjson.ParseBytes(raw)
	if code := parsed.Get("StatusCode"); code.Exists() {
		if code.String() == StatusCodeSuccess {
			log.Debugf("request to %s successful", name)
			return parsed, nil
		}
		if mapped, known := statusCodeError(code.String()); known {
			if IsServiceUnavailable(mapped) {
				s.token().Clear()
			}
			return gjson.Result{}, mapped
		}
		return gjson.Result{}, &UnknownEndpointError{Endpoint: name, StatusCode: code.String(), RawBody: raw}
	}

	// The APIM gateway signals failures purely through the HTTP status and
	// carries no vendor status code field.
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		log.Debugf("request to %s successful", name)
		return parsed, nil
	}
	return gjson.Result{}, &UnknownEndpointError{Endpoint: name, RawBody: raw}
}

func jsonContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "application/json") || strings.HasPrefix(ct, "text/json")
}
