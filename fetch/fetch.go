// Copyright 2025 The deferred module authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fetch converts HTTP requests into the Deferred contract.
//
// A request fulfills with the raw response body text when the status
// code is below 400, rejects with a *StatusError carrying the status
// text otherwise, and rejects with the transport error when no response
// was received at all. Parsing the body as structured data is a separate
// chained step, through JSON, so malformed content produces a rejection
// distinguishable from a transport or status failure.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/tidefall/deferred"
)

// StatusError is the rejection error of a response with a status code of
// 400 or above. Its message is the status text alone.
type StatusError struct {
	Code int
	Text string
}

func (e *StatusError) Error() string {
	return e.Text
}

// DecodeError is the rejection error of a JSON step whose body couldn't
// be decoded.
type DecodeError struct {
	err error
}

func (e *DecodeError) Error() string {
	return "fetch: decode response body: " + e.err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.err
}

// Get requests url with a GET request and the default client, and
// returns a Deferred for the response body text.
func Get(url string) deferred.Deferred[string] {
	return deferred.GoRes[string](func(ctx context.Context) deferred.Result[string] {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return deferred.Err[string](err)
		}
		return respond(http.DefaultClient, req)
	})
}

// Do performs req with the provided client, and returns a Deferred for
// the response body text.
func Do(client *http.Client, req *http.Request) deferred.Deferred[string] {
	return deferred.GoRes[string](func(ctx context.Context) deferred.Result[string] {
		return respond(client, req)
	})
}

func respond(client *http.Client, req *http.Request) deferred.Result[string] {
	resp, err := client.Do(req)
	if err != nil {
		// a transport-level failure, no response was received.
		return deferred.Err[string](err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return deferred.Err[string](err)
	}

	if resp.StatusCode >= 400 {
		return deferred.Err[string](&StatusError{
			Code: resp.StatusCode,
			Text: statusText(resp),
		})
	}
	return deferred.Val(string(body))
}

// statusText extracts the status text of the response, preferring the
// text the server actually sent over the standard one for the code.
func statusText(resp *http.Response) string {
	// resp.Status reads like "404 Not Found"; strip the leading code.
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// JSON chains a decoding step on d, returning a Deferred that fulfills
// with the body decoded into T, or rejects with a *DecodeError if the
// body isn't valid JSON for T. A rejection of d passes through
// unchanged.
func JSON[T any](d deferred.Deferred[string]) deferred.Deferred[T] {
	return deferred.GoRes[T](func(ctx context.Context) deferred.Result[T] {
		res := d.Res()
		if res.State() == deferred.Rejected {
			return deferred.Err[T](res.Err())
		}

		var v T
		if err := json.Unmarshal([]byte(res.Val()), &v); err != nil {
			return deferred.Err[T](&DecodeError{err: err})
		}
		return deferred.Val(v)
	})
}
