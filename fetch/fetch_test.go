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

package fetch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tidefall/deferred"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"svc","count":3}`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGet_Fulfills(t *testing.T) {
	srv := newTestServer(t)

	res := Get(srv.URL + "/text").Res()
	require.Equal(t, deferred.Fulfilled, res.State())
	require.Equal(t, "hello", res.Val())
}

func TestGet_StatusError(t *testing.T) {
	srv := newTestServer(t)

	t.Run("404 rejects with the status text", func(t *testing.T) {
		res := Get(srv.URL + "/missing").Res()
		require.Equal(t, deferred.Rejected, res.State())
		require.EqualError(t, res.Err(), "Not Found")

		var serr *StatusError
		require.ErrorAs(t, res.Err(), &serr)
		require.Equal(t, http.StatusNotFound, serr.Code)
	})

	t.Run("500", func(t *testing.T) {
		var serr *StatusError
		require.ErrorAs(t, Get(srv.URL+"/broken").Err(), &serr)
		require.Equal(t, http.StatusInternalServerError, serr.Code)
		require.Equal(t, "Internal Server Error", serr.Text)
	})
}

func TestGet_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := Get(url + "/text").Res()
	require.Equal(t, deferred.Rejected, res.State())
	require.Error(t, res.Err())

	// a transport failure is not a status failure
	var serr *StatusError
	require.False(t, errors.As(res.Err(), &serr))
}

func TestGet_BadURL(t *testing.T) {
	res := Get("://not-a-url").Res()
	require.Equal(t, deferred.Rejected, res.State())
	require.Error(t, res.Err())
}

func TestDo(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/text", nil)
	require.NoError(t, err)

	require.Equal(t, "hello", Do(srv.Client(), req).Val())
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSON(t *testing.T) {
	srv := newTestServer(t)

	t.Run("decodes the body", func(t *testing.T) {
		res := JSON[payload](Get(srv.URL + "/json")).Res()
		require.Equal(t, deferred.Fulfilled, res.State())
		require.Equal(t, payload{Name: "svc", Count: 3}, res.Val())
	})

	t.Run("malformed body rejects with a decode error", func(t *testing.T) {
		res := JSON[payload](Get(srv.URL + "/text")).Res()
		require.Equal(t, deferred.Rejected, res.State())

		var derr *DecodeError
		require.ErrorAs(t, res.Err(), &derr)

		// distinguishable from a transport or status failure
		var serr *StatusError
		require.False(t, errors.As(res.Err(), &serr))
	})

	t.Run("status failure passes through unchanged", func(t *testing.T) {
		res := JSON[payload](Get(srv.URL + "/missing")).Res()
		require.Equal(t, deferred.Rejected, res.State())

		var serr *StatusError
		require.ErrorAs(t, res.Err(), &serr)

		var derr *DecodeError
		require.False(t, errors.As(res.Err(), &derr))
	})
}
