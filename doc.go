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

// Package deferred provides a generic deferred-value primitive, a
// promise, for Go.
//
// A Deferred starts out pending and settles exactly once, to either
// fulfilled with a value or rejected with an error. Reactions subscribe
// to that settlement through Subscribe, Then and Catch, each returning a
// new Deferred resolved by the reaction's outcome, which makes chains
// composable and lets a rejection skip forward to the nearest handler.
//
// Reactions never run on the goroutine that registers them, even when
// the Deferred has already settled, and reactions registered on the same
// Deferred run in registration order. The same discipline holds whether
// the Deferred settled before or after the registration, so callers can
// never observe a reentrant, synchronous completion.
//
// The package-level combinators, All, Race, Any and Join, aggregate
// several Deferred values into one. The Group type ties a set of
// Deferred values together, bounding the goroutines they run and
// carrying their shared callback behavior.
package deferred
