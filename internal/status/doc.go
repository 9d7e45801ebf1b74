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

// Package status implements the packed status word of a Deferred value.
//
// The word holds four sections, updated together under a one-bit swap
// lock:
//
//   - chain: the strongest call kind registered so far (wait, read, follow).
//   - fate: how far settlement has progressed (unresolved, resolving,
//     resolved, handled).
//   - state: the public state (pending, fulfilled, rejected).
//   - flags: creation-time options that never change.
//
// Keeping all of it in one uint32 lets every status decision be made off
// a single atomic snapshot, with no Deferred-wide mutex.
package status
