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

package status

// The helpers below take a raw status value, as returned by the Load and
// Set/Reg methods, so that callers can make several decisions off a single
// consistent snapshot of the word.

func IsChainEmpty(status uint32) bool {
	return status&chainMask == chainNone
}

func IsChainAtLeastWait(status uint32) bool {
	return status&chainMask >= chainWait
}

func IsChainAtLeastRead(status uint32) bool {
	return status&chainMask >= chainRead
}

func IsChainFollow(status uint32) bool {
	return status&chainMask == chainFollow
}

func IsFateUnresolved(status uint32) bool {
	return status&fateMask == fateUnresolved
}

func IsFateResolving(status uint32) bool {
	return status&fateMask == fateResolving
}

func IsFateResolved(status uint32) bool {
	return status&fateMask >= fateResolved
}

func IsFateHandled(status uint32) bool {
	return status&fateMask == fateHandled
}

func IsStatePending(status uint32) bool {
	return status&stateMask == statePending
}

func IsStateFulfilled(status uint32) bool {
	return status&stateMask == stateFulfilled
}

func IsStateRejected(status uint32) bool {
	return status&stateMask == stateRejected
}

func IsFlagsOnce(status uint32) bool {
	return status&FlagsOnce != 0
}
