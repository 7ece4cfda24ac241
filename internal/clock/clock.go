// Copyright 2026 The Patchworkfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clock provides the time source used for opcode timestamps, so
// tests can control time without sleeping.
package clock

import "time"

// Clock is satisfied by RealClock, FakeClock, and SimulatedClock. Its Now
// matches github.com/jacobsa/timeutil.Clock; After has no counterpart there.
// internal/recorder stamps each opcode with Now.
type Clock interface {
	Now() time.Time
	After(time.Duration) <-chan time.Time
}

var (
	_ Clock = RealClock{}
	_ Clock = &FakeClock{}
	_ Clock = &SimulatedClock{}
)
