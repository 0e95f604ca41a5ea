/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package checker implements checking mechanism of server aliveness.
It is used by the daemon to determine if internal health is good and work can be continued
*/
package checker

import (
	"errors"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

var errSimpleCheckerWrongAmountListeners = errors.New("wrong amount of listeners is up")

// SimpleChecker is an implementation of checker containing basic health info such as
// amount of listeners
type SimpleChecker struct {
	// ExpectedListeners is number of listeners we expect to run
	ExpectedListeners int64
	realListeners     int64
}

// IncListeners thread-safely increases number of listeners to monitor
func (s *SimpleChecker) IncListeners() {
	atomic.AddInt64(&s.realListeners, 1)
}

// DecListeners thread-safely decreases number of listeners to monitor
func (s *SimpleChecker) DecListeners() {
	atomic.AddInt64(&s.realListeners, -1)
}

// Check is a method which performs basic validations that responder is alive
func (s *SimpleChecker) Check() error {
	log.Debug("[Checker] checking listeners")
	if s.ExpectedListeners != atomic.LoadInt64(&s.realListeners) {
		return errSimpleCheckerWrongAmountListeners
	}
	return nil
}
