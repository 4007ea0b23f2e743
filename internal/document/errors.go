/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"errors"
	"fmt"
)

var (
	// ErrRefused matches every invariant-guard refusal via errors.Is.
	ErrRefused = errors.New("refused")

	ErrLastProject = errors.New("a workspace must keep at least one project")
	ErrLastIssue   = errors.New("a project must keep at least one issue")
	ErrLastPage    = errors.New("an issue must keep at least one page")

	// ErrNotFound is returned when an id does not resolve in the active scope.
	ErrNotFound = errors.New("not found")
)

// RefusalError is a user-facing guard refusal. The state passed alongside it is unchanged.
type RefusalError struct {
	Op  string
	Err error
}

func (e *RefusalError) Error() string { return fmt.Sprintf("%s refused: %v", e.Op, e.Err) }

func (e *RefusalError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRefused) true for any refusal.
func (e *RefusalError) Is(target error) bool { return target == ErrRefused }

func refuse(op string, err error) error { return &RefusalError{Op: op, Err: err} }
