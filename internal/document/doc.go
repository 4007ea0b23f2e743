/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package document implements the pure update operations over the storyboard state tree.
// Every operation takes a domain.State by value and returns a new one. Only the
// Project → Issue → Page path leading to the changed node is copied; sibling slices keep
// their backing arrays, so callers can skip work for subtrees whose slice headers are unchanged.
// Container invariants (at least one project, issue and page) are enforced by refusing
// deletions with a *RefusalError.
package document
