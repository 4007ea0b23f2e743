/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package app

import (
	"strconv"
	"time"
)

// NoticeKind is the error category a notice belongs to.
type NoticeKind string

const (
	NoticePersistence NoticeKind = "persistence"
	NoticeGeneration  NoticeKind = "generation"
	NoticeExport      NoticeKind = "export"
	NoticeRefusal     NoticeKind = "refusal"
)

// Notice is a dismissible, human readable message. Notices never block editing.
type Notice struct {
	ID      string     `json:"id"`
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Hint    string     `json:"hint,omitempty"`
	At      time.Time  `json:"at"`
}

// maxNotices bounds the list; the oldest entries fall off first.
const maxNotices = 20

// addNotice appends a notice. Callers hold s.mu.
func (s *Session) addNotice(kind NoticeKind, msg, hint string) Notice {
	s.noticeSeq++
	n := Notice{ID: "n" + strconv.Itoa(s.noticeSeq), Kind: kind, Message: msg, Hint: hint, At: s.now()}
	s.notices = append(s.notices, n)
	if len(s.notices) > maxNotices {
		s.notices = append([]Notice(nil), s.notices[len(s.notices)-maxNotices:]...)
	}
	return n
}

// Notices returns the pending notices, oldest first.
func (s *Session) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notice(nil), s.notices...)
}

// Dismiss removes a notice by id and reports whether it existed.
func (s *Session) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notices {
		if n.ID == id {
			s.notices = append(s.notices[:i:i], s.notices[i+1:]...)
			return true
		}
	}
	return false
}

// DismissAll clears every notice.
func (s *Session) DismissAll() {
	s.mu.Lock()
	s.notices = nil
	s.mu.Unlock()
}
