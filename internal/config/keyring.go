/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "GoStoryboard"
	keyringAPIKey  = "gemini_api_key"
)

// TokenStore abstracts the OS keychain so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// SetTokenStore replaces the keychain backend and returns a function restoring the previous one.
func SetTokenStore(ts TokenStore) (restore func()) {
	prev := tokenStore
	tokenStore = ts
	return func() { tokenStore = prev }
}

// APIKey returns the generation API key. GSB_API_KEY wins over the keychain entry.
// A missing key is reported as "", nil.
func APIKey() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		return v, nil
	}
	v, err := tokenStore.Get(keyringService, keyringAPIKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// SaveAPIKey stores key in the keychain; an empty key removes the entry.
func SaveAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		err := tokenStore.Delete(keyringService, keyringAPIKey)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return tokenStore.Set(keyringService, keyringAPIKey, key)
}
