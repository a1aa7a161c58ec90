// Copyright 2026 Google LLC
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

package registry

import (
	"fmt"
	"os"

	"github.com/dmvfs/dmvfs/internal/logger"
	"github.com/dmvfs/dmvfs/internal/shutdown"
	"github.com/dmvfs/dmvfs/internal/util"
	"golang.org/x/term"
	"gopkg.in/ini.v1"
)

// Keys of a server section in the servers config file.
const (
	hostnameKey          = "hostname"
	usernameKey          = "username"
	passwordKey          = "password"
	versionKey           = "version"
	customQueriesPathKey = "customQueriesPath"
)

// PasswordPrompt asks for the password of a server whose section has none.
type PasswordPrompt func(server string) (string, error)

// TerminalPrompt reads the password from the controlling terminal without
// echo. It fails when stdin is not a terminal, e.g. when started from a
// service manager.
func TerminalPrompt(server string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no password configured for server %q and stdin is not a terminal", server)
	}

	fmt.Fprintf(os.Stderr, "Password for server %s: ", server)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password for server %q: %w", server, err)
	}
	return string(pw), nil
}

// Load parses the INI servers config at path, one section per server, and
// builds a Registry from it. prompt is consulted for sections without a
// password key; nil means TerminalPrompt.
//
//	[PROD1]
//	hostname = prod1.example.com
//	username = monitor
//	password = secret
//	version = 16
//	customQueriesPath = /etc/dmvfs/queries/prod1
func Load(path string, aborter shutdown.Aborter, prompt PasswordPrompt) (*Registry, error) {
	if prompt == nil {
		prompt = TerminalPrompt
	}

	// Repeated sections are kept apart so that New reports them as duplicates
	// instead of the later one silently overriding the earlier.
	f, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:        true,
		AllowNonUniqueSections: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("reading servers config %s: %w", path, err)
	}

	var entries []ServerEntry
	for _, s := range f.Sections() {
		if s.Name() == ini.DefaultSection {
			if len(s.Keys()) > 0 {
				logger.Warnf("Ignoring %d keys outside of any server section in %s", len(s.Keys()), path)
			}
			continue
		}

		e, err := parseSection(s, prompt)
		if err != nil {
			return nil, fmt.Errorf("servers config %s: %w", path, err)
		}
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("servers config %s lists no servers", path)
	}

	return New(entries, aborter)
}

func parseSection(s *ini.Section, prompt PasswordPrompt) (ServerEntry, error) {
	e := ServerEntry{
		Name:     s.Name(),
		Hostname: s.Key(hostnameKey).String(),
		Username: s.Key(usernameKey).String(),
	}

	if e.Hostname == "" {
		return e, fmt.Errorf("server %q: %s is required", e.Name, hostnameKey)
	}
	if e.Username == "" {
		return e, fmt.Errorf("server %q: %s is required", e.Name, usernameKey)
	}

	if s.HasKey(passwordKey) {
		e.Password = s.Key(passwordKey).String()
	} else {
		pw, err := prompt(e.Name)
		if err != nil {
			return e, err
		}
		e.Password = pw
	}

	if s.HasKey(versionKey) {
		v, err := s.Key(versionKey).Int()
		if err != nil {
			return e, fmt.Errorf("server %q: invalid %s: %w", e.Name, versionKey, err)
		}
		if v < 0 {
			return e, fmt.Errorf("server %q: %s can't be negative", e.Name, versionKey)
		}
		e.Version = v
	} else {
		logger.Warnf("Server %q has no %s; .json files will not be created", e.Name, versionKey)
	}

	if s.HasKey(customQueriesPathKey) {
		p, err := util.GetResolvedPath(s.Key(customQueriesPathKey).String())
		if err != nil {
			return e, fmt.Errorf("server %q: resolving %s: %w", e.Name, customQueriesPathKey, err)
		}
		e.CustomQueriesPath = p
	}

	return e, nil
}
