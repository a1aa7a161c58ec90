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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmvfs/dmvfs/internal/shutdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RegistryTest struct {
	suite.Suite
	exitCodes  []int
	controller *shutdown.Controller
	r          *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTest))
}

func (t *RegistryTest) SetupTest() {
	t.exitCodes = nil
	t.controller = shutdown.NewController(shutdown.WithExitFunc(func(code int) {
		t.exitCodes = append(t.exitCodes, code)
	}))

	var err error
	t.r, err = New([]ServerEntry{
		{Name: "PROD2", Hostname: "prod2.example.com", Username: "sa", Password: "pw2", Version: 15},
		{Name: "PROD1", Hostname: "prod1.example.com", Username: "monitor", Password: "pw1", Version: 16, CustomQueriesPath: "/etc/dmvfs/prod1"},
	}, t.controller)
	require.NoError(t.T(), err)
}

func (t *RegistryTest) TestLookup() {
	e, ok := t.r.Lookup("PROD1")

	require.True(t.T(), ok)
	assert.Equal(t.T(), "prod1.example.com", e.Hostname)
	assert.True(t.T(), e.SupportsJSON())
}

func (t *RegistryTest) TestLookupUnknown() {
	e, ok := t.r.Lookup("unknown")

	assert.False(t.T(), ok)
	assert.Nil(t.T(), e)
}

func (t *RegistryTest) TestGetServerInfo() {
	assert.Equal(t.T(), 15, t.r.GetServerInfo("PROD2").Version)
	assert.False(t.T(), t.r.GetServerInfo("PROD2").SupportsJSON())
	assert.Nil(t.T(), t.r.GetServerInfo("unknown"))
	assert.False(t.T(), t.controller.Aborted())
}

func (t *RegistryTest) TestResolveOrAbort() {
	host, user, pass := t.r.ResolveOrAbort("PROD2")

	assert.Equal(t.T(), "prod2.example.com", host)
	assert.Equal(t.T(), "sa", user)
	assert.Equal(t.T(), "pw2", pass)
	assert.False(t.T(), t.controller.Aborted())
}

func (t *RegistryTest) TestResolveOrAbortUnknownServerAborts() {
	unmounted := false
	t.controller.Register("unmount", func() error {
		unmounted = true
		return nil
	})

	host, user, pass := t.r.ResolveOrAbort("unknown")

	assert.Empty(t.T(), host+user+pass)
	assert.True(t.T(), t.controller.Aborted())
	assert.True(t.T(), unmounted)
	assert.Equal(t.T(), []int{1}, t.exitCodes)
}

func (t *RegistryTest) TestGetUserCustomQueryPath() {
	assert.Equal(t.T(), "/etc/dmvfs/prod1", t.r.GetUserCustomQueryPath("PROD1"))
	assert.Equal(t.T(), "", t.r.GetUserCustomQueryPath("PROD2"))
}

func (t *RegistryTest) TestGetUserCustomQueryPathUnknownDoesNotAbort() {
	assert.Equal(t.T(), "", t.r.GetUserCustomQueryPath("unknown"))
	assert.False(t.T(), t.controller.Aborted())
	assert.Empty(t.T(), t.exitCodes)
}

func (t *RegistryTest) TestEntriesSortedByName() {
	entries := t.r.Entries()

	require.Len(t.T(), entries, 2)
	assert.Equal(t.T(), "PROD1", entries[0].Name)
	assert.Equal(t.T(), "PROD2", entries[1].Name)
	assert.Equal(t.T(), 2, t.r.Len())
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New([]ServerEntry{{Name: "A"}, {Name: "A"}}, shutdown.NewController())

	assert.ErrorContains(t, err, `duplicate server name "A"`)
}

func TestNewRejectsEmptyName(t *testing.T) {
	_, err := New([]ServerEntry{{Hostname: "h"}}, shutdown.NewController())

	assert.Error(t, err)
}

func TestNewRejectsNamesOutsideTheDumpDir(t *testing.T) {
	testCases := []string{"..", ".", "../escape", "a/b", "/abs"}

	for _, name := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := New([]ServerEntry{{Name: name, Hostname: "h"}}, shutdown.NewController())

			assert.ErrorContains(t, err, "not a valid directory name")
		})
	}
}

func writeServersConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "servers.ini")
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func failingPrompt(server string) (string, error) {
	return "", errors.New("no prompt in tests")
}

func TestLoad(t *testing.T) {
	p := writeServersConfig(t, `
[PROD1]
hostname = prod1.example.com
username = monitor
password = secret
version = 16
customQueriesPath = /etc/dmvfs/prod1

[DEV]
hostname = localhost
username = sa
password = dev
version = 14
`)

	r, err := Load(p, shutdown.NewController(), failingPrompt)

	require.NoError(t, err)
	require.Equal(t, 2, r.Len())
	prod := r.GetServerInfo("PROD1")
	require.NotNil(t, prod)
	assert.Equal(t, ServerEntry{
		Name:              "PROD1",
		Hostname:          "prod1.example.com",
		Username:          "monitor",
		Password:          "secret",
		Version:           16,
		CustomQueriesPath: "/etc/dmvfs/prod1",
	}, *prod)
	assert.Equal(t, 14, r.GetServerInfo("DEV").Version)
}

func TestLoadPromptsForMissingPassword(t *testing.T) {
	p := writeServersConfig(t, `
[PROD1]
hostname = prod1.example.com
username = monitor
version = 16
`)
	var asked []string

	r, err := Load(p, shutdown.NewController(), func(server string) (string, error) {
		asked = append(asked, server)
		return "typed", nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"PROD1"}, asked)
	assert.Equal(t, "typed", r.GetServerInfo("PROD1").Password)
}

func TestLoadEmptyPasswordIsNotPrompted(t *testing.T) {
	p := writeServersConfig(t, `
[PROD1]
hostname = prod1.example.com
username = monitor
password =
`)

	r, err := Load(p, shutdown.NewController(), failingPrompt)

	require.NoError(t, err)
	assert.Equal(t, "", r.GetServerInfo("PROD1").Password)
	assert.Equal(t, 0, r.GetServerInfo("PROD1").Version)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"no servers", "hostname = orphan\n"},
		{"missing hostname", "[A]\nusername = u\npassword = p\n"},
		{"missing username", "[A]\nhostname = h\npassword = p\n"},
		{"bad version", "[A]\nhostname = h\nusername = u\npassword = p\nversion = sixteen\n"},
		{"negative version", "[A]\nhostname = h\nusername = u\npassword = p\nversion = -1\n"},
		{"prompt fails", "[A]\nhostname = h\nusername = u\n"},
		{"parent dir name", "[../escape]\nhostname = h\nusername = u\npassword = p\n"},
		{"repeated section", "[PROD1]\nhostname = a\nusername = u\npassword = p\n[PROD1]\nhostname = b\nusername = u\npassword = p\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := writeServersConfig(t, tc.content)

			_, err := Load(p, shutdown.NewController(), failingPrompt)

			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.ini"), shutdown.NewController(), failingPrompt)

	assert.Error(t, err)
}

func TestLoadRejectsRepeatedSection(t *testing.T) {
	p := writeServersConfig(t, `
[PROD1]
hostname = a
username = u
password = p

[PROD1]
hostname = b
username = u
password = p
`)

	_, err := Load(p, shutdown.NewController(), failingPrompt)

	assert.ErrorContains(t, err, `duplicate server name "PROD1"`)
}
