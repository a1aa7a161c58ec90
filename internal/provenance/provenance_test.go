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

package provenance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dmvfs/dmvfs/internal/dumppath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sys/unix"
)

type TaggerTest struct {
	suite.Suite
	newStore func() AttrStore
	root     string
	tagger   *Tagger
}

func TestInMemoryTaggerSuite(t *testing.T) {
	suite.Run(t, &TaggerTest{newStore: func() AttrStore { return NewInMemoryAttrStore() }})
}

func TestUnixTaggerSuite(t *testing.T) {
	dir := t.TempDir()
	probe := filepath.Join(dir, "probe")
	require.NoError(t, os.WriteFile(probe, nil, 0644))
	if err := unix.Setxattr(probe, AttrName, nil, 0); err != nil {
		t.Skipf("user xattrs not supported in %s: %v", dir, err)
	}

	suite.Run(t, &TaggerTest{newStore: func() AttrStore { return UnixAttrStore{} }})
}

func (t *TaggerTest) SetupTest() {
	t.root = t.T().TempDir()
	t.tagger = NewTagger(dumppath.New(t.root), t.newStore())
}

func (t *TaggerTest) createFile(mountPath string) string {
	p := filepath.Join(t.root, mountPath)
	require.NoError(t.T(), os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t.T(), os.WriteFile(p, nil, 0644))
	return p
}

func (t *TaggerTest) TestTaggedFileIsGenerated() {
	p := t.createFile("/PROD1/sys_views")

	require.NoError(t.T(), t.tagger.TagGenerated(p))

	assert.Equal(t.T(), Present, t.tagger.Lookup("/PROD1/sys_views"))
	assert.True(t.T(), t.tagger.IsGenerated("/PROD1/sys_views"))
	assert.Equal(t.T(), Present, t.tagger.LookupBacking(p))
}

func (t *TaggerTest) TestUserFileIsNotGenerated() {
	t.createFile("/PROD1/notes.txt")

	assert.Equal(t.T(), Absent, t.tagger.Lookup("/PROD1/notes.txt"))
	assert.False(t.T(), t.tagger.IsGenerated("/PROD1/notes.txt"))
}

func (t *TaggerTest) TestMissingFileIsLookupErrorAndNotGenerated() {
	assert.Equal(t.T(), LookupError, t.tagger.Lookup("/PROD1/missing"))
	assert.False(t.T(), t.tagger.IsGenerated("/PROD1/missing"))
}

func (t *TaggerTest) TestTaggingMissingFileFails() {
	err := t.tagger.TagGenerated(filepath.Join(t.root, "missing"))

	assert.Error(t.T(), err)
}

func (t *TaggerTest) TestTaggingTwiceIsHarmless() {
	p := t.createFile("/PROD1/sys_views")

	require.NoError(t.T(), t.tagger.TagGenerated(p))
	require.NoError(t.T(), t.tagger.TagGenerated(p))

	assert.True(t.T(), t.tagger.IsGenerated("/PROD1/sys_views"))
}

func TestUnixMarkerHasEmptyValue(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(p, nil, 0644))
	tagger := NewTagger(dumppath.New(""), UnixAttrStore{})
	if err := tagger.TagGenerated(p); err != nil {
		t.Skipf("user xattrs not supported: %v", err)
	}

	size, err := unix.Getxattr(p, AttrName, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestPresenceString(t *testing.T) {
	assert.Equal(t, "present", Present.String())
	assert.Equal(t, "absent", Absent.String())
	assert.Equal(t, "lookup-error", LookupError.String())
}
