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

package materialize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/dmvfs/dmvfs/internal/discovery"
	"github.com/dmvfs/dmvfs/internal/dumppath"
	"github.com/dmvfs/dmvfs/internal/metrics"
	"github.com/dmvfs/dmvfs/internal/provenance"
	"github.com/dmvfs/dmvfs/internal/query/fake"
	"github.com/dmvfs/dmvfs/internal/registry"
	"github.com/dmvfs/dmvfs/internal/shutdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type recordingMetrics struct {
	metrics.MetricHandle
	placeholders      map[string]int64
	discoveryFailures map[string]int64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		MetricHandle:      metrics.NewNoopMetrics(),
		placeholders:      make(map[string]int64),
		discoveryFailures: make(map[string]int64),
	}
}

func (r *recordingMetrics) PlaceholdersCreatedCount(inc int64, server string) {
	r.placeholders[server] += inc
}

func (r *recordingMetrics) DiscoveryFailureCount(inc int64, server string) {
	r.discoveryFailures[server] += inc
}

type failingAttrStore struct {
	provenance.AttrStore
}

func (failingAttrStore) Set(path, name string, value []byte) error {
	return errors.New("xattrs unsupported")
}

type MaterializeTest struct {
	suite.Suite
	ctx        context.Context
	root       string
	executor   *fake.Executor
	controller *shutdown.Controller
	exitCodes  []int
	metrics    *recordingMetrics
	store      provenance.AttrStore
	tagger     *provenance.Tagger
	m          *Materializer
	prod1      *registry.ServerEntry
}

func TestMaterializeSuite(t *testing.T) {
	suite.Run(t, new(MaterializeTest))
}

func (t *MaterializeTest) SetupTest() {
	t.ctx = context.Background()
	t.root = t.T().TempDir()
	t.executor = fake.NewExecutor()
	t.exitCodes = nil
	t.controller = shutdown.NewController(shutdown.WithExitFunc(func(code int) {
		t.exitCodes = append(t.exitCodes, code)
	}))
	t.metrics = newRecordingMetrics()
	t.store = provenance.NewInMemoryAttrStore()
	t.prod1 = &registry.ServerEntry{
		Name:     "PROD1",
		Hostname: "prod1.example.com",
		Username: "monitor",
		Password: "secret",
		Version:  16,
	}
	t.rebuild()
}

func (t *MaterializeTest) rebuild() {
	mapper := dumppath.New(t.root)
	t.tagger = provenance.NewTagger(mapper, t.store)
	t.m = NewMaterializer(&Config{
		Mapper:   mapper,
		Tagger:   t.tagger,
		Executor: t.executor,
		Aborter:  t.controller,
		Metrics:  t.metrics,
		DirMode:  0755,
		FileMode: 0644,
	})
}

func (t *MaterializeTest) respond(host, response string) {
	t.executor.SetResponse(host, discovery.ViewsQuery, response)
}

func (t *MaterializeTest) listDir(mountPath string) []string {
	entries, err := os.ReadDir(filepath.Join(t.root, mountPath))
	require.NoError(t.T(), err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func (t *MaterializeTest) assertEmptyGeneratedFile(mountPath string) {
	fi, err := os.Stat(filepath.Join(t.root, mountPath))
	require.NoError(t.T(), err)
	assert.True(t.T(), fi.Mode().IsRegular(), mountPath)
	assert.Equal(t.T(), int64(0), fi.Size(), mountPath)
	assert.True(t.T(), t.tagger.IsGenerated(mountPath), mountPath)
}

func (t *MaterializeTest) assertNotAborted() {
	assert.False(t.T(), t.controller.Aborted())
	assert.Empty(t.T(), t.exitCodes)
}

func (t *MaterializeTest) TestVersion16CreatesTSVAndJSONPlaceholders() {
	t.respond("prod1.example.com", "name\nsys_views\nsys_tables\n")

	err := t.m.MaterializeServer(t.ctx, t.prod1)

	require.NoError(t.T(), err)
	t.assertNotAborted()
	assert.Equal(t.T(),
		[]string{CustomQueryFolderName, "sys_tables", "sys_tables.json", "sys_views", "sys_views.json"},
		t.listDir("/PROD1"))
	for _, p := range []string{"/PROD1/sys_views", "/PROD1/sys_views.json", "/PROD1/sys_tables", "/PROD1/sys_tables.json"} {
		t.assertEmptyGeneratedFile(p)
	}
	fi, err := os.Stat(filepath.Join(t.root, "PROD1", CustomQueryFolderName))
	require.NoError(t.T(), err)
	assert.True(t.T(), fi.IsDir())
	assert.Empty(t.T(), t.listDir("/PROD1/"+CustomQueryFolderName))
	assert.Equal(t.T(), int64(4), t.metrics.placeholders["PROD1"])
}

func (t *MaterializeTest) TestVersion15CreatesOnlyTSVPlaceholders() {
	t.prod1.Version = 15
	t.respond("prod1.example.com", "name\nv1\nv2\n")

	require.NoError(t.T(), t.m.MaterializeServer(t.ctx, t.prod1))

	assert.Equal(t.T(), []string{CustomQueryFolderName, "v1", "v2"}, t.listDir("/PROD1"))
}

func (t *MaterializeTest) TestHeaderIsNeverMaterialized() {
	t.prod1.Version = 0
	t.respond("prod1.example.com", "ViewName\nv1\nv2")

	require.NoError(t.T(), t.m.MaterializeServer(t.ctx, t.prod1))

	assert.Equal(t.T(), []string{CustomQueryFolderName, "v1", "v2"}, t.listDir("/PROD1"))
	assert.Equal(t.T(), int64(2), t.metrics.placeholders["PROD1"])
}

func (t *MaterializeTest) TestRematerializationTruncatesWithoutDuplicating() {
	t.respond("prod1.example.com", "name\nv1\nv2\n")
	require.NoError(t.T(), t.m.MaterializeServer(t.ctx, t.prod1))
	first := t.listDir("/PROD1")
	require.NoError(t.T(), os.WriteFile(filepath.Join(t.root, "PROD1", "v1"), []byte("populated"), 0644))

	require.NoError(t.T(), t.m.MaterializeServer(t.ctx, t.prod1))

	t.assertNotAborted()
	assert.Equal(t.T(), first, t.listDir("/PROD1"))
	t.assertEmptyGeneratedFile("/PROD1/v1")
}

func (t *MaterializeTest) TestUserFilesAreNotMarkedGenerated() {
	t.respond("prod1.example.com", "name\nv1\n")
	require.NoError(t.T(), os.Mkdir(filepath.Join(t.root, "PROD1"), 0755))
	require.NoError(t.T(), os.WriteFile(filepath.Join(t.root, "PROD1", "notes.txt"), []byte("mine"), 0644))

	require.NoError(t.T(), t.m.MaterializeServer(t.ctx, t.prod1))

	assert.True(t.T(), t.tagger.IsGenerated("/PROD1/v1"))
	assert.False(t.T(), t.tagger.IsGenerated("/PROD1/notes.txt"))
	assert.False(t.T(), t.tagger.IsGenerated("/PROD1/"+CustomQueryFolderName))
	content, err := os.ReadFile(filepath.Join(t.root, "PROD1", "notes.txt"))
	require.NoError(t.T(), err)
	assert.Equal(t.T(), "mine", string(content))
}

func (t *MaterializeTest) TestDiscoveryFailureLeavesOnlyCustomQueryFolder() {
	t.executor.SetError("prod1.example.com", discovery.ViewsQuery, errors.New("connection refused"))

	err := t.m.MaterializeServer(t.ctx, t.prod1)

	require.NoError(t.T(), err)
	t.assertNotAborted()
	assert.Equal(t.T(), []string{CustomQueryFolderName}, t.listDir("/PROD1"))
	assert.Equal(t.T(), int64(1), t.metrics.discoveryFailures["PROD1"])
	assert.Zero(t.T(), t.metrics.placeholders["PROD1"])
}

func (t *MaterializeTest) TestHeaderOnlyResponseCreatesNoViews() {
	t.respond("prod1.example.com", "name\n")

	err := t.m.MaterializeServer(t.ctx, t.prod1)

	require.NoError(t.T(), err)
	t.assertNotAborted()
	assert.Equal(t.T(), []string{CustomQueryFolderName}, t.listDir("/PROD1"))
	assert.Equal(t.T(), int64(1), t.metrics.discoveryFailures["PROD1"])
}

func (t *MaterializeTest) TestServerDirFailureAborts() {
	t.respond("prod1.example.com", "name\nv1\n")
	unmounted := false
	t.controller.Register("unmount", func() error {
		unmounted = true
		return nil
	})
	// A regular file where the server directory should be.
	require.NoError(t.T(), os.WriteFile(filepath.Join(t.root, "PROD1"), nil, 0644))

	err := t.m.MaterializeServer(t.ctx, t.prod1)

	assert.Error(t.T(), err)
	assert.True(t.T(), t.controller.Aborted())
	assert.True(t.T(), unmounted)
	assert.Equal(t.T(), []int{1}, t.exitCodes)
	assert.Equal(t.T(), []string{"PROD1"}, t.listDir("/"))
	fi, err := os.Stat(filepath.Join(t.root, "PROD1"))
	require.NoError(t.T(), err)
	assert.True(t.T(), fi.Mode().IsRegular())
	assert.Empty(t.T(), t.executor.Calls())
}

func (t *MaterializeTest) TestUnwritableServerDirAborts() {
	if os.Geteuid() == 0 {
		t.T().Skip("permission bits are not enforced for root")
	}
	t.respond("prod1.example.com", "name\nv1\n")
	dir := filepath.Join(t.root, "PROD1")
	require.NoError(t.T(), os.Mkdir(dir, 0500))
	defer os.Chmod(dir, 0755)

	err := t.m.MaterializeServer(t.ctx, t.prod1)

	assert.Error(t.T(), err)
	assert.True(t.T(), t.controller.Aborted())
	assert.Empty(t.T(), t.listDir("/PROD1"))
}

func (t *MaterializeTest) TestTagFailureAborts() {
	t.store = failingAttrStore{AttrStore: provenance.NewInMemoryAttrStore()}
	t.rebuild()
	t.respond("prod1.example.com", "name\nv1\nv2\n")

	err := t.m.MaterializeServer(t.ctx, t.prod1)

	assert.Error(t.T(), err)
	assert.True(t.T(), t.controller.Aborted())
	assert.Equal(t.T(), []int{1}, t.exitCodes)
	// Aborted on the first placeholder.
	assert.Equal(t.T(), []string{CustomQueryFolderName, "v1"}, t.listDir("/PROD1"))
}

func (t *MaterializeTest) TestCustomQueryFolderFailureIsNotFatal() {
	t.prod1.Version = 15
	t.respond("prod1.example.com", "name\nv1\n")
	require.NoError(t.T(), os.Mkdir(filepath.Join(t.root, "PROD1"), 0755))
	require.NoError(t.T(), os.WriteFile(filepath.Join(t.root, "PROD1", CustomQueryFolderName), nil, 0644))

	err := t.m.MaterializeServer(t.ctx, t.prod1)

	require.NoError(t.T(), err)
	t.assertNotAborted()
	t.assertEmptyGeneratedFile("/PROD1/v1")
}

func (t *MaterializeTest) TestCustomQueryPlaceholders() {
	queries := t.T().TempDir()
	require.NoError(t.T(), os.WriteFile(filepath.Join(queries, "blocking.sql"), []byte("SELECT 1"), 0644))
	require.NoError(t.T(), os.WriteFile(filepath.Join(queries, "top_waits.sql"), []byte("SELECT 2"), 0644))
	require.NoError(t.T(), os.WriteFile(filepath.Join(queries, "README.md"), []byte("docs"), 0644))
	require.NoError(t.T(), os.Mkdir(filepath.Join(queries, "archive.sql"), 0755))
	t.prod1.CustomQueriesPath = queries
	t.executor.SetError("prod1.example.com", discovery.ViewsQuery, errors.New("down"))

	require.NoError(t.T(), t.m.MaterializeServer(t.ctx, t.prod1))

	assert.Equal(t.T(), []string{"blocking", "top_waits"}, t.listDir("/PROD1/"+CustomQueryFolderName))
	t.assertEmptyGeneratedFile("/PROD1/" + CustomQueryFolderName + "/blocking")
	t.assertEmptyGeneratedFile("/PROD1/" + CustomQueryFolderName + "/top_waits")
}

func (t *MaterializeTest) TestUnreadableCustomQueriesPathIsNotFatal() {
	t.prod1.CustomQueriesPath = filepath.Join(t.root, "does-not-exist")
	t.respond("prod1.example.com", "name\nv1\n")

	require.NoError(t.T(), t.m.MaterializeServer(t.ctx, t.prod1))

	t.assertNotAborted()
	assert.Empty(t.T(), t.listDir("/PROD1/"+CustomQueryFolderName))
}

func (t *MaterializeTest) TestInvalidViewNamesAreSkipped() {
	t.prod1.Version = 15
	t.respond("prod1.example.com", "name\n..\nbad/name\nv1\n")

	require.NoError(t.T(), t.m.MaterializeServer(t.ctx, t.prod1))

	assert.Equal(t.T(), []string{CustomQueryFolderName, "v1"}, t.listDir("/PROD1"))
}

func (t *MaterializeTest) TestMaterializeAll() {
	r, err := registry.New([]registry.ServerEntry{
		{Name: "PROD2", Hostname: "prod2", Version: 15},
		*t.prod1,
	}, t.controller)
	require.NoError(t.T(), err)
	t.respond("prod1.example.com", "name\nv1\n")
	t.respond("prod2", "name\nv2\n")

	require.NoError(t.T(), t.m.MaterializeAll(t.ctx, r))

	assert.Equal(t.T(), []string{"PROD1", "PROD2"}, t.listDir("/"))
	assert.Equal(t.T(), []string{CustomQueryFolderName, "v1", "v1.json"}, t.listDir("/PROD1"))
	assert.Equal(t.T(), []string{CustomQueryFolderName, "v2"}, t.listDir("/PROD2"))
	calls := t.executor.Calls()
	require.Len(t.T(), calls, 2)
	assert.Equal(t.T(), "prod1.example.com", calls[0].Hostname)
	assert.Equal(t.T(), "prod2", calls[1].Hostname)
}
