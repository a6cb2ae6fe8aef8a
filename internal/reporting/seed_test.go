package reporting

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/fleetpulse/pkg/api"
)

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSeedFile(t *testing.T) {
	t.Parallel()

	path := writeSeedFile(t, `
- hostname: web-01
  os: ubuntu
  update_date: "2024-06-01"
  updated_packages:
    - name: nginx
      old_version: 1.18.0
      new_version: 1.20.2
- hostname: db-01
  os: centos
  update_date: "2024-06-02"
  updated_packages:
    - {name: postgresql, old_version: "13.4", new_version: "13.8"}
`)

	reports, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, api.UpdateIn{
		Hostname:   "web-01",
		OS:         "ubuntu",
		UpdateDate: "2024-06-01",
		UpdatedPackages: []api.PackageChange{
			{Name: "nginx", OldVersion: "1.18.0", NewVersion: "1.20.2"},
		},
	}, reports[0])
	assert.Equal(t, "13.8", reports[1].UpdatedPackages[0].NewVersion)
}

func TestLoadSeedFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read seed file")

	_, err = LoadSeedFile(writeSeedFile(t, "hostname: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse seed file")
}

func TestSeed(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	result, err := Seed(context.Background(), store, SampleReports(apiNow))
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Hosts: 5, Packages: 11}, result)

	hosts, err := store.ListHosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"api-server-01", "db-server-01", "monitoring-server", "web-server-01", "web-server-02"}, hosts)
}

func TestSeed_StopsAtInvalidReport(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	reports := []api.UpdateIn{
		{Hostname: "a", OS: "ubuntu", UpdateDate: "2024-06-01",
			UpdatedPackages: []api.PackageChange{{Name: "x", OldVersion: "1", NewVersion: "2"}}},
		{Hostname: "b", OS: "ubuntu", UpdateDate: "2024-06-01"},
		{Hostname: "c", OS: "ubuntu", UpdateDate: "2024-06-01",
			UpdatedPackages: []api.PackageChange{{Name: "y", OldVersion: "1", NewVersion: "2"}}},
	}

	result, err := Seed(context.Background(), store, reports)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report 1 (b): No packages provided")
	assert.Equal(t, SeedResult{Hosts: 1, Packages: 1}, result)

	hosts, err := store.ListHosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, hosts)
}
