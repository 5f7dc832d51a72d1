package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
api:
  port: "9090"
  base_url: localhost:9090
  public_base_url: https://certs.example.com
  environment: test
  jwt_signing_key: 0123456789abcdef0123
gin:
  mode: test
postgres:
  host: db
  port: "5432"
  user: u
  password: p
  db: certs
storage:
  backend: s3
  bucket: artifacts
  region: eu-west-3
render:
  supersample: 3
  background_timeout: 2s
scanner:
  sample_interval: 250ms
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	conf, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "9090", conf.API.Port)
	assert.Equal(t, "https://certs.example.com", conf.API.PublicBaseURL)
	assert.Equal(t, StorageS3, conf.Storage.Backend)
	assert.Equal(t, 3, conf.Render.Supersample)
	assert.Equal(t, 2*time.Second, conf.Render.BackgroundTimeout)
	assert.Equal(t, 250*time.Millisecond, conf.Scanner.SampleInterval)
	assert.Equal(t, "disable", conf.Postgres.SSLMode)
	assert.Equal(t, 587, conf.Mail.Port)
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=certs sslmode=disable", conf.Postgres.DSN())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("APP_API_JWT_SIGNING_KEY", "from-the-environment-0123")
	t.Setenv("APP_STORAGE_BUCKET", "other-bucket")

	conf, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "from-the-environment-0123", conf.API.JWTSigningKey)
	assert.Equal(t, "other-bucket", conf.Storage.Bucket)
}

func TestLoadPublicBaseURLFallsBackToBaseURL(t *testing.T) {
	body := `
api:
  base_url: http://localhost:8080
  jwt_signing_key: 0123456789abcdef0123
`
	conf, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", conf.API.PublicBaseURL)
	assert.Equal(t, StorageBadger, conf.Storage.Backend)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "short signing key",
			body: `
api:
  public_base_url: http://localhost
  jwt_signing_key: short
`,
		},
		{
			name: "cloud backend without bucket",
			body: `
api:
  public_base_url: http://localhost
  jwt_signing_key: 0123456789abcdef0123
storage:
  backend: gcs
`,
		},
		{
			name: "unknown backend",
			body: `
api:
  public_base_url: http://localhost
  jwt_signing_key: 0123456789abcdef0123
storage:
  backend: ftp
`,
		},
		{
			name: "mail enabled without host",
			body: `
api:
  public_base_url: http://localhost
  jwt_signing_key: 0123456789abcdef0123
mail:
  enabled: true
  host: ""
  from_address: a@example.com
`,
		},
		{
			name: "sampling too fast",
			body: `
api:
  public_base_url: http://localhost
  jwt_signing_key: 0123456789abcdef0123
scanner:
  sample_interval: 1ms
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestReload(t *testing.T) {
	path := writeConfig(t, validYAML)
	conf, err := Load(path)
	require.NoError(t, err)

	var seen ScannerConfig
	conf.OnReload(func(c *AppConfig) {
		seen = c.ScannerSettings()
	})

	updated := validYAML + "\n"
	updated = strings.Replace(updated, "sample_interval: 250ms", "sample_interval: 1s", 1)
	updated = strings.Replace(updated, "supersample: 3", "supersample: 1", 1)
	updated = strings.Replace(updated, `port: "9090"`, `port: "7070"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	require.NoError(t, conf.v.ReadInConfig())
	conf.reload(path)

	assert.Equal(t, time.Second, seen.SampleInterval)
	assert.Equal(t, 1, conf.RenderSettings().Supersample)
	assert.Equal(t, "9090", conf.API.Port, "api section needs a restart")
}

func TestReloadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, validYAML)
	conf, err := Load(path)
	require.NoError(t, err)

	called := false
	conf.OnReload(func(*AppConfig) { called = true })

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(validYAML, "supersample: 3", "supersample: 9", 1)), 0o600))
	require.NoError(t, conf.v.ReadInConfig())
	conf.reload(path)

	assert.False(t, called)
	assert.Equal(t, 3, conf.RenderSettings().Supersample)
}
