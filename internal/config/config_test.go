package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Promo.FPS != 30 || cfg.Site.Addr != ":3000" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestSampleConfigMatchesDefault(t *testing.T) {
	var cfg Config
	if err := toml.Unmarshal([]byte(SampleConfig()), &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg != Default() {
		t.Errorf("sample config drifted from defaults:\n got %+v\nwant %+v", cfg, Default())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Promo.Rasterizer != "vector" {
		t.Errorf("rasterizer = %s", cfg.Promo.Rasterizer)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "nstyle.toml")
	body := `
[promo]
fps = 24
rasterizer = "fitz"

[promo.publish]
bucket = "promo-bucket"

[site]
database = "from-file.sqlite"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "8080")
	t.Setenv("NSTYLE_DB", "from-env.sqlite")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Promo.FPS != 24 || cfg.Promo.Rasterizer != "fitz" {
		t.Errorf("promo = %+v", cfg.Promo)
	}
	if cfg.Promo.Publish.Bucket != "promo-bucket" {
		t.Errorf("bucket = %q", cfg.Promo.Publish.Bucket)
	}
	if cfg.Site.Addr != ":8080" {
		t.Errorf("addr = %s", cfg.Site.Addr)
	}
	if cfg.Site.Database != "from-env.sqlite" {
		t.Errorf("database = %s", cfg.Site.Database)
	}
	// untouched keys keep their defaults
	if cfg.Promo.Codec != "libx264" {
		t.Errorf("codec = %s", cfg.Promo.Codec)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("NSTYLE_ADMIN_PASSWORD=s3cret\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set
	t.Setenv("NSTYLE_ADMIN_PASSWORD", "")
	os.Unsetenv("NSTYLE_ADMIN_PASSWORD")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Site.AdminPassword != "s3cret" {
		t.Errorf("admin password = %q", cfg.Site.AdminPassword)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero fps", "[promo]\nfps = 0\n", "promo.fps"},
		{"extensionless output", "[promo]\noutput = \"media/promo\"\n", "promo.output"},
		{"bad rasterizer", "[promo]\nrasterizer = \"sharp\"\n", "promo.rasterizer"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"bad format", "[log]\nformat = \"xml\"\n", "log.format"},
		{"no admin", "[site]\nadmin_user = \"\"\n", "site.admin_user"},
		{"malformed", "[promo\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			path := filepath.Join(t.TempDir(), "c.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadRejectsNonNumericPort(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "http")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}
