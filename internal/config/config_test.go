package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.ProbePoolSize != 100 {
		t.Errorf("ProbePoolSize = %d, want 100", c.ProbePoolSize)
	}
	if c.AnalysisPoolSize != 4 {
		t.Errorf("AnalysisPoolSize = %d, want 4", c.AnalysisPoolSize)
	}
	if c.DomainConcurrency != 5 {
		t.Errorf("DomainConcurrency = %d, want 5", c.DomainConcurrency)
	}
	if c.CheckIntervalBase != 7*24*time.Hour {
		t.Errorf("CheckIntervalBase = %s, want 168h", c.CheckIntervalBase)
	}
	if got := c.MaxFilesizeFor("unknown-format"); got != c.MaxFilesizeAllowed["default"] {
		t.Errorf("MaxFilesizeFor(unknown) = %d, want default %d", got, c.MaxFilesizeAllowed["default"])
	}
}

func TestLoadOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("HYDRA_DB_PATH", "/tmp/x.db")
	os.Setenv("HYDRA_PROBE_POOL_SIZE", "50")
	os.Setenv("HYDRA_DOMAIN_RATE_PER_SEC", "3.5")
	os.Setenv("HYDRA_SQL_INDEX_TYPES", "btree, unique ,hash")
	c := Load()
	if c.DBPath != "/tmp/x.db" {
		t.Errorf("DBPath = %q", c.DBPath)
	}
	if c.ProbePoolSize != 50 {
		t.Errorf("ProbePoolSize = %d, want 50", c.ProbePoolSize)
	}
	if c.DomainRatePerSec != 3.5 {
		t.Errorf("DomainRatePerSec = %v, want 3.5", c.DomainRatePerSec)
	}
	if !c.AllowsIndexType("hash") || !c.AllowsIndexType("btree") {
		t.Errorf("expected btree and hash to be allowed index types, got %v", c.SQLIndexTypes)
	}
	if c.AllowsIndexType("gist") {
		t.Errorf("gist should not be an allowed index type")
	}
}

func TestLoadBadNumbersFallBackToDefault(t *testing.T) {
	os.Clearenv()
	os.Setenv("HYDRA_PROBE_POOL_SIZE", "not-a-number")
	c := Load()
	if c.ProbePoolSize != 100 {
		t.Errorf("ProbePoolSize with bad env = %d, want default 100", c.ProbePoolSize)
	}
}
