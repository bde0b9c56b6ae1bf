package main

import (
	"testing"

	"github.com/apppulse/apppulse/pkg/config"
)

func TestEffectiveConfig_DoesNotMutateGlobal(t *testing.T) {
	global := config.Global().Get()
	origApps := global.Sources.AppsCSV
	origSeeds := global.Seeds.Dir

	appsCSVFlag = "/tmp/override-apps.csv"
	seedsDirFlag = "/tmp/override-seeds"
	defer func() {
		appsCSVFlag = ""
		seedsDirFlag = ""
	}()

	cfg := effectiveConfig()
	if cfg.Sources.AppsCSV != "/tmp/override-apps.csv" || cfg.Seeds.Dir != "/tmp/override-seeds" {
		t.Fatalf("flag overrides not applied: %+v", cfg.Sources)
	}

	fresh := config.Global().Get()
	if cfg == fresh {
		t.Fatalf("effectiveConfig returned the global instance instead of a copy")
	}
	if fresh.Sources.AppsCSV != origApps || fresh.Seeds.Dir != origSeeds {
		t.Errorf("flag overrides leaked into global config: apps=%q seeds=%q",
			fresh.Sources.AppsCSV, fresh.Seeds.Dir)
	}
}
