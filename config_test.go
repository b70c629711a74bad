package loom

import "testing"

func TestDefaultConfig_Values(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Domains < 1 {
		t.Fatalf("Domains default = %d; want >= 1", cfg.Domains)
	}
	if cfg.Quanta != 64 {
		t.Fatalf("Quanta default = %d; want 64", cfg.Quanta)
	}
	if cfg.Seed != 1 {
		t.Fatalf("Seed default = %d; want 1", cfg.Seed)
	}
}

func TestValidateConfig_Defaults(t *testing.T) {
	cfg := defaultConfig()
	if err := validateConfig(&cfg); err != nil {
		t.Fatalf("validateConfig returned error for defaults: %v", err)
	}
}

func TestValidateConfig_RejectsNonPositiveDomains(t *testing.T) {
	cfg := defaultConfig()
	cfg.Domains = 0
	if err := validateConfig(&cfg); err != ErrInvalidConfig {
		t.Fatalf("validateConfig = %v; want ErrInvalidConfig", err)
	}
}

func TestValidateConfig_RejectsNonPositiveQuanta(t *testing.T) {
	cfg := defaultConfig()
	cfg.Quanta = 0
	if err := validateConfig(&cfg); err != ErrInvalidConfig {
		t.Fatalf("validateConfig = %v; want ErrInvalidConfig", err)
	}
}

func TestBuildConfig_AppliesOptions(t *testing.T) {
	cfg, err := buildConfig(WithDomains(3), WithQuanta(8), WithSeed(42))
	if err != nil {
		t.Fatalf("buildConfig returned error: %v", err)
	}
	if cfg.Domains != 3 || cfg.Quanta != 8 || cfg.Seed != 42 {
		t.Fatalf("buildConfig = %+v; want Domains=3 Quanta=8 Seed=42", cfg)
	}
}

func TestWithDomains_PanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("WithDomains(0) did not panic")
		}
	}()
	WithDomains(0)
}

func TestWithQuanta_PanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("WithQuanta(-1) did not panic")
		}
	}()
	WithQuanta(-1)
}
