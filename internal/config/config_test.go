package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/EgorLis/bmpresence/internal/bmapi"
)

func newViper(kv map[string]string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for k, val := range kv {
		v.Set(k, val)
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(map[string]string{
		"server_count":    "2",
		"server_id_1":     "1001",
		"discord_token_1": "tok1",
		"server_id_2":     "1002",
		"discord_token_2": "tok2",
		"max_players_2":   "80",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Accounts) != 2 {
		t.Fatalf("accounts=%d", len(cfg.Accounts))
	}
	a1, a2 := cfg.Accounts[0], cfg.Accounts[1]
	if a1.Index != 1 || a1.ServerID != "1001" || a1.Token != "tok1" || a1.MaxPlayers != DefaultMaxPlayers {
		t.Fatalf("a1=%+v", a1)
	}
	if a2.Index != 2 || a2.MaxPlayers != 80 {
		t.Fatalf("a2=%+v", a2)
	}
	if cfg.Interval != DefaultInterval || cfg.Stagger != DefaultStagger {
		t.Fatalf("interval=%v stagger=%v", cfg.Interval, cfg.Stagger)
	}
	if !cfg.UpdateOnReady || cfg.BMBaseURL != bmapi.DefaultBaseURL {
		t.Fatalf("update_on_ready=%v base=%q", cfg.UpdateOnReady, cfg.BMBaseURL)
	}
	if len(cfg.Warnings) != 0 {
		t.Fatalf("warnings=%v", cfg.Warnings)
	}
}

func TestLoad_CountErrors(t *testing.T) {
	for _, raw := range []string{"", "0", "-1", "three"} {
		_, err := Load(newViper(map[string]string{"server_count": raw}))
		var ce *Error
		if !errors.As(err, &ce) || ce.Key != "SERVER_COUNT" {
			t.Fatalf("SERVER_COUNT=%q: err=%v", raw, err)
		}
	}
}

func TestLoad_IncompleteSlot(t *testing.T) {
	_, err := Load(newViper(map[string]string{
		"server_count":    "3",
		"server_id_1":     "1",
		"discord_token_1": "a",
		"server_id_2":     "2",
		"discord_token_2": "b",
	}))
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(ce.Error(), "SERVER_ID_3") {
		t.Fatalf("err=%v", ce)
	}

	_, err = Load(newViper(map[string]string{
		"server_count": "1",
		"server_id_1":  "1",
	}))
	if !errors.As(err, &ce) || ce.Key != "DISCORD_TOKEN_1" {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_InvalidOptionalValuesWarn(t *testing.T) {
	cfg, err := Load(newViper(map[string]string{
		"server_count":    "1",
		"server_id_1":     "1",
		"discord_token_1": "a",
		"update_interval": "soon",
		"stagger_delay":   "-5",
		"max_players":     "0",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Interval != DefaultInterval || cfg.Stagger != DefaultStagger {
		t.Fatalf("interval=%v stagger=%v", cfg.Interval, cfg.Stagger)
	}
	if cfg.Accounts[0].MaxPlayers != DefaultMaxPlayers {
		t.Fatalf("max=%d", cfg.Accounts[0].MaxPlayers)
	}
	if len(cfg.Warnings) != 3 {
		t.Fatalf("warnings=%v", cfg.Warnings)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(newViper(map[string]string{
		"server_count":        "1",
		"server_id_1":         "1",
		"discord_token_1":     "a",
		"max_players":         "64",
		"update_interval":     "60",
		"stagger_delay":       "2",
		"update_on_ready":     "false",
		"proxy_url":           "socks5://127.0.0.1:1080",
		"battlemetrics_token": "bm",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Accounts[0].MaxPlayers != 64 || cfg.Interval != time.Minute || cfg.Stagger != 2*time.Second {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.UpdateOnReady || cfg.ProxyURL != "socks5://127.0.0.1:1080" || cfg.BMToken != "bm" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatal("expected error for no accounts")
	}
	ok := []Account{{Index: 1, Token: "t", ServerID: "s"}}
	if err := Validate(ok); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestNew_EnvAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yml, []byte("server_count: 1\nserver_id_1: \"555\"\ndiscord_token_1: from-file\nlog_level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DISCORD_TOKEN_1", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(flags)
	if err := flags.Parse([]string{"--env-file", "", "--config", yml, "--log-level", "warn"}); err != nil {
		t.Fatal(err)
	}
	v, err := New(flags)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a := cfg.Accounts[0]
	if a.ServerID != "555" || a.Token != "from-env" {
		t.Fatalf("account=%+v", a)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level=%q", cfg.LogLevel)
	}
}

func TestNew_ExplicitEnvFileMissing(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(flags)
	if err := flags.Parse([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}); err != nil {
		t.Fatal(err)
	}
	_, err := New(flags)
	var ce *Error
	if !errors.As(err, &ce) || ce.Key != "env-file" {
		t.Fatalf("err=%v", err)
	}
}

func TestNew_DefaultEnvFileOptional(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(flags)
	if _, err := New(flags); err != nil {
		t.Fatalf("new: %v", err)
	}
}

func TestLoad_ZeroStagger(t *testing.T) {
	cfg, err := Load(newViper(map[string]string{
		"server_count":    "1",
		"server_id_1":     "1",
		"discord_token_1": "t",
		"stagger_delay":   "0",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Stagger != 0 || len(cfg.Warnings) != 0 {
		t.Fatalf("stagger=%v warnings=%v", cfg.Stagger, cfg.Warnings)
	}
}
