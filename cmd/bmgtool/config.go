package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
	bmg "github.com/logicossoftware/go-bmg"
)

// Config holds the bmgtool settings read from the ini file.
type Config struct {
	StrictCrossRefs bool
	MaxStringUnits  int
	Verify          bool
	Compression     bmg.Compression
	// Codec is nil unless the file has a [codes] section.
	Codec *bmg.Codec
}

func defaultConfig() Config {
	return Config{
		MaxStringUnits: bmg.DefaultMaxStringUnits,
		Verify:         true,
		Compression:    bmg.CompZSTD,
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".bmgtool.ini")
}

// LoadConfig reads path. A missing file yields the defaults; keys that are
// absent keep their default value.
//
//	[parse]
//	strict_cross_refs = false
//	max_string_units  = 10000
//	[build]
//	verify = true
//	[patch]
//	compression = zstd
//	[codes]
//	; hex code = parameter count[, alias]
//	1F = 0, WAIT
//	0E = 3
//
// Codes listed under [codes] are added to the default registry.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	f, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config file: %w", err)
	}

	if f.HasSection("parse") {
		section := f.Section("parse")
		if section.HasKey("strict_cross_refs") {
			v, err := section.Key("strict_cross_refs").Bool()
			if err != nil {
				return cfg, fmt.Errorf("parse.strict_cross_refs: %w", err)
			}
			cfg.StrictCrossRefs = v
		}
		if section.HasKey("max_string_units") {
			v, err := section.Key("max_string_units").Int()
			if err != nil || v <= 0 {
				return cfg, fmt.Errorf("parse.max_string_units: invalid value %q", section.Key("max_string_units").String())
			}
			cfg.MaxStringUnits = v
		}
	}
	if f.HasSection("build") {
		section := f.Section("build")
		if section.HasKey("verify") {
			v, err := section.Key("verify").Bool()
			if err != nil {
				return cfg, fmt.Errorf("build.verify: %w", err)
			}
			cfg.Verify = v
		}
	}
	if f.HasSection("patch") {
		section := f.Section("patch")
		if section.HasKey("compression") {
			comp, err := bmg.ParseCompression(section.Key("compression").String())
			if err != nil {
				return cfg, fmt.Errorf("patch.compression: %w", err)
			}
			cfg.Compression = comp
		}
	}
	if f.HasSection("codes") {
		codec, err := loadCodes(f.Section("codes"))
		if err != nil {
			return cfg, err
		}
		cfg.Codec = codec
	}
	return cfg, nil
}

func loadCodes(section *ini.Section) (*bmg.Codec, error) {
	params := bmg.DefaultCodec.Params()
	aliases := bmg.DefaultCodec.Aliases()
	for _, key := range section.Keys() {
		code, err := strconv.ParseUint(key.Name(), 16, 16)
		if err != nil || code == 0 {
			return nil, fmt.Errorf("codes.%s: invalid control code", key.Name())
		}
		count, alias, _ := strings.Cut(key.String(), ",")
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("codes.%s: invalid parameter count %q", key.Name(), count)
		}
		params[uint16(code)] = n
		if alias = strings.TrimSpace(alias); alias != "" {
			aliases[uint16(code)] = alias
		}
	}
	return bmg.NewCodec(params, aliases), nil
}

func (c Config) parseOptions() []bmg.ParseOption {
	opts := []bmg.ParseOption{
		bmg.WithStrictCrossRefs(c.StrictCrossRefs),
		bmg.WithLimits(bmg.Limits{MaxStringUnits: c.MaxStringUnits}),
	}
	if c.Codec != nil {
		opts = append(opts, bmg.WithCodec(c.Codec))
	}
	return opts
}
