// Package config loads the optional YAML configuration file. Values from the
// file become flag defaults; flags given on the command line still win.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// OverpassConfig configures the upstream client.
type OverpassConfig struct {
	URL       string   `yaml:"url" validate:"omitempty,url"`
	UserAgent string   `yaml:"user_agent"`
	RPS       *float64 `yaml:"rps" validate:"omitempty,gte=0"`
	Burst     *int     `yaml:"burst" validate:"omitempty,gte=0"`
}

// CacheConfig configures the road response cache. A zero TTL keeps the
// flag default.
type CacheConfig struct {
	Size *int          `yaml:"size" validate:"omitempty,gte=0"`
	TTL  time.Duration `yaml:"ttl" validate:"gte=0"`
}

// SimulationConfig configures the headless simulation.
type SimulationConfig struct {
	FPS    int     `yaml:"fps" validate:"omitempty,min=1,max=240"`
	Center string  `yaml:"center"`
	Zoom   float64 `yaml:"zoom" validate:"omitempty,min=1,max=19"`
	Width  int     `yaml:"width" validate:"omitempty,min=1"`
	Height int     `yaml:"height" validate:"omitempty,min=1"`
}

// File is the root of the configuration file. Settings whose zero value is
// meaningful are pointers so an explicit false or 0 still overrides the
// flag default.
type File struct {
	Debug            *bool            `yaml:"debug"`
	HTTPAddr         string           `yaml:"http_addr"`
	MonitoringAddr   string           `yaml:"monitoring_addr"`
	EnableMonitoring *bool            `yaml:"enable_monitoring"`
	RateLimit        *float64         `yaml:"rate_limit" validate:"omitempty,gte=0"`
	RateBurst        *int             `yaml:"rate_burst" validate:"omitempty,gte=0"`
	RegistryURL      string           `yaml:"registry_url" validate:"omitempty,url"`
	PublicURL        string           `yaml:"public_url" validate:"omitempty,url"`
	Overpass         OverpassConfig   `yaml:"overpass"`
	Cache            CacheConfig      `yaml:"cache"`
	Simulation       SimulationConfig `yaml:"simulation"`
}

// Load reads and validates the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document. Unknown keys are
// rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &f, nil
}

// FlagValues returns the flag name and value of every field set in the file.
// Pointer fields are emitted whenever the key is present, even as false or 0.
func (f *File) FlagValues() map[string]string {
	out := make(map[string]string)
	str := func(name, v string) {
		if v != "" {
			out[name] = v
		}
	}
	num := func(name string, v float64) {
		if v != 0 {
			out[name] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	integer := func(name string, v int) {
		if v != 0 {
			out[name] = strconv.Itoa(v)
		}
	}
	boolPtr := func(name string, v *bool) {
		if v != nil {
			out[name] = strconv.FormatBool(*v)
		}
	}
	numPtr := func(name string, v *float64) {
		if v != nil {
			out[name] = strconv.FormatFloat(*v, 'f', -1, 64)
		}
	}
	intPtr := func(name string, v *int) {
		if v != nil {
			out[name] = strconv.Itoa(*v)
		}
	}

	boolPtr("debug", f.Debug)
	boolPtr("enable-monitoring", f.EnableMonitoring)
	str("http-addr", f.HTTPAddr)
	str("monitoring-addr", f.MonitoringAddr)
	str("registry-url", f.RegistryURL)
	str("public-url", f.PublicURL)
	numPtr("rate-limit", f.RateLimit)
	intPtr("rate-burst", f.RateBurst)
	str("overpass-url", f.Overpass.URL)
	str("user-agent", f.Overpass.UserAgent)
	numPtr("overpass-rps", f.Overpass.RPS)
	intPtr("overpass-burst", f.Overpass.Burst)
	intPtr("cache-size", f.Cache.Size)
	if f.Cache.TTL != 0 {
		out["cache-ttl"] = f.Cache.TTL.String()
	}
	integer("fps", f.Simulation.FPS)
	str("center", f.Simulation.Center)
	num("zoom", f.Simulation.Zoom)
	integer("width", f.Simulation.Width)
	integer("height", f.Simulation.Height)
	return out
}

// Apply sets every flag in fs that the file provides and the command line
// did not. Call it after fs.Parse.
func (f *File) Apply(fs *flag.FlagSet) error {
	visited := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { visited[fl.Name] = true })

	for name, value := range f.FlagValues() {
		if visited[name] || fs.Lookup(name) == nil {
			continue
		}
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("config %s: %w", name, err)
		}
	}
	return nil
}
