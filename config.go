package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"gopkg.in/yaml.v3"

	"github.com/jcorbin/gopocket/internal/console"
	"github.com/jcorbin/gopocket/internal/progstore"
)

// config collects the settings a config file or command line may supply.
type config struct {
	MemLimit uint   `yaml:"memLimit"`
	HeapApex uint   `yaml:"heapApex"`
	Slots    int    `yaml:"slots"`
	SlotSize int    `yaml:"slotSize"`
	Seed     *int16 `yaml:"seed"`
	Strict   bool   `yaml:"strict"`
	Charset  string `yaml:"charset"`
	Prompt   string `yaml:"prompt"`
}

var defaultConfig = config{
	MemLimit: defaultMemLimit,
	HeapApex: defaultHeapApex,
	Slots:    progstore.DefaultSlots,
	SlotSize: progstore.DefaultSlotSize,
	Charset:  "latin1",
	Prompt:   console.DefaultPrompt,
}

// load reads a YAML config file over cfg; unknown keys are an error.
func (cfg *config) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%w: %v: %v", errBadConfig, path, err)
	}
	return nil
}

func (cfg config) validate() error {
	if cfg.Slots <= 0 {
		return fmt.Errorf("%w: slots must be positive", errBadConfig)
	}
	if _, err := lookupCharset(cfg.Charset); err != nil {
		return err
	}
	return nil
}

func (cfg config) options() []VMOption {
	opts := []VMOption{
		WithMemLimit(cfg.MemLimit),
		WithHeapApex(cfg.HeapApex),
		WithStrictCalls(cfg.Strict),
	}
	if cfg.Seed != nil {
		opts = append(opts, WithSeed(*cfg.Seed))
	}
	return opts
}

var charsets = map[string]*charmap.Charmap{
	"latin1":       charmap.ISO8859_1,
	"iso8859-1":    charmap.ISO8859_1,
	"iso8859-15":   charmap.ISO8859_15,
	"cp437":        charmap.CodePage437,
	"cp850":        charmap.CodePage850,
	"windows-1252": charmap.Windows1252,
	"koi8-r":       charmap.KOI8R,
}

func lookupCharset(name string) (*charmap.Charmap, error) {
	if cm, ok := charsets[strings.ToLower(name)]; ok {
		return cm, nil
	}
	return nil, fmt.Errorf("%w: unknown charset %q", errBadConfig, name)
}
