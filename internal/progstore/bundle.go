package progstore

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bundle is the YAML interchange form of a set of programs.
type Bundle struct {
	Programs []BundleProgram `yaml:"programs"`
}

// BundleProgram is one named program in a Bundle.
type BundleProgram struct {
	Name string `yaml:"name"`
	Text string `yaml:"text"`
}

// ImportBundle decodes a YAML bundle from r and saves every program in it,
// overwriting any existing program of the same name.
func (st *Store) ImportBundle(r io.Reader) (n int, err error) {
	var bundle Bundle
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&bundle); err != nil && err != io.EOF {
		return 0, fmt.Errorf("decoding bundle: %w", err)
	}
	for _, prog := range bundle.Programs {
		// editors and YAML block scalars may add carriage returns
		text := strings.ReplaceAll(prog.Text, "\r\n", "\n")
		if err := st.Save(prog.Name, []byte(text)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ExportBundle encodes every stored program into w as a YAML bundle.
func (st *Store) ExportBundle(w io.Writer) error {
	var bundle Bundle
	for _, ent := range st.List() {
		bundle.Programs = append(bundle.Programs, BundleProgram{
			Name: ent.Name,
			Text: string(st.text(ent.Slot)),
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(bundle); err != nil {
		return err
	}
	return enc.Close()
}
