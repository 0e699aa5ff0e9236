package main

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/maison/internal/domain/normalize"
)

// readFile loads a YAML or JSON document; the YAML parser accepts both.
func readFile(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadProfile, path, err)
	}
	return k, nil
}

func unmarshal(k *koanf.Koanf, path, key string, out any) error {
	if err := k.UnmarshalWithConf(key, out, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReadProfile, path, err)
	}
	return nil
}

func readTalent(path string) (normalize.RawTalent, error) {
	var t normalize.RawTalent
	k, err := readFile(path)
	if err != nil {
		return t, err
	}
	return t, unmarshal(k, path, "", &t)
}

func readOpportunity(path string) (normalize.RawOpportunity, error) {
	var o normalize.RawOpportunity
	k, err := readFile(path)
	if err != nil {
		return o, err
	}
	return o, unmarshal(k, path, "", &o)
}

// readTalentPool reads the "talents" list of a pool file.
func readTalentPool(path string) ([]normalize.RawTalent, error) {
	k, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if !k.Exists("talents") {
		return nil, fmt.Errorf("%w: %s: no talents list", ErrReadProfile, path)
	}
	var pool []normalize.RawTalent
	return pool, unmarshal(k, path, "talents", &pool)
}
