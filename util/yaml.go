package util

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadMultipleYamlFiles unmarshals every path into the same value in
// order, so later files override keys set by earlier ones.
func LoadMultipleYamlFiles[T any](paths []string) (T, error) {
	var value T
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return value, errors.Wrapf(err, "failed to read config file %s", path)
		}
		err = yaml.Unmarshal(data, &value)
		if err != nil {
			return value, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}
	return value, nil
}
