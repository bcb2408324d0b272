package util

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// BindJsonOrYaml decodes a YAML or JSON file into obj, honouring obj's json tags.
func BindJsonOrYaml(filePath string, obj interface{}) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed opening file %s due to %s", filePath, err)
	}
	if err := yaml.Unmarshal(content, obj); err != nil {
		return fmt.Errorf("failed to parse file %s because: %v", filePath, err)
	}
	return nil
}
