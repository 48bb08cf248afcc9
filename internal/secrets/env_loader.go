package secrets

import (
	"fmt"
	"os"
	"strings"
)

// fileSuffix marks a variable naming a file that holds the secret, so
// mounted container secrets need not be exported into the environment.
const fileSuffix = "_FILE"

// EnvLoader returns a Loader for the given keys. KEY_FILE wins over KEY;
// the file's trailing newline is dropped. Unset keys are left out. A
// KEY_FILE that cannot be read fails the load, which makes Vault.Reload
// keep the values it already has.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			v, err := lookupSecret(k)
			if err != nil {
				return nil, err
			}
			if v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}

func lookupSecret(key string) (string, error) {
	path := os.Getenv(key + fileSuffix)
	if path == "" {
		return os.Getenv(key), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s%s: %w", key, fileSuffix, err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}
