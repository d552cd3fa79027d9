package exec

import (
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/rileyhilliard/rdeploy/internal/errors"
)

// LoadEnvFile reads a dotenv file and returns the process environment with
// the file's variables appended, ready for exec.Cmd.Env. An empty path
// returns nil, which makes children inherit the parent environment as-is.
func LoadEnvFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfigIO,
			fmt.Sprintf("Couldn't read env file %s", path),
			"Check the env_file path and its KEY=value syntax.")
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}
